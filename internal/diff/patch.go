// Portions of this file are derived from diff-match-patch
// (Copyright 2018 The diff-match-patch Authors, Apache License 2.0,
// https://github.com/google/diff-match-patch) and from its Go port go-diff
// (Copyright (c) 2012-2016 The go-diff Authors, MIT License,
// https://github.com/sergi/go-diff). See NOTICE at the module root.

package diff

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Patch is a context-padded fragment of an edit script with its expected
// location in the source (Start1/Length1) and destination (Start2/Length2).
type Patch struct {
	Diffs   []Diff `json:"diffs"`
	Start1  int    `json:"start1"`
	Start2  int    `json:"start2"`
	Length1 int    `json:"length1"`
	Length2 int    `json:"length2"`
}

// PatchOutcome tells how one fragment landed.
type PatchOutcome string

const (
	// PatchApplied means the fragment's context matched exactly.
	PatchApplied PatchOutcome = "applied"
	// PatchFuzzy means the fragment was mapped onto an approximate match.
	PatchFuzzy PatchOutcome = "fuzzy"
	// PatchRejected means no sufficiently confident location was found.
	PatchRejected PatchOutcome = "rejected"
)

// PatchResult is the per-fragment report of ApplyPatches.
type PatchResult struct {
	Index    int          `json:"index"`
	Outcome  PatchOutcome `json:"outcome"`
	Expected int          `json:"expected"`
	Location int          `json:"location"`
}

// String renders the patch in GNU diff format with %-escaped bodies.
func (p Patch) String() string {
	var sb strings.Builder
	sb.WriteString("@@ -")
	sb.WriteString(patchCoords(p.Start1, p.Length1))
	sb.WriteString(" +")
	sb.WriteString(patchCoords(p.Start2, p.Length2))
	sb.WriteString(" @@\n")
	for _, d := range p.Diffs {
		switch d.Op {
		case OpInsert:
			sb.WriteByte('+')
		case OpDelete:
			sb.WriteByte('-')
		default:
			sb.WriteByte(' ')
		}
		sb.WriteString(escapePatchText(d.Text))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func patchCoords(start, length int) string {
	switch length {
	case 0:
		return strconv.Itoa(start) + ",0"
	case 1:
		return strconv.Itoa(start + 1)
	}
	return strconv.Itoa(start+1) + "," + strconv.Itoa(length)
}

var patchUnescaper = strings.NewReplacer(
	"%21", "!", "%7E", "~", "%27", "'", "%28", "(", "%29", ")", "%3B", ";",
	"%2F", "/", "%3F", "?", "%3A", ":", "%40", "@", "%26", "&", "%3D", "=",
	"%2B", "+", "%24", "$", "%2C", ",", "%23", "#", "%2A", "*",
)

func escapePatchText(s string) string {
	return patchUnescaper.Replace(strings.ReplaceAll(url.QueryEscape(s), "+", " "))
}

func unescapePatchText(s string) (string, error) {
	return url.QueryUnescape(strings.ReplaceAll(s, "+", "%2B"))
}

// MakePatches builds patches that turn original into corrected.
func (e *Engine) MakePatches(original, corrected string) []Patch {
	diffs := e.Diff(original, corrected)
	return e.PatchesFromDiffs(original, diffs)
}

// PatchesFromDiffs groups a script into patches, splitting wherever an
// equality is long enough to separate two fragments.
func (e *Engine) PatchesFromDiffs(original string, diffs []Diff) []Patch {
	if len(diffs) == 0 {
		return nil
	}
	margin := e.opts.PatchMargin
	var patches []Patch
	var p Patch
	chars1, chars2 := 0, 0
	prepatch := []rune(original)
	postpatch := prepatch

	for i, d := range diffs {
		t := []rune(d.Text)
		if len(p.Diffs) == 0 && d.Op != OpEqual {
			p.Start1 = chars1
			p.Start2 = chars2
		}
		switch d.Op {
		case OpInsert:
			p.Diffs = append(p.Diffs, d)
			p.Length2 += len(t)
			postpatch = concatRunes(postpatch[:chars2], t, postpatch[chars2:])
		case OpDelete:
			p.Length1 += len(t)
			p.Diffs = append(p.Diffs, d)
			postpatch = concatRunes(postpatch[:chars2], postpatch[chars2+len(t):])
		case OpEqual:
			if len(t) <= 2*margin && len(p.Diffs) != 0 && i != len(diffs)-1 {
				p.Diffs = append(p.Diffs, d)
				p.Length1 += len(t)
				p.Length2 += len(t)
			} else if len(t) >= 2*margin && len(p.Diffs) != 0 {
				patches = append(patches, e.addContext(p, prepatch))
				p = Patch{}
				// Later patches are relative to the text with earlier ones applied.
				prepatch = postpatch
				chars1 = chars2
			}
		}
		if d.Op != OpInsert {
			chars1 += len(t)
		}
		if d.Op != OpDelete {
			chars2 += len(t)
		}
	}
	if len(p.Diffs) != 0 {
		patches = append(patches, e.addContext(p, prepatch))
	}
	return patches
}

// addContext grows the patch's surrounding equality until its source text is
// unique in text (bounded by the bitap width), then adds one margin more.
func (e *Engine) addContext(p Patch, text []rune) Patch {
	if len(text) == 0 {
		return p
	}
	margin := e.opts.PatchMargin
	pattern := text[p.Start2 : p.Start2+p.Length1]
	padding := 0
	for runesIndex(text, pattern, 0) != runesLastIndex(text, pattern, len(text)) &&
		len(pattern) < matchMaxBits-2*margin {
		padding += margin
		lo := max(0, p.Start2-padding)
		hi := min(len(text), p.Start2+p.Length1+padding)
		pattern = text[lo:hi]
	}
	padding += margin

	prefix := text[max(0, p.Start2-padding):p.Start2]
	if len(prefix) != 0 {
		p.Diffs = append([]Diff{{OpEqual, string(prefix)}}, p.Diffs...)
	}
	suffix := text[p.Start2+p.Length1 : min(len(text), p.Start2+p.Length1+padding)]
	if len(suffix) != 0 {
		p.Diffs = append(p.Diffs, Diff{OpEqual, string(suffix)})
	}
	p.Start1 -= len(prefix)
	p.Start2 -= len(prefix)
	p.Length1 += len(prefix) + len(suffix)
	p.Length2 += len(prefix) + len(suffix)
	return p
}

// ApplyPatches applies patches to text, which may have drifted from the text
// the patches were made against. Each fragment reports whether it applied
// exactly, fuzzily or not at all; rejected fragments leave text untouched.
func (e *Engine) ApplyPatches(patches []Patch, text string) (string, []PatchResult) {
	if len(patches) == 0 {
		return text, nil
	}
	margin := e.opts.PatchMargin
	patches = copyPatches(patches)
	nullPadding := e.addPadding(patches)
	buf := concatRunes(nullPadding, []rune(text), nullPadding)
	patches = e.splitMax(patches)

	results := make([]PatchResult, len(patches))
	delta := 0
	for x, p := range patches {
		expected := p.Start2 + delta
		text1 := []rune(Text1(p.Diffs))
		startLoc, endLoc := -1, -1
		if len(text1) > matchMaxBits {
			// Too long for bitap: anchor both ends separately.
			startLoc = e.matchRunes(buf, text1[:matchMaxBits], expected)
			if startLoc != -1 {
				endLoc = e.matchRunes(buf, text1[len(text1)-matchMaxBits:], expected+len(text1)-matchMaxBits)
				if endLoc == -1 || startLoc >= endLoc {
					startLoc = -1
				}
			}
		} else {
			startLoc = e.matchRunes(buf, text1, expected)
		}

		results[x] = PatchResult{Index: x, Outcome: PatchRejected, Expected: expected - margin, Location: -1}
		if startLoc == -1 {
			// Subtract the delta this patch would have made so later patches
			// still line up.
			delta -= p.Length2 - p.Length1
			continue
		}
		delta = startLoc - expected

		var window []rune
		if endLoc == -1 {
			window = buf[startLoc:min(startLoc+len(text1), len(buf))]
		} else {
			window = buf[startLoc:min(endLoc+matchMaxBits, len(buf))]
		}

		if runesEqual(text1, window) {
			buf = concatRunes(buf[:startLoc], []rune(Text2(p.Diffs)), buf[startLoc+len(text1):])
			results[x].Outcome = PatchApplied
			results[x].Location = startLoc - margin
			continue
		}

		// Imperfect match: map the patch through a diff of the expected and
		// the found window.
		diffs := e.DiffDeadline(string(text1), string(window), e.deadline(), false)
		if len(text1) > 0 && float64(Levenshtein(diffs))/float64(len(text1)) > e.opts.PatchDeleteThreshold {
			continue
		}
		diffs = CleanupSemanticLossless(diffs)
		index1 := 0
		for _, d := range p.Diffs {
			n := len([]rune(d.Text))
			if d.Op != OpEqual {
				index2 := XIndex(diffs, index1)
				switch d.Op {
				case OpInsert:
					at := startLoc + index2
					buf = concatRunes(buf[:at], []rune(d.Text), buf[at:])
				case OpDelete:
					from := startLoc + index2
					to := startLoc + XIndex(diffs, index1+n)
					buf = concatRunes(buf[:from], buf[to:])
				}
			}
			if d.Op != OpDelete {
				index1 += n
			}
		}
		results[x].Outcome = PatchFuzzy
		results[x].Location = startLoc - margin
	}
	buf = buf[len(nullPadding) : len(buf)-len(nullPadding)]
	return string(buf), results
}

func copyPatches(patches []Patch) []Patch {
	out := make([]Patch, len(patches))
	for i, p := range patches {
		out[i] = p
		out[i].Diffs = append([]Diff(nil), p.Diffs...)
	}
	return out
}

// addPadding surrounds the patch set with margin runes of padding so edits at
// the very edges of the text still have context to match against.
func (e *Engine) addPadding(patches []Patch) []rune {
	n := e.opts.PatchMargin
	padding := make([]rune, n)
	for i := range padding {
		padding[i] = rune(i + 1)
	}
	for i := range patches {
		patches[i].Start1 += n
		patches[i].Start2 += n
	}

	first := &patches[0]
	if len(first.Diffs) == 0 || first.Diffs[0].Op != OpEqual {
		first.Diffs = append([]Diff{{OpEqual, string(padding)}}, first.Diffs...)
		first.Start1 -= n
		first.Start2 -= n
		first.Length1 += n
		first.Length2 += n
	} else if head := []rune(first.Diffs[0].Text); n > len(head) {
		extra := n - len(head)
		first.Diffs[0].Text = string(padding[len(head):]) + first.Diffs[0].Text
		first.Start1 -= extra
		first.Start2 -= extra
		first.Length1 += extra
		first.Length2 += extra
	}

	last := &patches[len(patches)-1]
	if len(last.Diffs) == 0 || last.Diffs[len(last.Diffs)-1].Op != OpEqual {
		last.Diffs = append(last.Diffs, Diff{OpEqual, string(padding)})
		last.Length1 += n
		last.Length2 += n
	} else if tail := []rune(last.Diffs[len(last.Diffs)-1].Text); n > len(tail) {
		extra := n - len(tail)
		last.Diffs[len(last.Diffs)-1].Text += string(padding[:extra])
		last.Length1 += extra
		last.Length2 += extra
	}
	return padding
}

// splitMax breaks patches whose source is wider than the bitap limit into
// overlapping smaller ones.
func (e *Engine) splitMax(patches []Patch) []Patch {
	size := matchMaxBits
	margin := e.opts.PatchMargin
	var out []Patch
	for _, big := range patches {
		if big.Length1 <= size {
			out = append(out, big)
			continue
		}
		start1, start2 := big.Start1, big.Start2
		var precontext []rune
		rest := toRuns(big.Diffs)
		for len(rest) != 0 {
			p := Patch{Start1: start1 - len(precontext), Start2: start2 - len(precontext)}
			empty := true
			var pr []run
			if len(precontext) != 0 {
				p.Length1, p.Length2 = len(precontext), len(precontext)
				pr = append(pr, run{OpEqual, precontext})
			}
			for len(rest) != 0 && p.Length1 < size-margin {
				op, text := rest[0].op, rest[0].text
				switch {
				case op == OpInsert:
					p.Length2 += len(text)
					start2 += len(text)
					pr = append(pr, rest[0])
					rest = rest[1:]
					empty = false
				case op == OpDelete && len(pr) == 1 && pr[0].op == OpEqual && len(text) > 2*size:
					// A huge deletion goes out whole.
					p.Length1 += len(text)
					start1 += len(text)
					empty = false
					pr = append(pr, run{op, text})
					rest = rest[1:]
				default:
					text = text[:min(len(text), size-p.Length1-margin)]
					p.Length1 += len(text)
					start1 += len(text)
					if op == OpEqual {
						p.Length2 += len(text)
						start2 += len(text)
					} else {
						empty = false
					}
					pr = append(pr, run{op, text})
					if len(text) == len(rest[0].text) {
						rest = rest[1:]
					} else {
						rest[0].text = rest[0].text[len(text):]
					}
				}
			}
			// Carry trailing context from this piece into the next one.
			precontext = []rune(Text2(toDiffs(pr)))
			precontext = precontext[max(0, len(precontext)-margin):]

			postcontext := []rune(Text1(toDiffs(rest)))
			postcontext = postcontext[:min(len(postcontext), margin)]
			if len(postcontext) != 0 {
				p.Length1 += len(postcontext)
				p.Length2 += len(postcontext)
				if len(pr) != 0 && pr[len(pr)-1].op == OpEqual {
					pr[len(pr)-1].text = concatRunes(pr[len(pr)-1].text, postcontext)
				} else {
					pr = append(pr, run{OpEqual, postcontext})
				}
			}
			if !empty {
				p.Diffs = toDiffs(pr)
				out = append(out, p)
			}
		}
	}
	return out
}

// PatchesToText serializes patches in GNU diff format.
func PatchesToText(patches []Patch) string {
	var sb strings.Builder
	for _, p := range patches {
		sb.WriteString(p.String())
	}
	return sb.String()
}

var patchHeader = regexp.MustCompile(`^@@ -(\d+),?(\d*) \+(\d+),?(\d*) @@$`)

// ErrMalformedPatch is returned by PatchesFromText for unparseable input.
var ErrMalformedPatch = errors.New("malformed patch")

// PatchesFromText parses the output of PatchesToText.
func PatchesFromText(text string) ([]Patch, error) {
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	var patches []Patch
	i := 0
	for i < len(lines) {
		if lines[i] == "" {
			i++
			continue
		}
		m := patchHeader.FindStringSubmatch(lines[i])
		if m == nil {
			return nil, fmt.Errorf("%w: bad header %q", ErrMalformedPatch, lines[i])
		}
		var p Patch
		p.Start1, p.Length1 = parseCoords(m[1], m[2])
		p.Start2, p.Length2 = parseCoords(m[3], m[4])
		i++
		for i < len(lines) {
			line := lines[i]
			if line == "" {
				i++
				continue
			}
			if line[0] == '@' {
				break
			}
			body, err := unescapePatchText(line[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
			}
			switch line[0] {
			case '-':
				p.Diffs = append(p.Diffs, Diff{OpDelete, body})
			case '+':
				p.Diffs = append(p.Diffs, Diff{OpInsert, body})
			case ' ':
				p.Diffs = append(p.Diffs, Diff{OpEqual, body})
			default:
				return nil, fmt.Errorf("%w: bad mode %q in %q", ErrMalformedPatch, line[0], line)
			}
			i++
		}
		patches = append(patches, p)
	}
	return patches, nil
}

func parseCoords(startStr, lengthStr string) (int, int) {
	start, _ := strconv.Atoi(startStr)
	switch lengthStr {
	case "":
		return start - 1, 1
	case "0":
		return start, 0
	}
	length, _ := strconv.Atoi(lengthStr)
	return start - 1, length
}
