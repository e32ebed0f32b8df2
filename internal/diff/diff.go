// Portions of this file are derived from diff-match-patch
// (Copyright 2018 The diff-match-patch Authors, Apache License 2.0,
// https://github.com/google/diff-match-patch) and from its Go port go-diff
// (Copyright (c) 2012-2016 The go-diff Authors, MIT License,
// https://github.com/sergi/go-diff). See NOTICE at the module root.

// Package diff computes minimal edit scripts between two texts, cleans them up
// so edit boundaries fall on semantic breaks, turns them into position-addressed
// Changes, and builds patches that can be re-applied to drifted text.
//
// Everything in this package is a pure function of its inputs. An Engine only
// carries immutable Options, so a single Engine may be shared by any number of
// goroutines.
//
// All offsets are rune offsets, never byte offsets.
package diff

import (
	"strings"
	"time"
)

// Operation is the kind of a Diff run.
type Operation int8

const (
	OpDelete Operation = -1
	OpEqual  Operation = 0
	OpInsert Operation = 1
)

func (o Operation) String() string {
	switch o {
	case OpDelete:
		return "delete"
	case OpInsert:
		return "insert"
	default:
		return "equal"
	}
}

// Diff is one contiguous run of an edit script.
type Diff struct {
	Op   Operation `json:"op"`
	Text string    `json:"text"`
}

// Options tunes the engine. The zero value is not useful; start from DefaultOptions.
type Options struct {
	// Timeout bounds a single diff computation. Zero means no deadline.
	Timeout time.Duration
	// LineModeThreshold is the rune length both middles must exceed before
	// the line-level pre-pass kicks in.
	LineModeThreshold int
	// MatchThreshold is the worst bitap score accepted (0.0 exact, 1.0 anything).
	MatchThreshold float64
	// MatchDistance is how far from the expected location a match may drift
	// before its score reaches 1.0. Zero requires the exact location.
	MatchDistance int
	// PatchDeleteThreshold rejects a fuzzy patch when the located window
	// differs from the expected one by more than this fraction.
	PatchDeleteThreshold float64
	// PatchMargin is the context padding around each patch.
	PatchMargin int
}

const matchMaxBits = 32

// DefaultOptions returns the tuning used across the engine unless configured otherwise.
func DefaultOptions() Options {
	return Options{
		Timeout:              time.Second,
		LineModeThreshold:    100,
		MatchThreshold:       0.5,
		MatchDistance:        1000,
		PatchDeleteThreshold: 0.5,
		PatchMargin:          4,
	}
}

// Engine is a stateless diff/patch engine.
type Engine struct {
	opts Options
}

// NewEngine creates an engine. Non-positive tuning values fall back to defaults.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.LineModeThreshold <= 0 {
		opts.LineModeThreshold = def.LineModeThreshold
	}
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = def.MatchThreshold
	}
	if opts.MatchDistance < 0 {
		opts.MatchDistance = def.MatchDistance
	}
	if opts.PatchDeleteThreshold <= 0 {
		opts.PatchDeleteThreshold = def.PatchDeleteThreshold
	}
	if opts.PatchMargin <= 0 {
		opts.PatchMargin = def.PatchMargin
	}
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}
	return &Engine{opts: opts}
}

// Options returns the engine's tuning.
func (e *Engine) Options() Options {
	return e.opts
}

// Diff computes a semantically cleaned edit script from a to b using the
// engine's timeout and line mode.
func (e *Engine) Diff(a, b string) []Diff {
	return CleanupSemantic(e.DiffDeadline(a, b, e.deadline(), true))
}

// DiffRaw is Diff without semantic cleanup. The script is minimal unless the
// deadline expired.
func (e *Engine) DiffRaw(a, b string) []Diff {
	return e.DiffDeadline(a, b, e.deadline(), true)
}

// DiffDeadline computes an uncleaned edit script. A zero deadline never expires.
// Once the deadline passes, unsolved sub-problems degrade to delete+insert.
func (e *Engine) DiffDeadline(a, b string, deadline time.Time, checkLines bool) []Diff {
	if a == b {
		if a == "" {
			return nil
		}
		return []Diff{{OpEqual, a}}
	}
	c := computer{deadline: deadline, lineThreshold: e.opts.LineModeThreshold}
	return toDiffs(c.main([]rune(a), []rune(b), checkLines))
}

func (e *Engine) deadline() time.Time {
	if e.opts.Timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(e.opts.Timeout)
}

// run is the working representation: all algorithms operate on runes so that
// line-mode encodings never round-trip through strings.
type run struct {
	op   Operation
	text []rune
}

func toRuns(diffs []Diff) []run {
	runs := make([]run, len(diffs))
	for i, d := range diffs {
		runs[i] = run{d.Op, []rune(d.Text)}
	}
	return runs
}

func toDiffs(runs []run) []Diff {
	if len(runs) == 0 {
		return nil
	}
	diffs := make([]Diff, 0, len(runs))
	for _, r := range runs {
		if len(r.text) == 0 {
			continue
		}
		diffs = append(diffs, Diff{r.op, string(r.text)})
	}
	return diffs
}

type computer struct {
	deadline      time.Time
	lineThreshold int
}

func (c *computer) expired() bool {
	return !c.deadline.IsZero() && time.Now().After(c.deadline)
}

func (c *computer) main(a, b []rune, checkLines bool) []run {
	if runesEqual(a, b) {
		if len(a) == 0 {
			return nil
		}
		return []run{{OpEqual, a}}
	}

	p := commonPrefixLen(a, b)
	prefix := a[:p]
	a, b = a[p:], b[p:]

	s := commonSuffixLen(a, b)
	suffix := a[len(a)-s:]
	a, b = a[:len(a)-s], b[:len(b)-s]

	runs := c.compute(a, b, checkLines)
	if len(prefix) > 0 {
		runs = append([]run{{OpEqual, prefix}}, runs...)
	}
	if len(suffix) > 0 {
		runs = append(runs, run{OpEqual, suffix})
	}
	return cleanupMerge(runs)
}

// compute diffs two texts that share no common prefix or suffix.
func (c *computer) compute(a, b []rune, checkLines bool) []run {
	if len(a) == 0 {
		return []run{{OpInsert, b}}
	}
	if len(b) == 0 {
		return []run{{OpDelete, a}}
	}

	long, short := a, b
	if len(a) < len(b) {
		long, short = b, a
	}
	if i := runesIndex(long, short, 0); i != -1 {
		op := OpInsert
		if len(a) > len(b) {
			op = OpDelete
		}
		return []run{
			{op, long[:i]},
			{OpEqual, short},
			{op, long[i+len(short):]},
		}
	}
	if len(short) == 1 {
		return []run{{OpDelete, a}, {OpInsert, b}}
	}

	if checkLines && len(a) > c.lineThreshold && len(b) > c.lineThreshold {
		return c.lineMode(a, b)
	}
	return c.bisect(a, b)
}

// lineMode diffs at line granularity first, then re-diffs replaced line
// blocks character by character.
func (c *computer) lineMode(a, b []rune) []run {
	ea, eb, lines := linesToRunes(a, b)
	runs := c.main(ea, eb, false)
	runs = runesToLines(runs, lines)
	runs = cleanupSemanticRuns(runs)

	runs = append(runs, run{OpEqual, nil})
	out := make([]run, 0, len(runs))
	var textDel, textIns []rune
	countDel, countIns := 0, 0
	for _, r := range runs {
		switch r.op {
		case OpInsert:
			countIns++
			textIns = append(textIns, r.text...)
		case OpDelete:
			countDel++
			textDel = append(textDel, r.text...)
		case OpEqual:
			if countDel >= 1 && countIns >= 1 {
				out = append(out, c.main(textDel, textIns, false)...)
			} else {
				if countDel > 0 {
					out = append(out, run{OpDelete, textDel})
				}
				if countIns > 0 {
					out = append(out, run{OpInsert, textIns})
				}
			}
			if len(r.text) > 0 {
				out = append(out, r)
			}
			countDel, countIns = 0, 0
			textDel, textIns = nil, nil
		}
	}
	return out
}

// bisect finds the middle snake of a Myers O(ND) search run from both ends
// and solves the two halves independently.
func (c *computer) bisect(a, b []rune) []run {
	n, m := len(a), len(b)
	maxD := (n + m + 1) / 2
	vOffset := maxD
	vLength := 2 * maxD
	v1 := make([]int, vLength)
	v2 := make([]int, vLength)
	for i := range v1 {
		v1[i] = -1
		v2[i] = -1
	}
	v1[vOffset+1] = 0
	v2[vOffset+1] = 0

	delta := n - m
	// With an odd delta the forward front collides with the reverse one.
	front := delta%2 != 0
	k1start, k1end, k2start, k2end := 0, 0, 0, 0

	for d := 0; d < maxD; d++ {
		if c.expired() {
			break
		}

		for k1 := -d + k1start; k1 <= d-k1end; k1 += 2 {
			k1Offset := vOffset + k1
			var x1 int
			if k1 == -d || (k1 != d && v1[k1Offset-1] < v1[k1Offset+1]) {
				x1 = v1[k1Offset+1]
			} else {
				x1 = v1[k1Offset-1] + 1
			}
			y1 := x1 - k1
			for x1 < n && y1 < m && a[x1] == b[y1] {
				x1++
				y1++
			}
			v1[k1Offset] = x1
			if x1 > n {
				k1end += 2
			} else if y1 > m {
				k1start += 2
			} else if front {
				k2Offset := vOffset + delta - k1
				if k2Offset >= 0 && k2Offset < vLength && v2[k2Offset] != -1 {
					x2 := n - v2[k2Offset]
					if x1 >= x2 {
						return c.bisectSplit(a, b, x1, y1)
					}
				}
			}
		}

		for k2 := -d + k2start; k2 <= d-k2end; k2 += 2 {
			k2Offset := vOffset + k2
			var x2 int
			if k2 == -d || (k2 != d && v2[k2Offset-1] < v2[k2Offset+1]) {
				x2 = v2[k2Offset+1]
			} else {
				x2 = v2[k2Offset-1] + 1
			}
			y2 := x2 - k2
			for x2 < n && y2 < m && a[n-x2-1] == b[m-y2-1] {
				x2++
				y2++
			}
			v2[k2Offset] = x2
			if x2 > n {
				k2end += 2
			} else if y2 > m {
				k2start += 2
			} else if !front {
				k1Offset := vOffset + delta - k2
				if k1Offset >= 0 && k1Offset < vLength && v1[k1Offset] != -1 {
					x1 := v1[k1Offset]
					y1 := vOffset + x1 - k1Offset
					if x1 >= n-x2 {
						return c.bisectSplit(a, b, x1, y1)
					}
				}
			}
		}
	}
	// Deadline hit or no overlap found.
	return []run{{OpDelete, a}, {OpInsert, b}}
}

func (c *computer) bisectSplit(a, b []rune, x, y int) []run {
	left := c.main(a[:x], b[:y], false)
	right := c.main(a[x:], b[y:], false)
	return append(left, right...)
}

// linesToRunes encodes every distinct line as a single rune so the line-level
// pass can reuse the character algorithms. lines[0] is a placeholder.
func linesToRunes(a, b []rune) ([]rune, []rune, []string) {
	lines := []string{""}
	index := make(map[string]int)
	return encodeLines(a, &lines, index), encodeLines(b, &lines, index), lines
}

func encodeLines(text []rune, lines *[]string, index map[string]int) []rune {
	var out []rune
	start := 0
	for start < len(text) {
		end := start
		for end < len(text) && text[end] != '\n' {
			end++
		}
		if end < len(text) {
			end++ // keep the newline with its line
		}
		line := string(text[start:end])
		id, ok := index[line]
		if !ok {
			*lines = append(*lines, line)
			id = len(*lines) - 1
			index[line] = id
		}
		out = append(out, rune(id))
		start = end
	}
	return out
}

func runesToLines(runs []run, lines []string) []run {
	out := make([]run, len(runs))
	for i, r := range runs {
		var sb strings.Builder
		for _, id := range r.text {
			sb.WriteString(lines[id])
		}
		out[i] = run{r.op, []rune(sb.String())}
	}
	return out
}

// commonPrefixLen finds the shared prefix length by binary search over
// candidate lengths.
func commonPrefixLen(a, b []rune) int {
	n := min(len(a), len(b))
	if n == 0 || a[0] != b[0] {
		return 0
	}
	lo, mid, hi, start := 0, n, n, 0
	for lo < mid {
		if runesEqual(a[start:mid], b[start:mid]) {
			lo = mid
			start = lo
		} else {
			hi = mid
		}
		mid = (hi-lo)/2 + lo
	}
	return mid
}

// commonSuffixLen is commonPrefixLen anchored at the ends.
func commonSuffixLen(a, b []rune) int {
	la, lb := len(a), len(b)
	n := min(la, lb)
	if n == 0 || a[la-1] != b[lb-1] {
		return 0
	}
	lo, mid, hi, end := 0, n, n, 0
	for lo < mid {
		if runesEqual(a[la-mid:la-end], b[lb-mid:lb-end]) {
			lo = mid
			end = lo
		} else {
			hi = mid
		}
		mid = (hi-lo)/2 + lo
	}
	return mid
}

// commonOverlapLen returns how many runes at the end of a equal the start of b.
func commonOverlapLen(a, b []rune) int {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if la > lb {
		a = a[la-lb:]
	} else if la < lb {
		b = b[:la]
	}
	n := min(la, lb)
	if runesEqual(a, b) {
		return n
	}
	best, length := 0, 1
	for {
		found := runesIndex(b, a[n-length:], 0)
		if found == -1 {
			return best
		}
		length += found
		if found == 0 || runesEqual(a[n-length:], b[:length]) {
			best = length
			length++
		}
	}
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// runesIndex returns the first index >= from where pattern occurs in text, or -1.
func runesIndex(text, pattern []rune, from int) int {
	if from < 0 {
		from = 0
	}
	if len(pattern) == 0 {
		if from <= len(text) {
			return from
		}
		return -1
	}
	for i := from; i+len(pattern) <= len(text); i++ {
		if text[i] == pattern[0] && runesEqual(text[i:i+len(pattern)], pattern) {
			return i
		}
	}
	return -1
}

// runesLastIndex returns the last index <= upto where pattern occurs in text, or -1.
func runesLastIndex(text, pattern []rune, upto int) int {
	if upto > len(text)-len(pattern) {
		upto = len(text) - len(pattern)
	}
	for i := upto; i >= 0; i-- {
		if runesEqual(text[i:i+len(pattern)], pattern) {
			return i
		}
	}
	return -1
}

func concatRunes(parts ...[]rune) []rune {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]rune, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Text1 reconstructs the source text of a script.
func Text1(diffs []Diff) string {
	var sb strings.Builder
	for _, d := range diffs {
		if d.Op != OpInsert {
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}

// Text2 reconstructs the destination text of a script.
func Text2(diffs []Diff) string {
	var sb strings.Builder
	for _, d := range diffs {
		if d.Op != OpDelete {
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}

// Levenshtein counts inserted, deleted or substituted runes in a script.
func Levenshtein(diffs []Diff) int {
	total, ins, del := 0, 0, 0
	for _, d := range diffs {
		n := len([]rune(d.Text))
		switch d.Op {
		case OpInsert:
			ins += n
		case OpDelete:
			del += n
		case OpEqual:
			total += max(ins, del)
			ins, del = 0, 0
		}
	}
	return total + max(ins, del)
}

// XIndex maps a rune offset in the source text to the destination text.
// Offsets inside a deletion map to the start of that deletion.
func XIndex(diffs []Diff, loc int) int {
	chars1, chars2 := 0, 0
	lastChars1, lastChars2 := 0, 0
	var last *Diff
	for i := range diffs {
		d := &diffs[i]
		n := len([]rune(d.Text))
		if d.Op != OpInsert {
			chars1 += n
		}
		if d.Op != OpDelete {
			chars2 += n
		}
		if chars1 > loc {
			last = d
			break
		}
		lastChars1, lastChars2 = chars1, chars2
	}
	if last != nil && last.Op == OpDelete {
		return lastChars2
	}
	return lastChars2 + (loc - lastChars1)
}
