package diff

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ChangeKind classifies a Change.
type ChangeKind string

const (
	ChangeInsert  ChangeKind = "insert"
	ChangeDelete  ChangeKind = "delete"
	ChangeReplace ChangeKind = "replace"
)

// Change is a position-addressed edit against the original text.
// [Start, End) is a half-open rune range; inserts have Start == End.
type Change struct {
	ID         string     `json:"id"`
	Kind       ChangeKind `json:"kind"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Removed    string     `json:"removed,omitempty"`
	Inserted   string     `json:"inserted,omitempty"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	Source     string     `json:"source"`
}

// DefaultChangeSource tags Changes produced by this package.
const DefaultChangeSource = "diff"

// Changes diffs original against corrected and returns the resulting edits.
// Identical texts return nil without running the diff.
func (e *Engine) Changes(original, corrected string) []Change {
	if original == corrected {
		return nil
	}
	return ExtractChanges(e.Diff(original, corrected), DefaultChangeSource)
}

// ExtractChanges walks a script left to right. A deletion directly followed
// by an insertion becomes one replace.
func ExtractChanges(diffs []Diff, source string) []Change {
	var changes []Change
	cursor := 0
	emit := func(kind ChangeKind, start, end int, removed, inserted string) {
		conf, why := assess(kind, removed, inserted)
		changes = append(changes, Change{
			ID:         fmt.Sprintf("chg_%03d", len(changes)+1),
			Kind:       kind,
			Start:      start,
			End:        end,
			Removed:    removed,
			Inserted:   inserted,
			Confidence: conf,
			Reasoning:  why,
			Source:     source,
		})
	}

	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		n := len([]rune(d.Text))
		switch d.Op {
		case OpEqual:
			cursor += n
		case OpDelete:
			if i+1 < len(diffs) && diffs[i+1].Op == OpInsert {
				emit(ChangeReplace, cursor, cursor+n, d.Text, diffs[i+1].Text)
				i++
			} else {
				emit(ChangeDelete, cursor, cursor+n, d.Text, "")
			}
			cursor += n
		case OpInsert:
			emit(ChangeInsert, cursor, cursor, "", d.Text)
		}
	}
	return changes
}

// assess gives a change a heuristic confidence and a short human reason.
func assess(kind ChangeKind, removed, inserted string) (float64, string) {
	switch kind {
	case ChangeInsert:
		if isPunctuation(inserted) {
			return 0.95, "punctuation added"
		}
		if strings.TrimSpace(inserted) == "" {
			return 0.95, "whitespace added"
		}
		return wordPenalty(0.85, inserted), "text inserted"
	case ChangeDelete:
		if isPunctuation(removed) {
			return 0.95, "punctuation removed"
		}
		if strings.TrimSpace(removed) == "" {
			return 0.95, "whitespace removed"
		}
		return wordPenalty(0.8, removed), "text removed"
	}
	switch {
	case strings.EqualFold(removed, inserted):
		return 0.99, "capitalization corrected"
	case strings.TrimSpace(removed) == "" && strings.TrimSpace(inserted) == "":
		return 0.95, "whitespace normalized"
	case isPunctuation(removed) && isPunctuation(inserted):
		return 0.95, "punctuation corrected"
	case len(strings.Fields(removed)) <= 1 && len(strings.Fields(inserted)) <= 1:
		return 0.9, "word corrected"
	}
	return wordPenalty(0.9, removed+" "+inserted), "phrase rewritten"
}

// wordPenalty lowers confidence by 0.05 per word past the first, floored at 0.5.
func wordPenalty(base float64, text string) float64 {
	words := len(strings.Fields(text))
	if words > 1 {
		base -= 0.05 * float64(words-1)
	}
	return max(base, 0.5)
}

func isPunctuation(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return strings.TrimSpace(s) != ""
}

// ErrChangeMismatch reports a change whose removed text is not found at its range.
type ErrChangeMismatch struct {
	Change Change
	Found  string
}

func (e *ErrChangeMismatch) Error() string {
	return fmt.Sprintf("change %s: expected %q at [%d,%d), found %q",
		e.Change.ID, e.Change.Removed, e.Change.Start, e.Change.End, e.Found)
}

// ApplyChanges applies changes to text by range replacement in descending
// range order so earlier offsets stay valid. Each change's removed text must
// match the text at its range.
func ApplyChanges(text string, changes []Change) (string, error) {
	if len(changes) == 0 {
		return text, nil
	}
	ordered := make([]Change, len(changes))
	copy(ordered, changes)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start > ordered[j].Start
		}
		return ordered[i].End > ordered[j].End
	})

	r := []rune(text)
	for _, c := range ordered {
		if c.Start < 0 || c.End < c.Start || c.End > len(r) {
			return "", fmt.Errorf("change %s: range [%d,%d) outside text of length %d", c.ID, c.Start, c.End, len(r))
		}
		if found := string(r[c.Start:c.End]); found != c.Removed {
			return "", &ErrChangeMismatch{Change: c, Found: found}
		}
		r = concatRunes(r[:c.Start], []rune(c.Inserted), r[c.End:])
	}
	return string(r), nil
}
