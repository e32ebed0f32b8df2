// Package validate checks compiled rulesets for consistency before a
// correction runs, and checks the resulting changes against them afterwards.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"editguard/internal/constraint"
	"editguard/internal/diff"
	"editguard/internal/logging"
)

// approachFraction of a ratio limit triggers an advisory warning.
const approachFraction = 0.8

// Issue is one finding of a check.
type Issue struct {
	Predicate  string              `json:"predicate"`
	Severity   constraint.Severity `json:"severity"`
	Message    string              `json:"message"`
	Constraint string              `json:"constraint,omitempty"`
}

func (i Issue) String() string {
	if i.Constraint != "" {
		return fmt.Sprintf("%s (%s): %s", i.Predicate, i.Constraint, i.Message)
	}
	return i.Predicate + ": " + i.Message
}

// Report collects the findings of one check.
type Report struct {
	Passed      bool    `json:"passed"`
	Errors      []Issue `json:"errors,omitempty"`
	Warnings    []Issue `json:"warnings,omitempty"`
	ChangeRatio float64 `json:"change_ratio"`
	EditRatio   float64 `json:"edit_ratio"`
}

func (r *Report) add(i Issue) {
	if i.Severity == constraint.SeverityError {
		r.Errors = append(r.Errors, i)
	} else {
		r.Warnings = append(r.Warnings, i)
	}
}

func (r *Report) finish() Report {
	r.Passed = len(r.Errors) == 0
	return *r
}

// Validator is stateless apart from its logger and safe for concurrent use.
type Validator struct {
	logger *zap.Logger
}

// New returns a validator logging through l (nil is allowed).
func New(l *zap.Logger) *Validator {
	return &Validator{logger: logging.For(l, logging.CategoryValidate)}
}

// PreCheck inspects a ruleset before execution.
func (v *Validator) PreCheck(rs *constraint.Ruleset) Report {
	var r Report
	if rs == nil {
		r.add(Issue{Predicate: "ruleset", Severity: constraint.SeverityError, Message: "no ruleset"})
		return r.finish()
	}
	if len(rs.Constraints) == 0 {
		r.add(Issue{Predicate: "ruleset", Severity: constraint.SeverityError, Message: "ruleset has no constraints"})
	}
	if rs.Execution.Timeout <= 0 {
		r.add(Issue{Predicate: "timeout", Severity: constraint.SeverityError, Message: fmt.Sprintf("non-positive timeout %v", rs.Execution.Timeout)})
	}

	for _, c := range rs.Constraints {
		own := 0
		for _, p := range c.Predicates {
			if p.Name != constraint.PredOutputNotEmpty {
				own++
			}
		}
		if own == 0 {
			r.add(Issue{Predicate: "predicates", Severity: constraint.SeverityWarning, Constraint: c.ID,
				Message: "constraint declares no validation predicates"})
		}
		if c.Kind == constraint.KindLengthLimit {
			if ratio := c.Params.MaxChangeRatio; ratio < 0 || ratio > 1 || math.IsNaN(ratio) {
				r.add(Issue{Predicate: constraint.PredMaxChangeRatio, Severity: constraint.SeverityError, Constraint: c.ID,
					Message: fmt.Sprintf("ratio %v outside [0,1]", ratio)})
			}
		}
	}

	if !hasPredicate(rs.Predicates, constraint.PredOutputNotEmpty) {
		r.add(Issue{Predicate: constraint.PredOutputNotEmpty, Severity: constraint.SeverityWarning, Message: "universal predicate missing"})
	}
	for _, w := range constraint.DetectConflicts(rs.Constraints) {
		if w.Code == constraint.WarnLengthLimits {
			r.add(Issue{Predicate: constraint.PredMaxChangeRatio, Severity: constraint.SeverityWarning,
				Constraint: strings.Join(w.Constraints, ","), Message: w.Message})
		}
	}

	rep := r.finish()
	v.logger.Debug("pre-check", zap.Bool("passed", rep.Passed), zap.Int("errors", len(rep.Errors)), zap.Int("warnings", len(rep.Warnings)))
	return rep
}

// PostCheck evaluates every ruleset predicate against the corrected text.
func (v *Validator) PostCheck(rs *constraint.Ruleset, original, corrected string, changes []diff.Change) Report {
	r := Report{
		ChangeRatio: ChangeRatio(original, corrected),
		EditRatio:   EditRatio(original, changes),
	}
	if rs == nil {
		r.add(Issue{Predicate: "ruleset", Severity: constraint.SeverityError, Message: "no ruleset"})
		return r.finish()
	}
	for _, p := range rs.Predicates {
		for _, i := range v.evaluate(p, original, corrected, changes, r.ChangeRatio) {
			r.add(i)
		}
	}
	rep := r.finish()
	v.logger.Debug("post-check",
		zap.Bool("passed", rep.Passed),
		zap.Float64("change_ratio", rep.ChangeRatio),
		zap.Int("errors", len(rep.Errors)),
		zap.Int("warnings", len(rep.Warnings)))
	return rep
}

func (v *Validator) evaluate(p constraint.Predicate, original, corrected string, changes []diff.Change, ratio float64) []Issue {
	fail := func(format string, args ...any) []Issue {
		return []Issue{{Predicate: p.Name, Severity: p.Severity, Message: fmt.Sprintf(format, args...)}}
	}

	switch p.Name {
	case constraint.PredOutputNotEmpty:
		if strings.TrimSpace(corrected) == "" {
			return fail("corrected text is empty")
		}

	case constraint.PredMaxChangeRatio:
		limit := p.Param("max", constraint.DefaultMaxChangeRatio)
		if ratio > limit {
			return fail("change ratio %.1f%% exceeds limit %.1f%%", ratio*100, limit*100)
		}
		if limit > 0 && ratio >= approachFraction*limit {
			return []Issue{{Predicate: p.Name, Severity: constraint.SeverityWarning,
				Message: fmt.Sprintf("change ratio %.1f%% is approaching limit %.1f%%", ratio*100, limit*100)}}
		}

	case constraint.PredMaxWordsPerChange:
		limit := int(p.Param("max", constraint.DefaultMaxWordsPerChange))
		var issues []Issue
		for _, c := range changes {
			if n := max(len(strings.Fields(c.Removed)), len(strings.Fields(c.Inserted))); n > limit {
				issues = append(issues, Issue{Predicate: p.Name, Severity: p.Severity,
					Message: fmt.Sprintf("change %s touches %d words (max %d)", c.ID, n, limit)})
			}
		}
		return issues

	case constraint.PredSentenceCountPreserved:
		if a, b := sentenceCount(original), sentenceCount(corrected); a != b {
			return fail("sentence count changed from %d to %d", a, b)
		}

	case constraint.PredEmphasisPreserved:
		if a, b := emphasisCount(original), emphasisCount(corrected); a != b {
			return fail("emphasis marks changed from %d to %d", a, b)
		}

	case constraint.PredPronounsPreserved:
		if a, b := pronounCounts(original), pronounCounts(corrected); !sameCounts(a, b) {
			return fail("first/second person pronouns changed")
		}

	case constraint.PredContentWordsPreserved:
		minOverlap := p.Param("min_overlap", constraint.DefaultMinContentOverlap)
		if overlap := contentOverlap(original, corrected); overlap < minOverlap {
			return fail("content word overlap %.2f below %.2f", overlap, minOverlap)
		}

	case constraint.PredLineStructurePreserved:
		if a, b := strings.Count(original, "\n"), strings.Count(corrected, "\n"); a != b {
			return fail("line count changed from %d to %d", a+1, b+1)
		}

	default:
		v.logger.Warn("unknown predicate", zap.String("predicate", p.Name))
		return []Issue{{Predicate: p.Name, Severity: constraint.SeverityWarning, Message: "unknown predicate skipped"}}
	}
	return nil
}

// ChangeRatio is |len(corrected) - len(original)| / len(original) in runes.
// An empty original yields 0 for an empty correction and 1 otherwise.
func ChangeRatio(original, corrected string) float64 {
	a, b := len([]rune(original)), len([]rune(corrected))
	if a == 0 {
		if b == 0 {
			return 0
		}
		return 1
	}
	return math.Abs(float64(b-a)) / float64(a)
}

// EditRatio is the share of the original touched by changes, counting each
// change by the longer of its removed and inserted text.
func EditRatio(original string, changes []diff.Change) float64 {
	n := len([]rune(original))
	touched := 0
	for _, c := range changes {
		touched += max(len([]rune(c.Removed)), len([]rune(c.Inserted)))
	}
	if n == 0 {
		if touched == 0 {
			return 0
		}
		return 1
	}
	return float64(touched) / float64(n)
}

var sentenceEnd = regexp.MustCompile(`[.!?]+(\s|$)`)

func sentenceCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	n := len(sentenceEnd.FindAllStringIndex(text, -1))
	if !strings.ContainsAny(text[len(text)-1:], ".!?") {
		n++ // trailing fragment
	}
	return n
}

func emphasisCount(text string) int {
	return strings.Count(text, "!") + strings.Count(text, "?")
}

func contentOverlap(original, corrected string) float64 {
	a, b := contentWords(original), contentWords(corrected)
	if len(a) == 0 {
		return 1
	}
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}

func sameCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func hasPredicate(ps []constraint.Predicate, name string) bool {
	for _, p := range ps {
		if p.Name == name {
			return true
		}
	}
	return false
}
