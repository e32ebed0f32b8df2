package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editguard/internal/constraint"
	"editguard/internal/diff"
	"editguard/internal/rules"
)

func compile(t *testing.T, in ...rules.RuleText) *constraint.Ruleset {
	t.Helper()
	rs, _, err := constraint.NewCompiler(nil).Compile(rules.ParseAll(in), constraint.Options{Timeout: 30 * time.Second})
	require.NoError(t, err)
	return rs
}

func changesOf(original, corrected string) []diff.Change {
	return diff.NewEngine(diff.DefaultOptions()).Changes(original, corrected)
}

func TestPostCheck_GrammarWithLimit(t *testing.T) {
	rs := compile(t,
		rules.RuleText{Text: "Fix grammar and spelling", Category: rules.CategoryAllowed},
		rules.RuleText{Text: "Change no more than 10% of the text", Category: rules.CategoryBoundary},
	)
	original := "i went to the store yesterday."
	corrected := "I went to the store yesterday."

	rep := New(nil).PostCheck(rs, original, corrected, changesOf(original, corrected))
	assert.True(t, rep.Passed)
	assert.Empty(t, rep.Errors)
	assert.Empty(t, rep.Warnings)
	assert.Equal(t, 0.0, rep.ChangeRatio)
	assert.InDelta(t, 1.0/30, rep.EditRatio, 1e-9)
}

func TestPostCheck_RatioExceeded(t *testing.T) {
	rs := compile(t, rules.RuleText{Text: "Change no more than 10% of the text", Category: rules.CategoryBoundary})
	original := "Short text here."
	corrected := "Short text here, with a much longer tail appended."

	rep := New(nil).PostCheck(rs, original, corrected, changesOf(original, corrected))
	assert.False(t, rep.Passed)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, constraint.PredMaxChangeRatio, rep.Errors[0].Predicate)
	assert.Contains(t, rep.Errors[0].Message, "exceeds limit 10.0%")
}

func TestPostCheck_RatioApproaching(t *testing.T) {
	rs := compile(t, rules.RuleText{Text: "Change no more than 10% of the text", Category: rules.CategoryBoundary})
	original := "abcdefghij" // one extra rune lands exactly on the limit
	corrected := "abcdefghijk"

	rep := New(nil).PostCheck(rs, original, corrected, changesOf(original, corrected))
	assert.True(t, rep.Passed)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, constraint.SeverityWarning, rep.Warnings[0].Severity)
	assert.Contains(t, rep.Warnings[0].Message, "approaching")
}

func TestPostCheck_EmptyOutput(t *testing.T) {
	rs := compile(t, rules.RuleText{Text: "Fix grammar", Category: rules.CategoryAllowed})
	rep := New(nil).PostCheck(rs, "hello there.", "   ", nil)
	assert.False(t, rep.Passed)
	var names []string
	for _, e := range rep.Errors {
		names = append(names, e.Predicate)
	}
	assert.Contains(t, names, constraint.PredOutputNotEmpty)
}

func TestPostCheck_Predicates(t *testing.T) {
	v := New(nil)
	tests := []struct {
		name      string
		pred      constraint.Predicate
		original  string
		corrected string
		fails     bool
	}{
		{"sentences kept", constraint.Predicate{Name: constraint.PredSentenceCountPreserved}, "One. Two.", "One! Two.", false},
		{"sentences merged", constraint.Predicate{Name: constraint.PredSentenceCountPreserved}, "One. Two.", "One and two.", true},
		{"fragment counts", constraint.Predicate{Name: constraint.PredSentenceCountPreserved}, "One. two", "One. Two.", false},
		{"emphasis kept", constraint.Predicate{Name: constraint.PredEmphasisPreserved}, "Wow! Really?", "Wow! Really?", false},
		{"emphasis dropped", constraint.Predicate{Name: constraint.PredEmphasisPreserved}, "Wow! Really?", "Wow. Really?", true},
		{"pronoun case ignored", constraint.Predicate{Name: constraint.PredPronounsPreserved}, "i think you know", "I think you know", false},
		{"pronoun replaced", constraint.Predicate{Name: constraint.PredPronounsPreserved}, "I think you know", "One thinks you know", true},
		{"content kept", constraint.Predicate{Name: constraint.PredContentWordsPreserved, Params: map[string]float64{"min_overlap": 0.9}},
			"the quick brown fox jumps", "The quick brown fox jumps.", false},
		{"content lost", constraint.Predicate{Name: constraint.PredContentWordsPreserved, Params: map[string]float64{"min_overlap": 0.9}},
			"the quick brown fox jumps", "a slow red dog sits", true},
		{"lines kept", constraint.Predicate{Name: constraint.PredLineStructurePreserved}, "a\nb", "A\nB", false},
		{"lines joined", constraint.Predicate{Name: constraint.PredLineStructurePreserved}, "a\nb", "a b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pred.Severity = constraint.SeverityError
			rs := &constraint.Ruleset{Predicates: []constraint.Predicate{tt.pred}}
			rep := v.PostCheck(rs, tt.original, tt.corrected, nil)
			assert.Equal(t, tt.fails, !rep.Passed, "errors: %v", rep.Errors)
		})
	}
}

func TestPostCheck_WordsPerChange(t *testing.T) {
	rs := &constraint.Ruleset{Predicates: []constraint.Predicate{{
		Name: constraint.PredMaxWordsPerChange, Severity: constraint.SeverityWarning,
		Params: map[string]float64{"max": 3},
	}}}
	changes := []diff.Change{
		{ID: "chg_001", Removed: "teh", Inserted: "the"},
		{ID: "chg_002", Removed: "a b", Inserted: "one two three four"},
	}
	rep := New(nil).PostCheck(rs, "irrelevant", "irrelevant", changes)
	assert.True(t, rep.Passed)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0].Message, "chg_002 touches 4 words")
}

func TestPostCheck_UnknownPredicate(t *testing.T) {
	rs := &constraint.Ruleset{Predicates: []constraint.Predicate{{Name: "rhymes", Severity: constraint.SeverityError}}}
	rep := New(nil).PostCheck(rs, "a", "b", nil)
	assert.True(t, rep.Passed)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, "rhymes", rep.Warnings[0].Predicate)
}

func TestPreCheck(t *testing.T) {
	v := New(nil)

	t.Run("compiled ruleset passes", func(t *testing.T) {
		rs := compile(t, rules.RuleText{Text: "Fix grammar", Category: rules.CategoryAllowed})
		rep := v.PreCheck(rs)
		assert.True(t, rep.Passed)
		assert.Empty(t, rep.Warnings)
	})

	t.Run("nil", func(t *testing.T) {
		assert.False(t, v.PreCheck(nil).Passed)
	})

	t.Run("bad values", func(t *testing.T) {
		rs := &constraint.Ruleset{
			Constraints: []constraint.Constraint{{
				ID: "length_limit_1", Kind: constraint.KindLengthLimit,
				Params: constraint.Params{MaxChangeRatio: 1.5},
			}},
		}
		rep := v.PreCheck(rs)
		assert.False(t, rep.Passed)
		assert.Len(t, rep.Errors, 2) // timeout and ratio
		var warned []string
		for _, w := range rep.Warnings {
			warned = append(warned, w.Predicate)
		}
		assert.Contains(t, warned, "predicates")
		assert.Contains(t, warned, constraint.PredOutputNotEmpty)
	})

	t.Run("conflicting limits", func(t *testing.T) {
		rs := compile(t,
			rules.RuleText{Text: "Change no more than 10% of the text", Category: rules.CategoryBoundary},
			rules.RuleText{Text: "Change no more than 20% of the text", Category: rules.CategoryBoundary},
		)
		rep := v.PreCheck(rs)
		assert.True(t, rep.Passed)
		require.Len(t, rep.Warnings, 1)
		assert.Equal(t, "length_limit_1,length_limit_2", rep.Warnings[0].Constraint)
	})
}

func TestChangeRatio(t *testing.T) {
	assert.Equal(t, 0.0, ChangeRatio("", ""))
	assert.Equal(t, 1.0, ChangeRatio("", "x"))
	assert.Equal(t, 0.5, ChangeRatio("abcd", "ab"))
	assert.Equal(t, 0.25, ChangeRatio("café", "cafés"))
}
