// Package constraint compiles parsed rules into typed, checkable constraints
// and assembles them into a Ruleset with execution parameters.
package constraint

import (
	"time"
)

// Kind is the closed set of constraint kinds.
type Kind string

const (
	KindGrammarOnly      Kind = "grammar_only"
	KindPreserveTone     Kind = "preserve_tone"
	KindNoContentChange  Kind = "no_content_change"
	KindLengthLimit      Kind = "length_limit"
	KindStyleConsistency Kind = "style_consistency"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{KindGrammarOnly, KindPreserveTone, KindNoContentChange, KindLengthLimit, KindStyleConsistency}

// basePriority orders kinds before confidence is added.
var basePriority = map[Kind]int{
	KindGrammarOnly:      70,
	KindPreserveTone:     75,
	KindNoContentChange:  80,
	KindLengthLimit:      85,
	KindStyleConsistency: 60,
}

// HighPriority is the threshold above which constraints count as high priority.
const HighPriority = 80

// Severity of a failed predicate.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Predicate names.
const (
	PredMaxWordsPerChange      = "max_words_per_change"
	PredSentenceCountPreserved = "sentence_count_preserved"
	PredEmphasisPreserved      = "emphasis_preserved"
	PredPronounsPreserved      = "pronouns_preserved"
	PredContentWordsPreserved  = "content_words_preserved"
	PredMaxChangeRatio         = "max_change_ratio"
	PredLineStructurePreserved = "line_structure_preserved"
	PredOutputNotEmpty         = "output_not_empty"
)

// Defaults applied during compilation.
const (
	DefaultMaxChangeRatio    = 0.25
	DefaultMaxWordsPerChange = 3
	DefaultMinContentOverlap = 0.9
)

// Predicate is a machine-checkable condition evaluated after correction.
type Predicate struct {
	Name     string             `json:"name"`
	Severity Severity           `json:"severity"`
	Params   map[string]float64 `json:"params,omitempty"`
}

// Param returns a numeric parameter or fallback when absent.
func (p Predicate) Param(key string, fallback float64) float64 {
	if v, ok := p.Params[key]; ok {
		return v
	}
	return fallback
}

// Params carries kind-specific parameters.
type Params struct {
	MaxChangeRatio    float64  `json:"max_change_ratio,omitempty"`
	MaxWordsPerChange int      `json:"max_words_per_change,omitempty"`
	MinContentOverlap float64  `json:"min_content_overlap,omitempty"`
	Scope             string   `json:"scope,omitempty"`
	Comparison        string   `json:"comparison,omitempty"`
	Tolerance         float64  `json:"tolerance,omitempty"`
	Topics            []string `json:"topics,omitempty"`
	Context           []string `json:"context,omitempty"`
}

// Constraint is pure data derived from one parsed rule.
type Constraint struct {
	ID         string      `json:"id"`
	Kind       Kind        `json:"kind"`
	Params     Params      `json:"params"`
	Priority   int         `json:"priority"`
	Predicates []Predicate `json:"predicates"`
	Source     string      `json:"source,omitempty"`
}

// Execution holds the dispatch parameters of a Ruleset.
type Execution struct {
	Timeout           time.Duration `json:"timeout"`
	RetryCount        int           `json:"retry_count"`
	PreferredBackends []string      `json:"preferred_backends,omitempty"`
	FallbackPolicy    string        `json:"fallback_policy"`
}

// Ruleset is the compiled rule set for one request.
type Ruleset struct {
	Constraints []Constraint `json:"constraints"`
	Predicates  []Predicate  `json:"predicates"`
	Execution   Execution    `json:"execution"`
	CompiledAt  time.Time    `json:"compiled_at"`
	Digest      string       `json:"digest"`
}

// Has reports whether any constraint is of kind k.
func (r *Ruleset) Has(k Kind) bool {
	for _, c := range r.Constraints {
		if c.Kind == k {
			return true
		}
	}
	return false
}

// Kinds returns the distinct kinds present, in constraint order.
func (r *Ruleset) Kinds() []Kind {
	var out []Kind
	seen := make(map[Kind]bool)
	for _, c := range r.Constraints {
		if !seen[c.Kind] {
			seen[c.Kind] = true
			out = append(out, c.Kind)
		}
	}
	return out
}

// MaxChangeRatio returns the strictest length limit, if any.
func (r *Ruleset) MaxChangeRatio() (float64, bool) {
	limit, found := 0.0, false
	for _, c := range r.Constraints {
		if c.Kind != KindLengthLimit {
			continue
		}
		if !found || c.Params.MaxChangeRatio < limit {
			limit, found = c.Params.MaxChangeRatio, true
		}
	}
	return limit, found
}
