package constraint

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"editguard/internal/faults"
	"editguard/internal/logging"
	"editguard/internal/rules"
)

// Fatal compilation errors.
var (
	ErrNoConstraints   = errors.New("ruleset has no constraints")
	ErrInvalidTimeout  = errors.New("ruleset timeout must be positive")
	ErrRatioOutOfRange = errors.New("max change ratio outside [0,1]")
	ErrDigestFailed    = errors.New("ruleset digest failed")
)

// Warning codes.
const (
	WarnDroppedRule        = "dropped_rule"
	WarnGrammarStyle       = "grammar_style_conflict"
	WarnLengthLimits       = "length_limit_conflict"
	WarnExcessHighPriority = "excess_high_priority"
)

// Warning is a non-fatal compilation finding.
type Warning struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Constraints []string `json:"constraints,omitempty"`
}

func (w Warning) String() string {
	return w.Code + ": " + w.Message
}

// Fallback policies.
const (
	FallbackSequential = "sequential"
	FallbackNone       = "none"
)

// Options carries the execution parameters stamped on the Ruleset.
type Options struct {
	Timeout           time.Duration
	RetryCount        int
	PreferredBackends []string
	FallbackPolicy    string
	Now               func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// Compiler maps parsed rules to constraints. It is stateless apart from its logger.
type Compiler struct {
	logger *zap.Logger
}

// NewCompiler returns a compiler logging through l (nil is allowed).
func NewCompiler(l *zap.Logger) *Compiler {
	return &Compiler{logger: logging.For(l, logging.CategoryCompiler)}
}

// Compile turns parsed rules into a Ruleset. Unrecognized rules are dropped
// with a warning; conflicts are reported as warnings. Zero constraints, a
// non-positive timeout or an out-of-range ratio are fatal.
func (c *Compiler) Compile(parsed []rules.ParsedRule, opts Options) (*Ruleset, []Warning, error) {
	var constraints []Constraint
	var warnings []Warning
	for _, p := range parsed {
		con, ok := c.constraintFor(p, len(constraints)+1)
		if !ok {
			w := Warning{Code: WarnDroppedRule, Message: fmt.Sprintf("no constraint kind for %s rule %q", p.Intent, p.Source)}
			c.logger.Warn("dropping rule", zap.String("intent", string(p.Intent)), zap.String("rule", p.Source))
			warnings = append(warnings, w)
			continue
		}
		constraints = append(constraints, con)
	}

	rs, more, err := c.Assemble(constraints, opts)
	return rs, append(warnings, more...), err
}

// Assemble builds a Ruleset from constraints that are already compiled, for
// example ones cached from an earlier request or shipped with a mode.
func (c *Compiler) Assemble(constraints []Constraint, opts Options) (*Ruleset, []Warning, error) {
	if len(constraints) == 0 {
		return nil, nil, faults.Wrap(ErrNoConstraints, faults.CategoryCompileFailed, "no_constraints",
			"add at least one allowed, forbidden, focus or boundary rule", false)
	}
	if opts.Timeout <= 0 {
		return nil, nil, faults.Wrap(fmt.Errorf("%w: %v", ErrInvalidTimeout, opts.Timeout),
			faults.CategoryCompileFailed, "invalid_timeout", "configure engine.timeout", false)
	}
	for _, con := range constraints {
		if con.Kind != KindLengthLimit {
			continue
		}
		if r := con.Params.MaxChangeRatio; r < 0 || r > 1 || math.IsNaN(r) {
			return nil, nil, faults.Wrap(fmt.Errorf("%w: %s has %v", ErrRatioOutOfRange, con.ID, r),
				faults.CategoryCompileFailed, "ratio_out_of_range", "use a percentage between 0 and 100", false)
		}
	}

	policy := opts.FallbackPolicy
	if policy == "" {
		policy = FallbackSequential
	}
	rs := &Ruleset{
		Constraints: constraints,
		Predicates:  collectPredicates(constraints),
		Execution: Execution{
			Timeout:           opts.Timeout,
			RetryCount:        opts.RetryCount,
			PreferredBackends: opts.PreferredBackends,
			FallbackPolicy:    policy,
		},
		CompiledAt: opts.now(),
	}

	digest, err := DigestJSON(constraints)
	if err != nil {
		return nil, nil, faults.Wrap(fmt.Errorf("%w: %v", ErrDigestFailed, err), faults.CategoryInternalFailure, "digest_failed", "", false)
	}
	rs.Digest = digest

	warnings := DetectConflicts(constraints)
	for _, w := range warnings {
		c.logger.Warn("constraint conflict", zap.String("code", w.Code), zap.Strings("constraints", w.Constraints))
	}
	c.logger.Debug("ruleset compiled",
		zap.Int("constraints", len(constraints)),
		zap.Int("predicates", len(rs.Predicates)),
		zap.String("digest", digest))
	return rs, warnings, nil
}

func (c *Compiler) constraintFor(p rules.ParsedRule, n int) (Constraint, bool) {
	kind, ok := kindFor(p)
	if !ok {
		return Constraint{}, false
	}
	params := Params{
		Scope:      p.Params.Scope,
		Comparison: p.Params.Comparison,
		Tolerance:  p.Params.Tolerance,
		Topics:     p.Params.Topics,
		Context:    p.Params.Context,
	}
	switch kind {
	case KindLengthLimit:
		params.MaxChangeRatio = DefaultMaxChangeRatio
		if len(p.Params.Percentages) > 0 {
			params.MaxChangeRatio = p.Params.Percentages[0] / 100
		}
	case KindGrammarOnly:
		params.MaxWordsPerChange = DefaultMaxWordsPerChange
	case KindNoContentChange:
		params.MinContentOverlap = DefaultMinContentOverlap
	}
	return Constraint{
		ID:         fmt.Sprintf("%s_%d", kind, n),
		Kind:       kind,
		Params:     params,
		Priority:   basePriority[kind] + int(math.Round(p.Confidence*10)),
		Predicates: predicatesFor(kind, params),
		Source:     p.Source,
	}, true
}

// kindFor is the fixed rule-to-kind lookup.
func kindFor(p rules.ParsedRule) (Kind, bool) {
	t := p.Params
	switch p.Intent {
	case rules.IntentPermission:
		if t.HasTopic("grammar") || t.HasTopic("spelling") || t.HasTopic("punctuation") {
			return KindGrammarOnly, true
		}
	case rules.IntentProhibition:
		if t.HasTopic("voice") || t.HasTopic("tone") {
			return KindPreserveTone, true
		}
		if t.HasTopic("content") || t.HasTopic("meaning") {
			return KindNoContentChange, true
		}
	case rules.IntentBoundary:
		return KindLengthLimit, true
	case rules.IntentFocus:
		return KindStyleConsistency, true
	}
	return "", false
}

func predicatesFor(kind Kind, params Params) []Predicate {
	var preds []Predicate
	switch kind {
	case KindGrammarOnly:
		preds = []Predicate{
			{Name: PredMaxWordsPerChange, Severity: SeverityWarning, Params: map[string]float64{"max": float64(params.MaxWordsPerChange)}},
			{Name: PredSentenceCountPreserved, Severity: SeverityWarning},
		}
	case KindPreserveTone:
		preds = []Predicate{
			{Name: PredEmphasisPreserved, Severity: SeverityWarning},
			{Name: PredPronounsPreserved, Severity: SeverityWarning},
		}
	case KindNoContentChange:
		preds = []Predicate{
			{Name: PredContentWordsPreserved, Severity: SeverityWarning, Params: map[string]float64{"min_overlap": params.MinContentOverlap}},
		}
	case KindLengthLimit:
		preds = []Predicate{
			{Name: PredMaxChangeRatio, Severity: SeverityError, Params: map[string]float64{"max": params.MaxChangeRatio}},
		}
	case KindStyleConsistency:
		preds = []Predicate{
			{Name: PredLineStructurePreserved, Severity: SeverityWarning},
		}
	}
	return append(preds, outputNotEmpty())
}

func outputNotEmpty() Predicate {
	return Predicate{Name: PredOutputNotEmpty, Severity: SeverityError}
}

// collectPredicates gathers every constraint's predicates, skipping exact
// duplicates, with output_not_empty once at the end.
func collectPredicates(constraints []Constraint) []Predicate {
	var out []Predicate
	seen := make(map[string]bool)
	for _, c := range constraints {
		for _, p := range c.Predicates {
			if p.Name == PredOutputNotEmpty {
				continue
			}
			key := fmt.Sprintf("%s/%v", p.Name, p.Params)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	return append(out, outputNotEmpty())
}

// DetectConflicts reports contradictory or excessive constraint combinations.
func DetectConflicts(constraints []Constraint) []Warning {
	var warnings []Warning
	byKind := make(map[Kind][]Constraint)
	var high []string
	for _, c := range constraints {
		byKind[c.Kind] = append(byKind[c.Kind], c)
		if c.Priority >= HighPriority {
			high = append(high, c.ID)
		}
	}

	if g, s := byKind[KindGrammarOnly], byKind[KindStyleConsistency]; len(g) > 0 && len(s) > 0 {
		warnings = append(warnings, Warning{
			Code:        WarnGrammarStyle,
			Message:     "grammar-only edits cannot also enforce style consistency",
			Constraints: []string{g[0].ID, s[0].ID},
		})
	}

	if limits := byKind[KindLengthLimit]; len(limits) > 1 {
		ids := []string{limits[0].ID}
		differ := false
		for _, l := range limits[1:] {
			ids = append(ids, l.ID)
			if l.Params.MaxChangeRatio != limits[0].Params.MaxChangeRatio {
				differ = true
			}
		}
		if differ {
			warnings = append(warnings, Warning{
				Code:        WarnLengthLimits,
				Message:     "length limits disagree; the strictest applies",
				Constraints: ids,
			})
		}
	}

	if len(high) > 3 {
		warnings = append(warnings, Warning{
			Code:        WarnExcessHighPriority,
			Message:     fmt.Sprintf("%d constraints at priority >= %d", len(high), HighPriority),
			Constraints: high,
		})
	}
	return warnings
}
