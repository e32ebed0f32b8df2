package processor

import (
	"maps"
	"slices"
	"time"

	"editguard/internal/adapter"
	"editguard/internal/diff"
	"editguard/internal/faults"
)

// Pipeline stage names used in provenance.
const (
	StageIntake    = "intake"
	StageMode      = "mode"
	StageCompile   = "compile"
	StagePreCheck  = "pre_check"
	StageCorrect   = "correct"
	StageDiff      = "diff"
	StagePostCheck = "post_check"
	StageDispatch  = "dispatch"
)

// Stage is one provenance entry.
type Stage struct {
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Backend  string        `json:"backend,omitempty"`
	Note     string        `json:"note,omitempty"`
}

// Conflict is a constraint conflict found while compiling the ruleset.
type Conflict struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Constraints []string `json:"constraints,omitempty"`
}

// Summary aggregates the changes of a result.
type Summary struct {
	TotalChanges   int                     `json:"total_changes"`
	ByKind         map[diff.ChangeKind]int `json:"by_kind,omitempty"`
	MeanConfidence float64                 `json:"mean_confidence"`
	Warnings       []string                `json:"warnings,omitempty"`
}

// ErrorInfo describes why a request failed.
type ErrorInfo struct {
	Stage     string            `json:"stage"`
	Category  faults.Category   `json:"category"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
	Hint      string            `json:"hint,omitempty"`
	Retryable bool              `json:"retryable"`
	Attempts  []adapter.Attempt `json:"attempts,omitempty"`
}

// Result is the outcome of one request. A failed result carries no changes.
type Result struct {
	ID             string            `json:"id"`
	IntakeID       string            `json:"intake_id"`
	Success        bool              `json:"success"`
	ProcessingTime time.Duration     `json:"processing_time"`
	Output         string            `json:"output,omitempty"`
	Changes        []diff.Change     `json:"changes"`
	Conflicts      []Conflict        `json:"conflicts"`
	Provenance     []Stage           `json:"provenance"`
	Summary        Summary           `json:"summary"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Error          *ErrorInfo        `json:"error,omitempty"`
}

// Clone returns a copy of r that shares no slices or maps with it.
func (r *Result) Clone() *Result {
	c := *r
	c.Changes = slices.Clone(r.Changes)
	c.Conflicts = make([]Conflict, len(r.Conflicts))
	for i, cf := range r.Conflicts {
		cf.Constraints = slices.Clone(cf.Constraints)
		c.Conflicts[i] = cf
	}
	c.Provenance = slices.Clone(r.Provenance)
	c.Summary.ByKind = maps.Clone(r.Summary.ByKind)
	c.Summary.Warnings = slices.Clone(r.Summary.Warnings)
	c.Metadata = maps.Clone(r.Metadata)
	if r.Error != nil {
		e := *r.Error
		e.Attempts = slices.Clone(r.Error.Attempts)
		c.Error = &e
	}
	return &c
}

func summarize(changes []diff.Change) Summary {
	s := Summary{TotalChanges: len(changes)}
	if len(changes) == 0 {
		return s
	}
	s.ByKind = make(map[diff.ChangeKind]int)
	total := 0.0
	for _, c := range changes {
		s.ByKind[c.Kind]++
		total += c.Confidence
	}
	s.MeanConfidence = total / float64(len(changes))
	return s
}
