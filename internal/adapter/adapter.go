// Package adapter routes edit jobs to pluggable execution backends.
//
// A Router filters registered adapters by capability, orders the survivors
// with a Strategy and attempts them in turn, racing each attempt against the
// job timeout. Per-adapter metrics are rolling counters updated once per
// attempt under that adapter's lock. A health goroutine per adapter polls
// Status on a fixed interval and excludes unhealthy adapters from routing.
package adapter

import (
	"context"
	"encoding/json"
	"time"

	"editguard/internal/constraint"
	"editguard/internal/diff"
)

// Adapter is an execution backend. Execute must return promptly once ctx is
// done; the router enforces the job timeout regardless.
type Adapter interface {
	Name() string
	Capabilities() Capabilities
	Initialize(ctx context.Context, settings json.RawMessage) error
	Execute(ctx context.Context, job *Job) (*JobResult, error)
	Status(ctx context.Context) Status
	Metrics() map[string]float64
	Cleanup(ctx context.Context) error
}

// Capabilities describes what an adapter accepts. Zero values mean no limit.
type Capabilities struct {
	// Operations lists the change kinds the adapter can apply.
	Operations []diff.ChangeKind `json:"operations,omitempty"`
	// MaxTextLength is in runes.
	MaxTextLength int `json:"max_text_length,omitempty"`
	// Constraints lists the constraint kinds the adapter honors. An empty
	// list accepts any job and earns no compatibility bonus.
	Constraints []constraint.Kind `json:"constraints,omitempty"`
	// MaxTimeout is the longest job timeout the adapter accepts.
	MaxTimeout time.Duration `json:"max_timeout,omitempty"`
}

// Status is the health report of an adapter.
type Status struct {
	Healthy   bool      `json:"healthy"`
	Ready     bool      `json:"ready"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Job is a dispatch envelope. It is owned by the router for one dispatch.
type Job struct {
	ID          string                  `json:"id"`
	Text        string                  `json:"text"`
	Changes     []diff.Change           `json:"changes"`
	Constraints []constraint.Constraint `json:"constraints,omitempty"`
	Timeout     time.Duration           `json:"timeout"`
	// Preferred adapters are tried first, in order, when compatible.
	Preferred []string `json:"preferred,omitempty"`
	// FallbackPolicy "none" stops after the first candidate.
	FallbackPolicy string `json:"fallback_policy,omitempty"`
	// MaxAttempts caps the candidates tried; zero tries all of them.
	MaxAttempts int               `json:"max_attempts,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// JobResult is the outcome reported by an adapter.
type JobResult struct {
	JobID    string        `json:"job_id"`
	Adapter  string        `json:"adapter"`
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Applied  []diff.Change `json:"applied,omitempty"`
	Rejected []diff.Change `json:"rejected,omitempty"`
	Duration time.Duration `json:"duration"`
	Errors   []string      `json:"errors,omitempty"`
}

// NewJobFromRuleset builds a job carrying the ruleset's execution settings.
func NewJobFromRuleset(id, text string, changes []diff.Change, rs *constraint.Ruleset) *Job {
	job := &Job{ID: id, Text: text, Changes: changes}
	if rs == nil {
		return job
	}
	job.Constraints = rs.Constraints
	job.Timeout = rs.Execution.Timeout
	job.Preferred = rs.Execution.PreferredBackends
	job.FallbackPolicy = rs.Execution.FallbackPolicy
	job.MaxAttempts = max(rs.Execution.RetryCount, 0) + 1
	return job
}
