package adapter

import (
	"fmt"
	"slices"

	"editguard/internal/constraint"
	"editguard/internal/diff"
)

// Supports reports whether caps accept job, and why not when they don't.
// Constraints at or above constraint.HighPriority must be honored.
func (c Capabilities) Supports(job *Job) (bool, string) {
	if len(c.Operations) > 0 {
		for _, ch := range job.Changes {
			if !slices.Contains(c.Operations, ch.Kind) {
				return false, fmt.Sprintf("operation %s not supported", ch.Kind)
			}
		}
	}
	if c.MaxTextLength > 0 {
		if n := len([]rune(job.Text)); n > c.MaxTextLength {
			return false, fmt.Sprintf("text length %d exceeds %d", n, c.MaxTextLength)
		}
	}
	if len(c.Constraints) > 0 {
		for _, con := range job.Constraints {
			if con.Priority >= constraint.HighPriority && !slices.Contains(c.Constraints, con.Kind) {
				return false, fmt.Sprintf("constraint %s not supported", con.Kind)
			}
		}
	}
	if c.MaxTimeout > 0 && job.Timeout > c.MaxTimeout {
		return false, fmt.Sprintf("timeout %v exceeds ceiling %v", job.Timeout, c.MaxTimeout)
	}
	return true, ""
}

// compatibility is the share of the job's constraint kinds the adapter
// declares, in [0,1]. Adapters declaring none score zero.
func (c Capabilities) compatibility(job *Job) float64 {
	if len(c.Constraints) == 0 || len(job.Constraints) == 0 {
		return 0
	}
	kinds := make(map[constraint.Kind]bool)
	for _, con := range job.Constraints {
		kinds[con.Kind] = true
	}
	covered := 0
	for k := range kinds {
		if slices.Contains(c.Constraints, k) {
			covered++
		}
	}
	return float64(covered) / float64(len(kinds))
}

// AllOperations is the full set of change kinds.
var AllOperations = []diff.ChangeKind{diff.ChangeInsert, diff.ChangeDelete, diff.ChangeReplace}
