package config

import (
	"fmt"
	"time"
)

// DiffConfig tunes the diff/patch engine.
type DiffConfig struct {
	Timeout              string  `yaml:"timeout"` // "0s" disables the deadline
	LineModeThreshold    int     `yaml:"line_mode_threshold"`
	MatchThreshold       float64 `yaml:"match_threshold"`
	MatchDistance        int     `yaml:"match_distance"`
	PatchDeleteThreshold float64 `yaml:"patch_delete_threshold"`
	PatchMargin          int     `yaml:"patch_margin"`
	ContextLines         int     `yaml:"context_lines"` // hunk context for display
}

// GetDiffTimeout returns the diff deadline. Zero means unbounded.
func (c *Config) GetDiffTimeout() time.Duration {
	d, err := time.ParseDuration(c.Diff.Timeout)
	if err != nil || d < 0 {
		return time.Second
	}
	return d
}

func (d DiffConfig) validate() error {
	if d.MatchThreshold < 0 || d.MatchThreshold > 1 {
		return fmt.Errorf("diff.match_threshold must be within [0,1]")
	}
	if d.PatchDeleteThreshold < 0 || d.PatchDeleteThreshold > 1 {
		return fmt.Errorf("diff.patch_delete_threshold must be within [0,1]")
	}
	if d.MatchDistance < 0 || d.PatchMargin < 0 || d.LineModeThreshold < 0 {
		return fmt.Errorf("diff distances and margins must be >= 0")
	}
	return nil
}
