package config

import "time"

// Fallback policies for dispatch.
const (
	FallbackSequential = "sequential"
	FallbackNone       = "none"
)

// ValidFallbackPolicies lists the accepted fallback policies.
var ValidFallbackPolicies = []string{FallbackSequential, FallbackNone}

// EngineConfig holds the execution defaults stamped onto every compiled ruleset.
type EngineConfig struct {
	DefaultMode       string   `yaml:"default_mode"`
	Timeout           string   `yaml:"timeout"`
	RetryCount        int      `yaml:"retry_count"`
	PreferredBackends []string `yaml:"preferred_backends,omitempty"`
	FallbackPolicy    string   `yaml:"fallback_policy"`
	MaxTextLength     int      `yaml:"max_text_length"` // in runes, 0 = unlimited
}

// GetEngineTimeout returns the per-job timeout as a duration.
func (c *Config) GetEngineTimeout() time.Duration {
	return parseDuration(c.Engine.Timeout, 30*time.Second)
}
