package config

import "time"

// StoreConfig configures SQLite persistence.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ProcessorConfig configures the processing pipeline.
type ProcessorConfig struct {
	SlowThreshold string `yaml:"slow_threshold"`
	Persist       bool   `yaml:"persist"` // ignored unless the store is enabled
}

// GetSlowThreshold returns the processing time above which a result is flagged.
func (c *Config) GetSlowThreshold() time.Duration {
	return parseDuration(c.Processor.SlowThreshold, 5*time.Second)
}
