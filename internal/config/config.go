package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all editguard configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Rule compilation and execution defaults
	Engine EngineConfig `yaml:"engine"`

	// Diff/patch engine tuning
	Diff DiffConfig `yaml:"diff"`

	// Backend routing
	Router RouterConfig `yaml:"router"`

	// Event channel and circuit breaker
	Events EventsConfig `yaml:"events"`

	// Result persistence
	Store StoreConfig `yaml:"store"`

	// Pipeline settings
	Processor ProcessorConfig `yaml:"processor"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Inline mode declarations
	Modes []ModeConfig `yaml:"modes,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "editguard",
		Version: "0.4.0",

		Engine: EngineConfig{
			DefaultMode:    "grammar",
			Timeout:        "30s",
			RetryCount:     2,
			FallbackPolicy: FallbackSequential,
			MaxTextLength:  200000,
		},

		Diff: DiffConfig{
			Timeout:              "1s",
			LineModeThreshold:    100,
			MatchThreshold:       0.5,
			MatchDistance:        1000,
			PatchDeleteThreshold: 0.5,
			PatchMargin:          4,
			ContextLines:         3,
		},

		Router: RouterConfig{
			Strategy:       StrategyPriority,
			HealthInterval: "30s",
			Backends: []BackendConfig{
				{Name: "memory", Type: "memory", Priority: 50, Enabled: true},
				{Name: "journal", Type: "journal", Priority: 10, Enabled: false},
			},
		},

		Events: EventsConfig{
			FailureThreshold: 5,
			FailureWindow:    "1m",
			QueueSize:        256,
		},

		Store: StoreConfig{
			Enabled: false,
			Path:    "data/editguard.db",
		},

		Processor: ProcessorConfig{
			SlowThreshold: "5s",
			Persist:       true,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Modes: defaultModes(),
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if mode := os.Getenv("EDITGUARD_DEFAULT_MODE"); mode != "" {
		c.Engine.DefaultMode = mode
	}

	// Setting a database path implies persistence
	if path := os.Getenv("EDITGUARD_DB"); path != "" {
		c.Store.Path = path
		c.Store.Enabled = true
	}

	if level := os.Getenv("EDITGUARD_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if strategy := os.Getenv("EDITGUARD_STRATEGY"); strategy != "" {
		c.Router.Strategy = strategy
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.DefaultMode == "" {
		return fmt.Errorf("engine.default_mode must be set")
	}
	if d, err := time.ParseDuration(c.Engine.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("engine.timeout must be a positive duration, got %q", c.Engine.Timeout)
	}
	if c.Engine.RetryCount < 0 {
		return fmt.Errorf("engine.retry_count must be >= 0")
	}
	if !contains(ValidFallbackPolicies, c.Engine.FallbackPolicy) {
		return fmt.Errorf("invalid fallback policy: %s (valid: %v)", c.Engine.FallbackPolicy, ValidFallbackPolicies)
	}
	if !contains(ValidStrategies, c.Router.Strategy) {
		return fmt.Errorf("invalid routing strategy: %s (valid: %v)", c.Router.Strategy, ValidStrategies)
	}
	if err := c.Diff.validate(); err != nil {
		return err
	}
	if c.Events.FailureThreshold < 1 {
		return fmt.Errorf("events.failure_threshold must be >= 1")
	}
	if !contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	seen := make(map[string]bool, len(c.Modes))
	for _, m := range c.Modes {
		if m.ID == "" {
			return fmt.Errorf("mode without id")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate mode id: %s", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
