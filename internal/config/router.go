package config

import "time"

// Routing strategies.
const (
	StrategyPriority     = "priority"
	StrategyRoundRobin   = "round_robin"
	StrategyLoadBalanced = "load_balanced"
)

// ValidStrategies lists the accepted routing strategies.
var ValidStrategies = []string{StrategyPriority, StrategyRoundRobin, StrategyLoadBalanced}

// RouterConfig configures backend selection and health polling.
type RouterConfig struct {
	Strategy       string          `yaml:"strategy"`
	HealthInterval string          `yaml:"health_interval"`
	Backends       []BackendConfig `yaml:"backends"`
}

// BackendConfig declares one execution backend.
type BackendConfig struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"` // memory, journal
	Priority int            `yaml:"priority"`
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// GetHealthInterval returns the health polling interval.
func (c *Config) GetHealthInterval() time.Duration {
	return parseDuration(c.Router.HealthInterval, 30*time.Second)
}

// EnabledBackends returns the enabled backend declarations in config order.
func (c *Config) EnabledBackends() []BackendConfig {
	var out []BackendConfig
	for _, b := range c.Router.Backends {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}
