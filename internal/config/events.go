package config

import "time"

// EventsConfig configures the event channel.
type EventsConfig struct {
	FailureThreshold int    `yaml:"failure_threshold"`
	FailureWindow    string `yaml:"failure_window"`
	QueueSize        int    `yaml:"queue_size"` // per subscriber
}

// GetFailureWindow returns the circuit breaker's rolling window.
func (c *Config) GetFailureWindow() time.Duration {
	return parseDuration(c.Events.FailureWindow, time.Minute)
}
