package observability

import (
	"fmt"
	"time"
)

// Config configures OTLP export for traces and metrics.
type Config struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g. "localhost:4318").
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool          `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64       `mapstructure:"sample_rate" yaml:"sample_rate"`
	Interval   time.Duration `mapstructure:"interval" yaml:"interval"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry: sample_rate must be within [0, 1], got %v", c.SampleRate)
	}
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("telemetry: endpoint is required when enabled")
	}
	return nil
}
