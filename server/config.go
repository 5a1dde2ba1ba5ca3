package server

import (
	"fmt"

	"github.com/kbukum/diarkit/server/middleware"
)

// Config holds HTTP server configuration.
type Config struct {
	Host            string                `yaml:"host" mapstructure:"host" json:"host"`
	Port            int                   `yaml:"port" mapstructure:"port" json:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     int                   `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout"`             // seconds
	WriteTimeout    int                   `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout"`          // seconds
	IdleTimeout     int                   `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout"`             // seconds
	ShutdownTimeout int                   `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"` // seconds
	MaxBodySize     string                `yaml:"max_body_size" mapstructure:"max_body_size" json:"max_body_size"`          // e.g. "32MB"
	CORS            middleware.CORSConfig `yaml:"cors" mapstructure:"cors" json:"cors"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30
	}
	// Alignment of long recordings plus export can take a while.
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 120
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "32MB"
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", middleware.HeaderRequestID}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	for name, v := range map[string]int{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"idle_timeout":     c.IdleTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if v < 0 {
			return fmt.Errorf("server.%s must be non-negative (got: %d)", name, v)
		}
	}
	if _, err := middleware.ParseSize(c.MaxBodySize); err != nil {
		return fmt.Errorf("server.max_body_size: %w", err)
	}
	return nil
}
