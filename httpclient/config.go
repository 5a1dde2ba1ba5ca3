package httpclient

import (
	"fmt"
	"net/url"
	"time"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultMaxRetries      = 3
	defaultInitialBackoff  = 500 * time.Millisecond
	defaultMaxBackoff      = 10 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
)

// Config configures a sidecar client.
type Config struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`
	// MaxRetries is the number of retries after the first attempt. Negative
	// disables retrying.
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries" json:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff" json:"max_backoff"`
	// BreakerFailures is the number of consecutive failed calls that opens
	// the circuit. Negative disables the breaker.
	BreakerFailures int           `yaml:"breaker_failures" mapstructure:"breaker_failures" json:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown" json:"breaker_cooldown"`
	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers" json:"headers,omitempty"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = defaultBreakerFailures
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = defaultBreakerCooldown
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("httpclient: base_url must be an absolute URL (got: %q)", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("httpclient: max_backoff must not be below initial_backoff")
	}
	return nil
}
