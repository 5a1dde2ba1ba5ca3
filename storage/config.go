package storage

import (
	"errors"
	"fmt"
)

// Provider names for the bundled backends.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Default configuration values.
const (
	DefaultProvider = ProviderLocal
	DefaultBasePath = "./artifacts"
	DefaultRegion   = "us-east-1"
	DefaultPrefix   = "transcripts"
)

// Config holds storage configuration.
type Config struct {
	// Enabled controls whether artifacts are persisted at all.
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`

	// Provider selects the storage backend: "local" or "s3".
	Provider string `mapstructure:"provider" json:"provider" yaml:"provider"`

	// Prefix is prepended to every artifact key.
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`

	// BasePath is the root directory for local storage.
	BasePath string `mapstructure:"base_path" json:"base_path" yaml:"base_path"`

	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`

	// Region is the AWS region for S3.
	Region string `mapstructure:"region" json:"region" yaml:"region"`

	// Endpoint is a custom S3-compatible endpoint (e.g. MinIO).
	Endpoint string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`

	AccessKey string `mapstructure:"access_key" json:"-" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"-" yaml:"secret_key"`

	// ForcePathStyle forces path-style URLs. Always on with a custom Endpoint.
	ForcePathStyle bool `mapstructure:"force_path_style" json:"force_path_style" yaml:"force_path_style"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

// Validate checks that the configuration is valid for the selected provider.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return errors.New("storage: base_path is required for local provider")
		}
	case ProviderS3:
		var errs []error
		if c.Bucket == "" {
			errs = append(errs, errors.New("bucket is required"))
		}
		if c.Region == "" {
			errs = append(errs, errors.New("region is required"))
		}
		if (c.AccessKey == "") != (c.SecretKey == "") {
			errs = append(errs, errors.New("access_key and secret_key must be set together"))
		}
		if len(errs) > 0 {
			return fmt.Errorf("storage: invalid s3 config: %w", errors.Join(errs...))
		}
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	return nil
}
