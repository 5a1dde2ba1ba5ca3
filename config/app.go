package config

import (
	"fmt"

	"github.com/kbukum/diarkit/batch"
	"github.com/kbukum/diarkit/database"
	"github.com/kbukum/diarkit/diarization/pyannote"
	"github.com/kbukum/diarkit/engine"
	"github.com/kbukum/diarkit/observability"
	"github.com/kbukum/diarkit/server"
	"github.com/kbukum/diarkit/storage"
	"github.com/kbukum/diarkit/transcription/whisper"
	"github.com/kbukum/diarkit/validation"
)

// Config is the full diarkit configuration.
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Engine        engine.Config        `yaml:"engine" mapstructure:"engine"`
	Diarization   pyannote.Config      `yaml:"diarization" mapstructure:"diarization"`
	Transcription whisper.Config       `yaml:"transcription" mapstructure:"transcription"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Telemetry     observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
	Batch         batch.Config         `yaml:"batch" mapstructure:"batch"`
}

// ApplyDefaults fills unset fields in every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Engine.ApplyDefaults()
	c.Diarization.ApplyDefaults()
	c.Transcription.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	c.Batch.ApplyDefaults()
}

// Validate checks every section, then the struct tags.
func (c *Config) Validate() error {
	checks := []struct {
		section string
		check   func() error
	}{
		{"service", c.ServiceConfig.Validate},
		{"engine", c.Engine.Validate},
		{"diarization", c.Diarization.Validate},
		{"transcription", c.Transcription.Validate},
		{"storage", c.Storage.Validate},
		{"database", c.Database.Validate},
		{"server", c.Server.Validate},
		{"telemetry", c.Telemetry.Validate},
		{"batch", c.Batch.Validate},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return fmt.Errorf("%s: %w", ch.section, err)
		}
	}
	return validation.Validate(c)
}

// Load reads the configuration into cfg, applies defaults and validates it.
func Load(cfg *Config, opts ...LoaderOption) error {
	if err := LoadConfig(cfg, opts...); err != nil {
		return err
	}
	cfg.ApplyDefaults()
	return cfg.Validate()
}
