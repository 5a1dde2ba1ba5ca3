package engine

import (
	"fmt"

	"github.com/kbukum/diarkit/aggregate"
	"github.com/kbukum/diarkit/export"
	"github.com/kbukum/diarkit/normalize"
)

// Config is the immutable tuning of an Engine. It maps to the `engine`
// section of config.yml.
type Config struct {
	// MaxPauseSeconds splits a speaker's run of units at silences longer
	// than this. Zero disables pause splitting.
	MaxPauseSeconds float64 `yaml:"max_pause_seconds" mapstructure:"max_pause_seconds" json:"max_pause_seconds" validate:"gte=0"`
	MergeGapSeconds float64 `yaml:"merge_gap_seconds" mapstructure:"merge_gap_seconds" json:"merge_gap_seconds" validate:"gte=0"`
	MinTurnSeconds  float64 `yaml:"min_turn_seconds" mapstructure:"min_turn_seconds" json:"min_turn_seconds" validate:"gte=0"`
	// SubtitlePolicy is "clip" or "reject".
	SubtitlePolicy string `yaml:"subtitle_policy" mapstructure:"subtitle_policy" json:"subtitle_policy" validate:"omitempty,subtitle_policy"`
	// Formats rendered when a caller asks for none.
	Formats []string `yaml:"formats" mapstructure:"formats" json:"formats" validate:"dive,export_format"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.SubtitlePolicy == "" {
		c.SubtitlePolicy = string(export.PolicyClip)
	}
	if len(c.Formats) == 0 {
		c.Formats = export.FormatNames()
	}
}

// Validate checks thresholds, policy and formats.
func (c Config) Validate() error {
	if err := c.Aggregate().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Normalize().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if _, err := export.ParsePolicy(c.SubtitlePolicy); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if _, err := export.ParseFormats(c.Formats); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// Aggregate returns the aggregator settings.
func (c Config) Aggregate() aggregate.Config {
	return aggregate.Config{MaxPauseSeconds: c.MaxPauseSeconds}
}

// Normalize returns the normalizer settings.
func (c Config) Normalize() normalize.Options {
	return normalize.Options{MergeGap: c.MergeGapSeconds, MinTurnDuration: c.MinTurnSeconds}
}
