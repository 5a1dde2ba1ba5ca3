// Package aggregate collapses attributed units into speaker turns.
package aggregate

import (
	"fmt"
	"math"
	"strings"

	"github.com/kbukum/diarkit/segment"
)

// Config controls turn boundaries.
type Config struct {
	// MaxPauseSeconds starts a new turn when the silence between two units of
	// the same speaker exceeds it. Zero disables pause splitting.
	MaxPauseSeconds float64 `yaml:"max_pause_seconds" mapstructure:"max_pause_seconds" json:"max_pause_seconds"`
}

// Validate rejects negative or non-finite thresholds.
func (c Config) Validate() error {
	if c.MaxPauseSeconds < 0 || math.IsNaN(c.MaxPauseSeconds) || math.IsInf(c.MaxPauseSeconds, 0) {
		return fmt.Errorf("max_pause_seconds must be a finite, non-negative number (got: %v)", c.MaxPauseSeconds)
	}
	return nil
}

// Aggregate walks units in order and merges runs of the same speaker into
// SpeakerTurns. A new turn starts when the speaker changes or, if enabled,
// when the pause since the previous unit exceeds MaxPauseSeconds. Unknown is
// treated like any other speaker id, so unattributed speech is never folded
// into a neighbour's turn.
//
// Each unit's text is trimmed and joined with single spaces. A turn starts
// at its first unit's start and ends at its last unit's end.
func Aggregate(units []segment.AttributedUnit, cfg Config) []segment.SpeakerTurn {
	turns := make([]segment.SpeakerTurn, 0, len(units)/4+1)
	var text strings.Builder
	var cur *segment.SpeakerTurn
	var prevEnd float64

	flush := func() {
		if cur != nil {
			cur.Text = text.String()
			turns = append(turns, *cur)
			cur = nil
		}
		text.Reset()
	}

	for _, u := range units {
		split := cur == nil || u.SpeakerID != cur.SpeakerID ||
			(cfg.MaxPauseSeconds > 0 && u.Start-prevEnd > cfg.MaxPauseSeconds)
		if split {
			flush()
			cur = &segment.SpeakerTurn{
				SpeakerID: u.SpeakerID,
				Speaker:   u.SpeakerID,
				Start:     u.Start,
			}
		}
		if word := strings.TrimSpace(u.Text); word != "" {
			if text.Len() > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(word)
		}
		cur.End = u.End
		cur.Overlap = cur.Overlap || u.Overlap
		prevEnd = u.End
	}
	flush()
	return turns
}
