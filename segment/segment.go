package segment

import "math"

// Unknown labels transcript units that could not be attributed because no
// diarization turns exist at all.
const Unknown = "UNKNOWN"

// DiarizationTurn is one interval attributed to a single speaker.
// Start < End holds for every turn that survives normalization.
type DiarizationTurn struct {
	SpeakerID string  `json:"speaker_id"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

// Duration returns End - Start.
func (t DiarizationTurn) Duration() float64 { return t.End - t.Start }

// TranscriptUnit is a timestamped piece of recognized text, a word or a
// chunk depending on the backend. Start <= End.
type TranscriptUnit struct {
	Text       string   `json:"text"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Midpoint returns the centre of the unit's interval.
func (u TranscriptUnit) Midpoint() float64 { return (u.Start + u.End) / 2 }

// Duration returns End - Start.
func (u TranscriptUnit) Duration() float64 { return u.End - u.Start }

// AttributedUnit is a TranscriptUnit labelled with a speaker id or Unknown.
type AttributedUnit struct {
	TranscriptUnit
	SpeakerID string `json:"speaker_id"`
	// Overlap is set when turns of two or more speakers intersect the unit.
	Overlap bool `json:"overlap,omitempty"`
}

// SpeakerTurn is the displayable output unit: contiguous text from one speaker.
type SpeakerTurn struct {
	// SpeakerID is the raw diarization id and is never rewritten by a mapping.
	SpeakerID string `json:"speaker_id"`
	// Speaker is the display name. It equals SpeakerID until a mapping is applied.
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Overlap bool    `json:"overlap,omitempty"`
}

// DisplayName returns Speaker, falling back to SpeakerID.
func (t SpeakerTurn) DisplayName() string {
	if t.Speaker != "" {
		return t.Speaker
	}
	return t.SpeakerID
}

// Canonical is the normalized input of an alignment run: both sequences
// sorted by start.
type Canonical struct {
	Turns []DiarizationTurn `json:"turns"`
	Units []TranscriptUnit  `json:"units"`
}

// Empty reports whether both sequences are empty.
func (c Canonical) Empty() bool { return len(c.Turns) == 0 && len(c.Units) == 0 }

// Overlap returns the length of the intersection of [aStart, aEnd] and
// [bStart, bEnd], or 0 when they are disjoint.
func Overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	return math.Max(0, math.Min(aEnd, bEnd)-math.Max(aStart, bStart))
}
