package database

import (
	"time"

	"github.com/kbukum/diarkit/engine"
	"github.com/kbukum/diarkit/export"
	"github.com/kbukum/diarkit/segment"
	"github.com/kbukum/diarkit/speakers"
)

// TranscriptRecord is one persisted run. Turns keep their raw speaker ids so
// a later mapping can be applied without compounding.
type TranscriptRecord struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Source    string                `gorm:"size:512" json:"source,omitempty"`
	Speakers  []string              `gorm:"serializer:json" json:"speakers"`
	Mapping   speakers.Mapping      `gorm:"serializer:json" json:"mapping"`
	Turns     []segment.SpeakerTurn `gorm:"serializer:json" json:"turns"`
	Stats     engine.Stats          `gorm:"serializer:json" json:"stats"`
	Artifacts []string              `gorm:"serializer:json" json:"artifacts,omitempty"`
	Degraded  bool                  `json:"degraded"`
}

// TableName pins the table name.
func (TranscriptRecord) TableName() string { return "transcripts" }

// NewRecord builds a record from a finished run and the artifacts rendered
// for it. Degraded is set when any artifact was degraded.
func NewRecord(res *engine.Result, artifacts []export.Artifact) *TranscriptRecord {
	rec := &TranscriptRecord{
		ID:       res.RunID,
		Source:   res.Source,
		Speakers: res.Speakers,
		Mapping:  speakers.Complete(res.Speakers, res.Mapping),
		Turns:    res.Turns,
		Stats:    res.Stats,
	}
	for _, a := range artifacts {
		if a.Report.Degraded {
			rec.Degraded = true
		}
	}
	return rec
}

// Result rebuilds the engine result the record was made from, enough to
// remap and export it again.
func (r *TranscriptRecord) Result() *engine.Result {
	return &engine.Result{
		RunID:    r.ID,
		Source:   r.Source,
		Speakers: r.Speakers,
		Mapping:  r.Mapping,
		Turns:    r.Turns,
		Stats:    r.Stats,
	}
}
