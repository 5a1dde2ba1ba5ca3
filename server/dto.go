package server

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/kbukum/diarkit/database"
	"github.com/kbukum/diarkit/engine"
	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/export"
	"github.com/kbukum/diarkit/segment"
	"github.com/kbukum/diarkit/speakers"
)

// payloadRequest is a backend output. Data is the payload itself: a JSON
// document for JSON formats, or a JSON string holding text formats like RTTM.
type payloadRequest struct {
	Format string          `json:"format" validate:"required"`
	Data   json.RawMessage `json:"data" validate:"required"`
}

func (p *payloadRequest) payload() (*engine.Payload, error) {
	if p == nil {
		return nil, nil
	}
	data := bytes.TrimSpace(p.Data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return nil, errors.InvalidInput("data", "payload string is not valid JSON").WithCause(err)
		}
		data = []byte(text)
	}
	return &engine.Payload{Format: p.Format, Data: data}, nil
}

type alignOptions struct {
	MaxPauseSeconds *float64 `json:"max_pause_seconds" validate:"omitempty,gte=0"`
	MergeGapSeconds *float64 `json:"merge_gap_seconds" validate:"omitempty,gte=0"`
	MinTurnSeconds  *float64 `json:"min_turn_seconds" validate:"omitempty,gte=0"`
	SubtitlePolicy  *string  `json:"subtitle_policy"`
}

// apply overlays the set options on cfg.
func (o *alignOptions) apply(cfg engine.Config) engine.Config {
	if o == nil {
		return cfg
	}
	if o.MaxPauseSeconds != nil {
		cfg.MaxPauseSeconds = *o.MaxPauseSeconds
	}
	if o.MergeGapSeconds != nil {
		cfg.MergeGapSeconds = *o.MergeGapSeconds
	}
	if o.MinTurnSeconds != nil {
		cfg.MinTurnSeconds = *o.MinTurnSeconds
	}
	if o.SubtitlePolicy != nil {
		cfg.SubtitlePolicy = *o.SubtitlePolicy
	}
	return cfg
}

func (o *alignOptions) empty() bool {
	return o == nil || (o.MaxPauseSeconds == nil && o.MergeGapSeconds == nil && o.MinTurnSeconds == nil && o.SubtitlePolicy == nil)
}

type alignRequest struct {
	Source      string          `json:"source" validate:"max=512"`
	Diarization *payloadRequest `json:"diarization"`
	Transcript  *payloadRequest `json:"transcript"`
	// Mapping is decoded by speakers.ParseJSON so a bad value is reported
	// as INVALID_MAPPING rather than a binding error.
	Mapping json.RawMessage `json:"mapping"`
	Formats []string        `json:"formats" validate:"omitempty,dive,export_format"`
	Options *alignOptions   `json:"options"`
}

func (r *alignRequest) input() (engine.Input, error) {
	if r.Diarization == nil && r.Transcript == nil {
		return engine.Input{}, errors.InvalidInput("diarization", "a diarization or transcript payload is required")
	}
	diar, err := r.Diarization.payload()
	if err != nil {
		return engine.Input{}, err
	}
	asr, err := r.Transcript.payload()
	if err != nil {
		return engine.Input{}, err
	}
	m, err := speakers.ParseJSON(r.Mapping)
	if err != nil {
		return engine.Input{}, err
	}
	return engine.Input{Source: r.Source, Diarization: diar, Transcript: asr, Mapping: m}, nil
}

type artifactView struct {
	Format      export.Format      `json:"format"`
	Filename    string             `json:"filename"`
	ContentType string             `json:"content_type"`
	Key         string             `json:"key,omitempty"`
	Degraded    bool               `json:"degraded"`
	Warnings    []*errors.AppError `json:"warnings,omitempty"`
	Content     string             `json:"content"`
}

func artifactViews(artifacts []export.Artifact, keys []string) []artifactView {
	out := make([]artifactView, len(artifacts))
	for i, a := range artifacts {
		out[i] = artifactView{
			Format:      a.Format,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Degraded:    a.Report.Degraded,
			Warnings:    a.Report.Warnings,
			Content:     string(a.Data),
		}
		if i < len(keys) {
			out[i].Key = keys[i]
		}
	}
	return out
}

type alignResponse struct {
	RunID     string                `json:"run_id"`
	Source    string                `json:"source,omitempty"`
	Speakers  []string              `json:"speakers"`
	Mapping   speakers.Mapping      `json:"mapping"`
	Turns     []segment.SpeakerTurn `json:"turns"`
	Rejected  []*errors.AppError    `json:"rejected"`
	Stats     engine.Stats          `json:"stats"`
	Artifacts []artifactView        `json:"artifacts"`
	Persisted bool                  `json:"persisted"`
}

type speakersResponse struct {
	ID       string           `json:"id,omitempty"`
	Speakers []string         `json:"speakers"`
	Mapping  speakers.Mapping `json:"mapping"`
}

type transcriptSummary struct {
	ID        string `json:"id"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at"`
	Speakers  int    `json:"speakers"`
	Turns     int    `json:"turns"`
	Degraded  bool   `json:"degraded"`
}

func summarize(rec database.TranscriptRecord) transcriptSummary {
	return transcriptSummary{
		ID:        rec.ID,
		Source:    rec.Source,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		Speakers:  len(rec.Speakers),
		Turns:     len(rec.Turns),
		Degraded:  rec.Degraded,
	}
}
