package export

import (
	"encoding/json"
	"io"

	"github.com/kbukum/diarkit/segment"
)

// Record is the JSON shape of one turn.
type Record struct {
	SpeakerID string  `json:"speaker_id"`
	Speaker   string  `json:"speaker"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
	Overlap   bool    `json:"overlap,omitempty"`
}

// JSON renders an indented array of Records.
type JSON struct{}

func (JSON) Format() Format      { return FormatJSON }
func (JSON) ContentType() string { return "application/json" }

func (JSON) Export(w io.Writer, turns []segment.SpeakerTurn) (Report, error) {
	records := make([]Record, len(turns))
	for i, t := range turns {
		records[i] = Record{
			SpeakerID: t.SpeakerID,
			Speaker:   t.DisplayName(),
			Start:     t.Start,
			End:       t.End,
			Text:      t.Text,
			Overlap:   t.Overlap,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return Report{}, err
	}
	return Report{Format: FormatJSON, Records: len(turns)}, nil
}
