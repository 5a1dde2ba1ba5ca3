package normalize

import (
	"bytes"
	"encoding/json"
)

// Pyannote decodes pyannote output, either the sidecar response
//
//	{"segments": [{"speaker_id": "SPEAKER_00", "start_time": 0.5, "end_time": 2.1}]}
//
// or a bare list of {"speaker", "start", "end"} records as produced by
// iterating Annotation.itertracks.
type Pyannote struct{}

type pyannoteRecord struct {
	SpeakerID string    `json:"speaker_id"`
	Speaker   string    `json:"speaker"`
	Label     string    `json:"label"`
	StartTime Timestamp `json:"start_time"`
	EndTime   Timestamp `json:"end_time"`
	Start     Timestamp `json:"start"`
	End       Timestamp `json:"end"`
}

func (Pyannote) Name() string { return "pyannote" }

func (Pyannote) Decode(data []byte) (Raw, error) {
	var records []pyannoteRecord
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return Raw{}, decodeError("pyannote", err)
		}
	} else {
		var resp struct {
			Segments []pyannoteRecord `json:"segments"`
		}
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return Raw{}, decodeError("pyannote", err)
		}
		records = resp.Segments
	}

	raw := Raw{Turns: make([]RawTurn, 0, len(records))}
	for _, r := range records {
		raw.Turns = append(raw.Turns, RawTurn{
			SpeakerID: firstNonEmpty(r.SpeakerID, r.Speaker, r.Label),
			Start:     firstSet(r.StartTime, r.Start),
			End:       firstSet(r.EndTime, r.End),
		})
	}
	return raw, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
