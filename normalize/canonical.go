package normalize

import "encoding/json"

// Canonical decodes diarkit's own interchange form:
//
//	{"turns": [{"speaker_id": "A", "start": 0, "end": 5}],
//	 "units": [{"text": "Hello", "start": 0, "end": 1, "confidence": 0.9}]}
type Canonical struct{}

func (Canonical) Name() string { return "canonical" }

func (Canonical) Decode(data []byte) (Raw, error) {
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return Raw{}, decodeError("canonical", err)
	}
	return raw, nil
}
