package normalize

import (
	"encoding/json"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
)

// AssemblyAI decodes a completed AssemblyAI transcript (speaker_labels
// enabled). Utterances become diarization turns and words become units.
// AssemblyAI reports milliseconds.
type AssemblyAI struct{}

func (AssemblyAI) Name() string { return "assemblyai" }

func (AssemblyAI) Decode(data []byte) (Raw, error) {
	var tr aai.Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return Raw{}, decodeError("assemblyai", err)
	}

	raw := Raw{
		Turns: make([]RawTurn, 0, len(tr.Utterances)),
		Units: make([]RawUnit, 0, len(tr.Words)),
	}
	for _, u := range tr.Utterances {
		raw.Turns = append(raw.Turns, RawTurn{
			SpeakerID: deref(u.Speaker),
			Start:     millis(u.Start),
			End:       millis(u.End),
		})
	}
	for _, w := range tr.Words {
		raw.Units = append(raw.Units, RawUnit{
			Text:       deref(w.Text),
			Start:      millis(w.Start),
			End:        millis(w.End),
			Confidence: w.Confidence,
		})
	}
	return raw, nil
}

func millis[T ~int | ~int64 | ~float64](ms *T) Timestamp {
	if ms == nil {
		return Timestamp{}
	}
	return At(float64(*ms) / 1000)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
