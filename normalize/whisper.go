package normalize

import (
	"encoding/json"
	"math"
)

// whisperPayload covers openai-whisper JSON, the verbose_json response of
// hosted Whisper APIs (OpenAI, Groq) and WhisperX output.
type whisperPayload struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Words    []whisperWord    `json:"words"`
}

type whisperSegment struct {
	Start      Timestamp     `json:"start"`
	End        Timestamp     `json:"end"`
	Text       string        `json:"text"`
	AvgLogprob *float64      `json:"avg_logprob"`
	Speaker    string        `json:"speaker"`
	Words      []whisperWord `json:"words"`
}

type whisperWord struct {
	Word        string    `json:"word"`
	Start       Timestamp `json:"start"`
	End         Timestamp `json:"end"`
	Score       *float64  `json:"score"`
	Probability *float64  `json:"probability"`
}

func (w whisperWord) unit() RawUnit {
	conf := w.Score
	if conf == nil {
		conf = w.Probability
	}
	return RawUnit{Text: w.Word, Start: w.Start, End: w.End, Confidence: conf}
}

func (s whisperSegment) unit() RawUnit {
	u := RawUnit{Text: s.Text, Start: s.Start, End: s.End}
	if s.AvgLogprob != nil {
		c := math.Exp(*s.AvgLogprob)
		u.Confidence = &c
	}
	return u
}

func decodeWhisper(name string, data []byte) (whisperPayload, error) {
	var p whisperPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, decodeError(name, err)
	}
	return p, nil
}

// Whisper reads segment-level (chunk) units from openai-whisper output.
// Confidence is exp(avg_logprob) when the backend reports it.
type Whisper struct{}

func (Whisper) Name() string { return "whisper" }

func (Whisper) Decode(data []byte) (Raw, error) {
	p, err := decodeWhisper("whisper", data)
	if err != nil {
		return Raw{}, err
	}
	raw := Raw{Units: make([]RawUnit, 0, len(p.Segments))}
	for _, s := range p.Segments {
		raw.Units = append(raw.Units, s.unit())
	}
	return raw, nil
}

// VerboseJSON reads the verbose_json response of hosted Whisper APIs.
// Top-level word timestamps are preferred; segments are used otherwise.
type VerboseJSON struct{}

func (VerboseJSON) Name() string { return "verbose_json" }

func (VerboseJSON) Decode(data []byte) (Raw, error) {
	p, err := decodeWhisper("verbose_json", data)
	if err != nil {
		return Raw{}, err
	}
	if len(p.Words) > 0 {
		raw := Raw{Units: make([]RawUnit, 0, len(p.Words))}
		for _, w := range p.Words {
			raw.Units = append(raw.Units, w.unit())
		}
		return raw, nil
	}
	return Whisper{}.Decode(data)
}

// WhisperX reads aligned WhisperX output. Each segment contributes its words
// when it has any, otherwise itself. Words WhisperX could not align (often
// numerals) carry no timestamps and surface as malformed units. Segments
// labelled by assign_word_speakers also yield diarization turns.
type WhisperX struct{}

func (WhisperX) Name() string { return "whisperx" }

func (WhisperX) Decode(data []byte) (Raw, error) {
	p, err := decodeWhisper("whisperx", data)
	if err != nil {
		return Raw{}, err
	}
	var raw Raw
	for _, s := range p.Segments {
		if s.Speaker != "" {
			raw.Turns = append(raw.Turns, RawTurn{SpeakerID: s.Speaker, Start: s.Start, End: s.End})
		}
		if len(s.Words) == 0 {
			raw.Units = append(raw.Units, s.unit())
			continue
		}
		for _, w := range s.Words {
			raw.Units = append(raw.Units, w.unit())
		}
	}
	return raw, nil
}
