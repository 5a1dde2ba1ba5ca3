package normalize

import (
	"math"
	"slices"
	"testing"

	"github.com/kbukum/diarkit/errors"
)

func seconds(t *testing.T, ts Timestamp) float64 {
	t.Helper()
	v, ok := ts.Seconds()
	if !ok {
		t.Fatalf("expected a timestamp value, got %+v", ts)
	}
	return v
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		missing bool
		bad     bool
	}{
		{in: "12.5", want: 12.5},
		{in: " 3 ", want: 3},
		{in: "01:02.5", want: 62.5},
		{in: "00:01:02,500", want: 62.5},
		{in: "1:00:00", want: 3600},
		{in: "", missing: true},
		{in: "soon", bad: true},
		{in: "1.5:00", bad: true},
		{in: "1:2:3:4", bad: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ts := ParseTimestamp(tt.in)
			switch {
			case tt.missing:
				if !ts.Missing() {
					t.Errorf("expected missing, got %+v", ts)
				}
			case tt.bad:
				if ts.problem() == "" || ts.Missing() {
					t.Errorf("expected unparseable, got %+v", ts)
				}
			default:
				if got := seconds(t, ts); got != tt.want {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}

	if p := ParseTimestamp("NaN").problem(); p != "is NaN" {
		t.Errorf("expected NaN problem, got %q", p)
	}
}

func TestTimestamp_JSON(t *testing.T) {
	raw, err := Canonical{}.Decode([]byte(`{
		"turns": [{"speaker_id": "A", "start": "0.5", "end": null}],
		"units": [{"text": "hi", "start": 1, "end": "00:00:02.000", "confidence": 0.9}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := seconds(t, raw.Turns[0].Start); got != 0.5 {
		t.Errorf("string start = %v", got)
	}
	if !raw.Turns[0].End.Missing() {
		t.Error("null end should be missing")
	}
	if got := seconds(t, raw.Units[0].End); got != 2 {
		t.Errorf("clock end = %v", got)
	}
	if raw.Units[0].Confidence == nil || *raw.Units[0].Confidence != 0.9 {
		t.Errorf("confidence not decoded: %v", raw.Units[0].Confidence)
	}

	b, _ := At(math.NaN()).MarshalJSON()
	if string(b) != "null" {
		t.Errorf("NaN should marshal as null, got %s", b)
	}
}

func TestPyannote_Decode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"sidecar", `{"segments":[{"speaker_id":"SPEAKER_00","start_time":0.5,"end_time":2.1}],"num_speakers":1}`},
		{"list", `[{"speaker":"SPEAKER_00","start":0.5,"end":2.1}]`},
		{"label", `[{"label":"SPEAKER_00","start_time":"0.5","end":2.1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Pyannote{}.Decode([]byte(tt.payload))
			if err != nil {
				t.Fatal(err)
			}
			if len(raw.Turns) != 1 || len(raw.Units) != 0 {
				t.Fatalf("unexpected raw %+v", raw)
			}
			tr := raw.Turns[0]
			if tr.SpeakerID != "SPEAKER_00" || seconds(t, tr.Start) != 0.5 || seconds(t, tr.End) != 2.1 {
				t.Errorf("unexpected turn %+v", tr)
			}
		})
	}

	if _, err := (Pyannote{}).Decode([]byte(`{"segments": 3}`)); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for bad payload, got %v", err)
	}
}

func TestRTTM_Decode(t *testing.T) {
	data := []byte(`;; comment
SPKR-INFO meeting 1 <NA> <NA> <NA> unknown speaker_0 <NA> <NA>
SPEAKER meeting 1 0.000 2.500 <NA> <NA> speaker_0 <NA> <NA>
SPEAKER meeting 1 2.250 1.000 <NA> <NA> speaker_1 <NA> <NA>

SPEAKER meeting 1 broken
SPEAKER meeting 1 4.0 x <NA> <NA> speaker_1 <NA> <NA>
`)
	raw, err := RTTM{}.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw.Turns) != 4 {
		t.Fatalf("expected 4 SPEAKER records, got %d", len(raw.Turns))
	}
	if raw.Turns[1].SpeakerID != "speaker_1" || seconds(t, raw.Turns[1].End) != 3.25 {
		t.Errorf("unexpected second turn %+v", raw.Turns[1])
	}
	if !raw.Turns[2].Start.Missing() {
		t.Error("short line should decode with missing timestamps")
	}
	if raw.Turns[3].End.problem() == "" {
		t.Error("bad duration should leave an unusable end")
	}

	res, err := newTestNormalizer(Options{}).Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Turns) != 2 || len(res.Rejected) != 2 {
		t.Errorf("expected 2 turns and 2 rejections, got %d and %d", len(res.Turns), len(res.Rejected))
	}
}

const whisperxPayload = `{
  "segments": [
    {"start": 0.0, "end": 1.2, "text": " Hello world", "speaker": "SPEAKER_00",
     "words": [
       {"word": "Hello", "start": 0.0, "end": 0.5, "score": 0.91, "speaker": "SPEAKER_00"},
       {"word": "world", "start": 0.6, "end": 1.2, "score": 0.88}
     ]},
    {"start": 1.5, "end": 2.0, "text": " 2024",
     "words": [{"word": "2024"}]},
    {"start": 2.5, "end": 3.0, "text": " Bye"}
  ]
}`

func TestWhisperX_Decode(t *testing.T) {
	raw, err := WhisperX{}.Decode([]byte(whisperxPayload))
	if err != nil {
		t.Fatal(err)
	}
	texts := make([]string, 0, len(raw.Units))
	for _, u := range raw.Units {
		texts = append(texts, u.Text)
	}
	if !slices.Equal(texts, []string{"Hello", "world", "2024", " Bye"}) {
		t.Errorf("unexpected units %q", texts)
	}
	if len(raw.Turns) != 1 || raw.Turns[0].SpeakerID != "SPEAKER_00" {
		t.Errorf("expected one speaker-labelled turn, got %+v", raw.Turns)
	}
	if *raw.Units[0].Confidence != 0.91 {
		t.Errorf("expected word score as confidence")
	}

	res, err := newTestNormalizer(Options{}).Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Details["index"] != 2 {
		t.Errorf("expected the unaligned numeral to be rejected, got %v", res.Rejected)
	}
}

func TestWhisper_SegmentConfidence(t *testing.T) {
	raw, err := Whisper{}.Decode([]byte(`{"text":"Hi there","segments":[{"id":0,"start":0,"end":1.5,"text":" Hi there","avg_logprob":-0.25}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw.Units) != 1 {
		t.Fatalf("expected one unit, got %d", len(raw.Units))
	}
	if got := *raw.Units[0].Confidence; math.Abs(got-math.Exp(-0.25)) > 1e-12 {
		t.Errorf("confidence = %v", got)
	}
}

func TestVerboseJSON_PrefersWords(t *testing.T) {
	withWords := `{"text":"a b","words":[{"word":"a","start":0,"end":0.4},{"word":"b","start":0.5,"end":0.9}],
		"segments":[{"start":0,"end":0.9,"text":"a b"}]}`
	raw, err := VerboseJSON{}.Decode([]byte(withWords))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw.Units) != 2 || raw.Units[1].Text != "b" {
		t.Errorf("expected word units, got %+v", raw.Units)
	}

	segmentsOnly := `{"text":"a b","segments":[{"start":0,"end":0.9,"text":"a b"}]}`
	raw, err = VerboseJSON{}.Decode([]byte(segmentsOnly))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw.Units) != 1 || raw.Units[0].Text != "a b" {
		t.Errorf("expected segment fallback, got %+v", raw.Units)
	}
}

func TestAssemblyAI_Decode(t *testing.T) {
	payload := `{
	  "id": "tr_1", "status": "completed", "text": "Hi. Hello.",
	  "utterances": [
	    {"speaker": "A", "start": 250, "end": 1250, "text": "Hi.", "confidence": 0.9, "words": []},
	    {"speaker": "B", "start": 1500, "end": 2750, "text": "Hello.", "confidence": 0.8, "words": []}
	  ],
	  "words": [
	    {"text": "Hi.", "start": 250, "end": 1250, "confidence": 0.9, "speaker": "A"},
	    {"text": "Hello.", "start": 1500, "end": 2750, "confidence": 0.8, "speaker": "B"}
	  ]
	}`
	raw, err := AssemblyAI{}.Decode([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw.Turns) != 2 || len(raw.Units) != 2 {
		t.Fatalf("unexpected raw %+v", raw)
	}
	if raw.Turns[1].SpeakerID != "B" || seconds(t, raw.Turns[1].Start) != 1.5 || seconds(t, raw.Turns[1].End) != 2.75 {
		t.Errorf("unexpected turn %+v", raw.Turns[1])
	}
	if seconds(t, raw.Units[0].Start) != 0.25 || *raw.Units[0].Confidence != 0.9 {
		t.Errorf("unexpected unit %+v", raw.Units[0])
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	want := []string{"assemblyai", "canonical", "pyannote", "rttm", "verbose_json", "whisper", "whisperx"}
	if got := r.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if _, err := r.Decode("sphinx", nil); !errors.HasCode(err, errors.ErrCodeUnsupportedFormat) {
		t.Errorf("expected UNSUPPORTED_FORMAT, got %v", err)
	}
	raw, err := r.Decode("pyannote", []byte(`[]`))
	if err != nil || len(raw.Turns) != 0 {
		t.Errorf("expected empty decode, got %+v, %v", raw, err)
	}
}

func TestCombine(t *testing.T) {
	diar := Raw{Turns: []RawTurn{{SpeakerID: "A"}}, Units: []RawUnit{{Text: "ignored"}}}
	asr := Raw{Turns: []RawTurn{{SpeakerID: "ignored"}}, Units: []RawUnit{{Text: "kept"}}}
	got := Combine(diar, asr)
	if len(got.Turns) != 1 || got.Turns[0].SpeakerID != "A" || got.Units[0].Text != "kept" {
		t.Errorf("unexpected combine result %+v", got)
	}
}
