package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/export"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/normalize"
	"github.com/kbukum/diarkit/segment"
	"github.com/kbukum/diarkit/speakers"
)

const (
	pyannotePayload = `{"segments":[
		{"speaker_id":"SPEAKER_00","start_time":0,"end_time":5},
		{"speaker_id":"SPEAKER_01","start_time":5,"end_time":10}]}`
	whisperPayload = `{"segments":[
		{"start":0.5,"end":2.0,"text":" Hello there"},
		{"start":2.2,"end":4.8,"text":" how are you"},
		{"start":5.5,"end":7.0,"text":" fine thanks"},
		{"start":9.0,"end":9.5,"text":" bye"}]}`
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	n := 0
	e, err := New(cfg, WithLogger(logger.Nop()), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func sidecarInput() Input {
	return Input{
		Source:      "meeting.wav",
		Diarization: &Payload{Format: "pyannote", Data: []byte(pyannotePayload)},
		Transcript:  &Payload{Format: "whisper", Data: []byte(whisperPayload)},
	}
}

func TestRun_SidecarPayloads(t *testing.T) {
	e := newTestEngine(t, Config{})
	res, err := e.Run(context.Background(), sidecarInput())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []segment.SpeakerTurn{
		{SpeakerID: "SPEAKER_00", Speaker: "SPEAKER_00", Start: 0.5, End: 4.8, Text: "Hello there how are you"},
		{SpeakerID: "SPEAKER_01", Speaker: "SPEAKER_01", Start: 5.5, End: 9.5, Text: "fine thanks bye"},
	}
	if !slices.Equal(res.Turns, want) {
		t.Errorf("Turns = %+v\nwant %+v", res.Turns, want)
	}
	if res.RunID != "run-1" || res.Source != "meeting.wav" {
		t.Errorf("RunID/Source = %q/%q", res.RunID, res.Source)
	}
	if !slices.Equal(res.Speakers, []string{"SPEAKER_00", "SPEAKER_01"}) {
		t.Errorf("Speakers = %v", res.Speakers)
	}
	wantStats := Stats{DiarizationTurns: 2, Units: 4, SpeakerTurns: 2}
	if res.Stats != wantStats {
		t.Errorf("Stats = %+v, want %+v", res.Stats, wantStats)
	}
	if res.Mapping != nil {
		t.Errorf("Mapping = %v, want nil without input mapping", res.Mapping)
	}
}

func TestRun_InputVariants(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantTurns int
		wantSpk   []string
		wantCode  errors.ErrorCode
	}{
		{
			name: "single canonical payload",
			in: Input{Transcript: &Payload{Format: "canonical", Data: []byte(`{
				"turns":[{"speaker_id":"A","start":0,"end":2}],
				"units":[{"text":"hi","start":0.1,"end":0.4},{"text":"there","start":0.5,"end":0.9}]}`)}},
			wantTurns: 1,
			wantSpk:   []string{"A"},
		},
		{
			name: "pre-decoded raw",
			in: Input{Raw: &normalize.Raw{
				Turns: []normalize.RawTurn{{SpeakerID: "B", Start: normalize.At(1), End: normalize.At(3)}},
				Units: []normalize.RawUnit{{Text: "yo", Start: normalize.At(1.5), End: normalize.At(2)}},
			}},
			wantTurns: 1,
			wantSpk:   []string{"B"},
		},
		{
			name:      "transcript only yields unknown speaker",
			in:        Input{Transcript: &Payload{Format: "whisper", Data: []byte(whisperPayload)}},
			wantTurns: 1,
			wantSpk:   []string{segment.Unknown},
		},
		{
			name:     "nothing supplied",
			in:       Input{},
			wantCode: errors.ErrCodeEmptyInput,
		},
		{
			name:     "unknown adapter",
			in:       Input{Transcript: &Payload{Format: "docx", Data: []byte(`{}`)}},
			wantCode: errors.ErrCodeUnsupportedFormat,
		},
		{
			name:     "undecodable payload",
			in:       Input{Diarization: &Payload{Format: "pyannote", Data: []byte(`{"segments": 3}`)}},
			wantCode: errors.ErrCodeInvalidInput,
		},
		{
			name: "everything malformed",
			in: Input{Raw: &normalize.Raw{
				Units: []normalize.RawUnit{{Text: "x", Start: normalize.At(2), End: normalize.At(1)}},
			}},
			wantCode: errors.ErrCodeEmptyInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, Config{})
			res, err := e.Run(context.Background(), tt.in)
			if tt.wantCode != "" {
				if !errors.HasCode(err, tt.wantCode) {
					t.Fatalf("Run() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(res.Turns) != tt.wantTurns {
				t.Errorf("got %d turns, want %d", len(res.Turns), tt.wantTurns)
			}
			if !slices.Equal(res.Speakers, tt.wantSpk) {
				t.Errorf("Speakers = %v, want %v", res.Speakers, tt.wantSpk)
			}
		})
	}
}

func TestRun_WhisperXSuppliesTurnsWhenDiarizationEmpty(t *testing.T) {
	e := newTestEngine(t, Config{})
	res, err := e.Run(context.Background(), Input{
		Diarization: &Payload{Format: "pyannote", Data: []byte(`{"segments":[]}`)},
		Transcript: &Payload{Format: "whisperx", Data: []byte(`{"segments":[
			{"start":0,"end":1,"text":"hi","speaker":"S1","words":[{"word":"hi","start":0.1,"end":0.5}]}]}`)},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Turns) != 1 || res.Turns[0].SpeakerID != "S1" {
		t.Errorf("Turns = %+v", res.Turns)
	}
}

func TestRun_KeepsRejectedRecords(t *testing.T) {
	e := newTestEngine(t, Config{})
	res, err := e.Run(context.Background(), Input{Raw: &normalize.Raw{
		Turns: []normalize.RawTurn{
			{SpeakerID: "A", Start: normalize.At(0), End: normalize.At(4)},
			{SpeakerID: "A", Start: normalize.At(4), End: normalize.At(4)},
		},
		Units: []normalize.RawUnit{
			{Text: "ok", Start: normalize.At(1), End: normalize.At(2)},
			{Text: "bad", Start: normalize.At(-1), End: normalize.At(2)},
		},
	}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stats.Rejected != 1 || len(res.Rejected) != 1 || res.Stats.DroppedTurns != 1 {
		t.Errorf("Stats = %+v", res.Stats)
	}
	if !errors.HasCode(res.Rejected[0], errors.ErrCodeMalformedSegment) {
		t.Errorf("Rejected[0] = %v", res.Rejected[0])
	}
}

func TestRun_AppliesMappingAndRemapIsIdempotent(t *testing.T) {
	e := newTestEngine(t, Config{})
	in := sidecarInput()
	in.Mapping = speakers.Mapping{"SPEAKER_00": "Alice", "SPEAKER_01": "  "}

	res, err := e.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Turns[0].Speaker != "Alice" || res.Turns[1].Speaker != "SPEAKER_01" {
		t.Errorf("speakers after mapping: %q, %q", res.Turns[0].Speaker, res.Turns[1].Speaker)
	}
	if res.Turns[0].SpeakerID != "SPEAKER_00" {
		t.Errorf("SpeakerID rewritten to %q", res.Turns[0].SpeakerID)
	}
	wantMapping := speakers.Mapping{"SPEAKER_00": "Alice", "SPEAKER_01": "SPEAKER_01"}
	if fmt.Sprint(res.Mapping) != fmt.Sprint(wantMapping) {
		t.Errorf("Mapping = %v, want %v", res.Mapping, wantMapping)
	}

	chain := speakers.Mapping{"SPEAKER_00": "SPEAKER_01", "SPEAKER_01": "Bob"}
	e.Remap(context.Background(), res, chain)
	once := slices.Clone(res.Turns)
	e.Remap(context.Background(), res, chain)
	if !slices.Equal(once, res.Turns) {
		t.Errorf("Remap not idempotent:\n%+v\n%+v", once, res.Turns)
	}
	if res.Turns[0].Speaker != "SPEAKER_01" || res.Turns[1].Speaker != "Bob" {
		t.Errorf("chained mapping compounded: %+v", res.Turns)
	}
}

func TestRun_PauseSplitting(t *testing.T) {
	in := Input{Raw: &normalize.Raw{
		Turns: []normalize.RawTurn{{SpeakerID: "A", Start: normalize.At(0), End: normalize.At(20)}},
		Units: []normalize.RawUnit{
			{Text: "one", Start: normalize.At(0), End: normalize.At(1)},
			{Text: "two", Start: normalize.At(10), End: normalize.At(11)},
		},
	}}
	tests := []struct {
		pause float64
		want  int
	}{
		{0, 1},
		{5, 2},
		{9, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.pause), func(t *testing.T) {
			res, err := newTestEngine(t, Config{MaxPauseSeconds: tt.pause}).Run(context.Background(), in)
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Turns) != tt.want {
				t.Errorf("got %d turns, want %d", len(res.Turns), tt.want)
			}
		})
	}
}

func TestExport(t *testing.T) {
	e := newTestEngine(t, Config{Formats: []string{"txt", "json"}})
	res, err := e.Run(context.Background(), sidecarInput())
	if err != nil {
		t.Fatal(err)
	}

	artifacts, err := e.Export(context.Background(), res, nil)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(artifacts) != 2 || artifacts[0].Format != export.FormatText || artifacts[1].Format != export.FormatJSON {
		t.Fatalf("default formats not used: %+v", artifacts)
	}
	if !strings.HasPrefix(string(artifacts[0].Data), "[0.50s - 4.80s] SPEAKER_00: Hello there how are you\n") {
		t.Errorf("txt = %q", artifacts[0].Data)
	}

	all, err := e.Export(context.Background(), res, export.AllFormats)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range all {
		if a.Report.Records != len(res.Turns) {
			t.Errorf("%s: %d records, want %d", a.Format, a.Report.Records, len(res.Turns))
		}
	}
}

func TestExport_SubtitlePolicy(t *testing.T) {
	overlapping := &Result{RunID: "r", Turns: []segment.SpeakerTurn{
		{SpeakerID: "A", Speaker: "A", Start: 0, End: 5, Text: "one"},
		{SpeakerID: "B", Speaker: "B", Start: 3, End: 6, Text: "two"},
	}}

	clip := newTestEngine(t, Config{})
	artifacts, err := clip.Export(context.Background(), overlapping, []export.Format{export.FormatSRT})
	if err != nil {
		t.Fatalf("clip Export() error = %v", err)
	}
	if !artifacts[0].Report.Degraded {
		t.Error("expected degraded report under clip policy")
	}

	reject := newTestEngine(t, Config{SubtitlePolicy: "reject"})
	if _, err := reject.Export(context.Background(), overlapping, []export.Format{export.FormatVTT}); !errors.HasCode(err, errors.ErrCodeExportFormat) {
		t.Errorf("reject Export() error = %v, want EXPORT_FORMAT", err)
	}
}

func TestSpeakers(t *testing.T) {
	e := newTestEngine(t, Config{})
	ids, err := e.Speakers(context.Background(), sidecarInput())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []string{"SPEAKER_00", "SPEAKER_01"}) {
		t.Errorf("Speakers() = %v", ids)
	}
}

func TestRun_Concurrent(t *testing.T) {
	e, err := New(Config{}, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	ref, err := e.Run(context.Background(), sidecarInput())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Run(context.Background(), sidecarInput())
		}(i)
	}
	wg.Wait()

	ids := map[string]bool{ref.RunID: true}
	for i, r := range results {
		if errs[i] != nil {
			t.Fatalf("run %d: %v", i, errs[i])
		}
		if !slices.Equal(r.Turns, ref.Turns) {
			t.Errorf("run %d produced different turns", i)
		}
		if ids[r.RunID] {
			t.Errorf("run id %q reused", r.RunID)
		}
		ids[r.RunID] = true
	}
}

func TestRun_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	e := newTestEngine(t, Config{})
	if _, err := e.Run(context.Background(), sidecarInput()); err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	want := []string{"diarkit.decode", "diarkit.decode", "diarkit.normalize", "diarkit.align", "diarkit.aggregate", "diarkit.run"}
	if !slices.Equal(names, want) {
		t.Errorf("spans = %v, want %v", names, want)
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.SubtitlePolicy != "clip" || len(cfg.Formats) != len(export.AllFormats) {
		t.Errorf("defaults = %+v", cfg)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative pause", Config{MaxPauseSeconds: -1}},
		{"negative merge gap", Config{MergeGapSeconds: -0.5}},
		{"negative min turn", Config{MinTurnSeconds: -2}},
		{"bad policy", Config{SubtitlePolicy: "drop"}},
		{"bad format", Config{Formats: []string{"docx"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestWith(t *testing.T) {
	base := newTestEngine(t, Config{})
	if _, err := base.Run(context.Background(), sidecarInput()); err != nil {
		t.Fatal(err)
	}

	derived, err := base.With(Config{MaxPauseSeconds: 1})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	if derived.Adapters() != base.Adapters() {
		t.Error("derived engine should share the adapter registry")
	}
	res, err := derived.Run(context.Background(), sidecarInput())
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID != "run-2" {
		t.Errorf("RunID = %q, want the shared generator's run-2", res.RunID)
	}
	if len(res.Turns) != 3 {
		t.Errorf("got %d turns, want 3 with pause splitting", len(res.Turns))
	}
	if base.Config().MaxPauseSeconds != 0 {
		t.Error("With() changed the base engine")
	}

	if _, err := base.With(Config{SubtitlePolicy: "drop"}); err == nil {
		t.Error("With() expected error for an invalid config")
	}
}
