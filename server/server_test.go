package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/diarkit/database"
	"github.com/kbukum/diarkit/engine"
	apperrors "github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/observability"
	"github.com/kbukum/diarkit/segment"
	"github.com/kbukum/diarkit/storage/local"
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

type testEnv struct {
	handler http.Handler
	repo    *database.Repository
	store   *local.Storage
}

func newTestEnv(t *testing.T, withRepo bool) *testEnv {
	t.Helper()
	n := 0
	eng, err := engine.New(engine.Config{}, engine.WithLogger(logger.Nop()), engine.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}))
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{}
	srv := New(Config{MaxBodySize: "1MB"}, logger.Nop(), nil)
	var checkers []observability.HealthChecker
	opts := []APIOption{WithAPILogger(logger.Nop())}
	if withRepo {
		db, err := database.Open(context.Background(), database.Config{
			Enabled:  true,
			DSN:      filepath.Join(t.TempDir(), "api.db"),
			LogLevel: "silent",
		}, logger.Nop())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = db.Close() })
		env.repo = database.NewRepository(db)
		checkers = append(checkers, db)

		env.store, err = local.NewStorage(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		opts = append(opts, WithRepository(env.repo), WithStorage(env.store, "transcripts"))
	}
	NewAPI(eng, opts...).Register(srv.GinEngine())
	srv.RegisterDefaultEndpoints("diarkit", "test", checkers...)
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func alignBody(extra map[string]any) map[string]any {
	body := map[string]any{
		"source":      "meeting.wav",
		"diarization": map[string]any{"format": "pyannote", "data": json.RawMessage(pyannotePayload)},
		"transcript":  map[string]any{"format": "whisper", "data": json.RawMessage(whisperPayload)},
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

type envelope[T any] struct {
	Data T     `json:"data"`
	Meta *Meta `json:"meta"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorBody {
	t.Helper()
	var out apperrors.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error %s: %v", w.Body.String(), err)
	}
	return out.Error
}

func TestAlign_PersistsAndExports(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodPost, "/v1/align", alignBody(map[string]any{
		"mapping": map[string]string{"SPEAKER_00": "Alice"},
		"formats": []string{"txt", "srt"},
	}))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("missing request id header")
	}

	res := decode[alignResponse](t, w)
	if res.RunID != "run-1" || !res.Persisted {
		t.Errorf("run id %q persisted %v", res.RunID, res.Persisted)
	}
	if len(res.Turns) != 2 || res.Turns[0].Speaker != "Alice" || res.Turns[1].Speaker != "SPEAKER_01" {
		t.Errorf("turns = %+v", res.Turns)
	}
	if res.Mapping["SPEAKER_01"] != "SPEAKER_01" {
		t.Errorf("mapping should list every speaker: %v", res.Mapping)
	}
	if len(res.Artifacts) != 2 || res.Artifacts[0].Key != "transcripts/run-1/transcript.txt" {
		t.Fatalf("artifacts = %+v", res.Artifacts)
	}
	if !strings.Contains(res.Artifacts[0].Content, "[0.50s - 4.80s] Alice: Hello there how are you") {
		t.Errorf("txt content = %q", res.Artifacts[0].Content)
	}
	if ok, _ := env.store.Exists(context.Background(), "transcripts/run-1/transcript.srt"); !ok {
		t.Error("srt artifact not stored")
	}

	w = env.do(t, http.MethodGet, "/v1/transcripts/run-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	rec := decode[database.TranscriptRecord](t, w)
	if len(rec.Artifacts) != 2 || rec.Turns[0].SpeakerID != "SPEAKER_00" {
		t.Errorf("record = %+v", rec)
	}
}

func TestAlign_RTTMStringPayload(t *testing.T) {
	env := newTestEnv(t, false)
	rttm := "SPEAKER meeting 1 0.00 5.00 <NA> <NA> spk_a <NA> <NA>\n" +
		"SPEAKER meeting 1 5.00 5.00 <NA> <NA> spk_b <NA> <NA>\n"
	w := env.do(t, http.MethodPost, "/v1/align", map[string]any{
		"diarization": map[string]any{"format": "rttm", "data": rttm},
		"transcript":  map[string]any{"format": "whisper", "data": json.RawMessage(whisperPayload)},
		"formats":     []string{"json"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	res := decode[alignResponse](t, w)
	if res.Persisted {
		t.Error("nothing should be persisted without a repository")
	}
	if len(res.Speakers) != 2 || res.Speakers[0] != "spk_a" || res.Speakers[1] != "spk_b" {
		t.Errorf("speakers = %v", res.Speakers)
	}
}

func TestAlign_Errors(t *testing.T) {
	env := newTestEnv(t, false)
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{"malformed json", `{"source":`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"no payload", map[string]any{"source": "x"}, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"unknown adapter", map[string]any{
			"diarization": map[string]any{"format": "mystery", "data": json.RawMessage(`{}`)},
		}, http.StatusBadRequest, apperrors.ErrCodeUnsupportedFormat},
		{"unknown export format", alignBody(map[string]any{"formats": []string{"docx"}}),
			http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"non-string mapping value", alignBody(map[string]any{"mapping": map[string]any{"SPEAKER_00": 7}}),
			http.StatusBadRequest, apperrors.ErrCodeInvalidMapping},
		{"negative option", alignBody(map[string]any{"options": map[string]any{"max_pause_seconds": -1}}),
			http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"bad policy option", alignBody(map[string]any{"options": map[string]any{"subtitle_policy": "shrug"}}),
			http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"empty input", map[string]any{
			"diarization": map[string]any{"format": "pyannote", "data": json.RawMessage(`{"segments":[]}`)},
		}, http.StatusUnprocessableEntity, apperrors.ErrCodeEmptyInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/align", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body)
			}
			if got := decodeError(t, w); got.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", got.Code, tt.wantCode)
			}
		})
	}
}

func TestAlign_OptionsOverride(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodPost, "/v1/align", alignBody(map[string]any{
		"formats": []string{"txt"},
		"options": map[string]any{"max_pause_seconds": 1.0},
	}))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	// The 2s silence before "bye" splits SPEAKER_01's run.
	if res := decode[alignResponse](t, w); len(res.Turns) != 3 {
		t.Errorf("expected 3 turns with pause splitting, got %+v", res.Turns)
	}
}

func TestPreviewSpeakers(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodPost, "/v1/speakers", map[string]any{
		"diarization": map[string]any{"format": "pyannote", "data": json.RawMessage(pyannotePayload)},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	res := decode[speakersResponse](t, w)
	if len(res.Speakers) != 2 || res.Mapping["SPEAKER_00"] != "SPEAKER_00" {
		t.Errorf("preview = %+v", res)
	}
}

func TestTranscriptRoutes(t *testing.T) {
	env := newTestEnv(t, true)
	if w := env.do(t, http.MethodPost, "/v1/align", alignBody(nil)); w.Code != http.StatusCreated {
		t.Fatalf("align status = %d, body = %s", w.Code, w.Body)
	}

	t.Run("speakers", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/transcripts/run-1/speakers", nil)
		res := decode[speakersResponse](t, w)
		if w.Code != http.StatusOK || res.ID != "run-1" || len(res.Speakers) != 2 {
			t.Errorf("status %d, body %+v", w.Code, res)
		}
	})

	t.Run("mapping is resubmittable", func(t *testing.T) {
		mapping := `{"SPEAKER_00":"Alice","SPEAKER_01":"Bob"}`
		var last database.TranscriptRecord
		for i := range 2 {
			w := env.do(t, http.MethodPut, "/v1/transcripts/run-1/mapping", mapping)
			if w.Code != http.StatusOK {
				t.Fatalf("put %d: status = %d, body = %s", i, w.Code, w.Body)
			}
			last = decode[database.TranscriptRecord](t, w)
		}
		want := []segment.SpeakerTurn{
			{SpeakerID: "SPEAKER_00", Speaker: "Alice"},
			{SpeakerID: "SPEAKER_01", Speaker: "Bob"},
		}
		for i, tr := range last.Turns {
			if tr.SpeakerID != want[i].SpeakerID || tr.Speaker != want[i].Speaker {
				t.Errorf("turn %d = %+v", i, tr)
			}
		}
		if last.Mapping["SPEAKER_01"] != "Bob" {
			t.Errorf("mapping = %v", last.Mapping)
		}
	})

	t.Run("invalid mapping", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/v1/transcripts/run-1/mapping", `{"SPEAKER_00": ["x"]}`)
		if w.Code != http.StatusBadRequest || decodeError(t, w).Code != apperrors.ErrCodeInvalidMapping {
			t.Errorf("status %d body %s", w.Code, w.Body)
		}
	})

	t.Run("export uses current mapping", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/transcripts/run-1/export/vtt", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
		body := w.Body.String()
		if !strings.HasPrefix(body, "WEBVTT") || !strings.Contains(body, "Alice") {
			t.Errorf("vtt = %q", body)
		}
		if !strings.Contains(w.Header().Get("Content-Disposition"), "transcript.vtt") {
			t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
		}
	})

	t.Run("export unknown format", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/transcripts/run-1/export/docx", nil)
		if w.Code != http.StatusBadRequest || decodeError(t, w).Code != apperrors.ErrCodeUnsupportedFormat {
			t.Errorf("status %d body %s", w.Code, w.Body)
		}
	})

	t.Run("missing transcript", func(t *testing.T) {
		for _, path := range []string{"/v1/transcripts/nope", "/v1/transcripts/nope/speakers", "/v1/transcripts/nope/export/txt"} {
			w := env.do(t, http.MethodGet, path, nil)
			if w.Code != http.StatusNotFound {
				t.Errorf("%s: status = %d", path, w.Code)
			}
		}
	})

	t.Run("list", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/transcripts?limit=10", nil)
		var out envelope[[]transcriptSummary]
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		if len(out.Data) != 1 || out.Data[0].ID != "run-1" || out.Meta == nil || out.Meta.Count != 1 {
			t.Errorf("list = %s", w.Body)
		}
		if w := env.do(t, http.MethodGet, "/v1/transcripts?limit=-1", nil); w.Code != http.StatusBadRequest {
			t.Errorf("negative limit status = %d", w.Code)
		}
	})
}

func TestTranscriptRoutesWithoutRepository(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/v1/transcripts/run-1", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	var sh observability.ServiceHealth
	if err := json.Unmarshal(w.Body.Bytes(), &sh); err != nil {
		t.Fatal(err)
	}
	if sh.Status != observability.HealthStatusUp || len(sh.Components) != 1 || sh.Components[0].Name != "database" {
		t.Errorf("health = %+v", sh)
	}

	w = env.do(t, http.MethodGet, "/version", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"version"`) {
		t.Errorf("version: %d %s", w.Code, w.Body)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	env := newTestEnv(t, false)
	if w := env.do(t, http.MethodGet, "/v2/nothing", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/v1/align", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status = %d", w.Code)
	}
}

func TestBodySizeLimit(t *testing.T) {
	env := newTestEnv(t, false)
	big := `{"source":"` + strings.Repeat("x", 2<<20) + `"}`
	if w := env.do(t, http.MethodPost, "/v1/align", big); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", w.Code)
	}
}
