package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/diarkit/engine"
	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/export"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/observability"
	"github.com/kbukum/diarkit/segment"
	"github.com/kbukum/diarkit/speakers"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Enabled:  true,
		DSN:      filepath.Join(t.TempDir(), "diarkit.db"),
		LogLevel: "silent",
	}, logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleResult(id string) *engine.Result {
	return &engine.Result{
		RunID:    id,
		Source:   "meeting.wav",
		Speakers: []string{"SPEAKER_00", "SPEAKER_01"},
		Turns: []segment.SpeakerTurn{
			{SpeakerID: "SPEAKER_00", Speaker: "SPEAKER_00", Start: 0, End: 1.5, Text: "hello there"},
			{SpeakerID: "SPEAKER_01", Speaker: "SPEAKER_01", Start: 1.5, End: 3, Text: "hi"},
		},
		Stats: engine.Stats{DiarizationTurns: 2, Units: 3, SpeakerTurns: 2},
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"disabled", Config{Driver: "postgres"}, ""},
		{"defaults", Config{Enabled: true}, ""},
		{"unsupported driver", Config{Enabled: true, Driver: "postgres"}, "unsupported driver"},
		{"idle above open", Config{Enabled: true, MaxOpenConns: 1, MaxIdleConns: 2}, "max_idle_conns"},
		{"bad lifetime", Config{Enabled: true, ConnMaxLifetime: "forever"}, "conn_max_lifetime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRepositorySaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	artifacts := []export.Artifact{
		{Format: export.FormatText},
		{Format: export.FormatSRT, Report: export.Report{Degraded: true}},
	}
	rec := NewRecord(sampleResult("run-1"), artifacts)
	if !rec.Degraded {
		t.Error("expected degraded record when an artifact is degraded")
	}
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Source != "meeting.wav" || len(got.Turns) != 2 || got.Turns[0].Text != "hello there" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Mapping["SPEAKER_01"] != "SPEAKER_01" {
		t.Errorf("mapping should be completed with raw ids, got %v", got.Mapping)
	}
	if got.Stats.Units != 3 {
		t.Errorf("stats not persisted: %+v", got.Stats)
	}

	res := got.Result()
	if res.RunID != "run-1" || len(res.Speakers) != 2 {
		t.Errorf("Result() = %+v", res)
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	_, err := repo.Get(context.Background(), "nope")
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestRepositorySaveRequiresID(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	err := repo.Save(context.Background(), &TranscriptRecord{})
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestRepositoryUpdateMappingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	if err := repo.Save(ctx, NewRecord(sampleResult("run-2"), nil)); err != nil {
		t.Fatal(err)
	}

	chain := speakers.Mapping{"SPEAKER_00": "SPEAKER_01", "SPEAKER_01": "Bob"}
	first, err := repo.UpdateMapping(ctx, "run-2", chain)
	if err != nil {
		t.Fatalf("UpdateMapping: %v", err)
	}
	second, err := repo.UpdateMapping(ctx, "run-2", chain)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first.Turns {
		if first.Turns[i].Speaker != second.Turns[i].Speaker {
			t.Errorf("turn %d changed on reapply: %q vs %q", i, first.Turns[i].Speaker, second.Turns[i].Speaker)
		}
		if second.Turns[i].SpeakerID != sampleResult("").Turns[i].SpeakerID {
			t.Errorf("turn %d raw id mutated to %q", i, second.Turns[i].SpeakerID)
		}
	}
	if second.Turns[0].Speaker != "SPEAKER_01" || second.Turns[1].Speaker != "Bob" {
		t.Errorf("unexpected names: %q, %q", second.Turns[0].Speaker, second.Turns[1].Speaker)
	}

	stored, err := repo.Get(ctx, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Mapping["SPEAKER_01"] != "Bob" || stored.Turns[1].Speaker != "Bob" {
		t.Errorf("mapping not persisted: %+v", stored.Mapping)
	}

	// A later partial mapping replaces the earlier one rather than stacking on it.
	third, err := repo.UpdateMapping(ctx, "run-2", speakers.Mapping{"SPEAKER_00": "Alice"})
	if err != nil {
		t.Fatal(err)
	}
	if third.Turns[0].Speaker != "Alice" || third.Turns[1].Speaker != "SPEAKER_01" {
		t.Errorf("unexpected names after remap: %q, %q", third.Turns[0].Speaker, third.Turns[1].Speaker)
	}
}

func TestRepositoryUpdateMappingMissing(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	_, err := repo.UpdateMapping(context.Background(), "ghost", speakers.Mapping{})
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestRepositoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := NewRecord(sampleResult(id), nil)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := repo.List(ctx, ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "c" || recs[1].ID != "b" {
		t.Fatalf("List = %v", ids(recs))
	}
	recs, _ = repo.List(ctx, ListOptions{Limit: 2, Offset: 2})
	if len(recs) != 1 || recs[0].ID != "a" {
		t.Fatalf("second page = %v", ids(recs))
	}

	if err := repo.Delete(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, "b"); err != nil {
		t.Errorf("deleting a missing id should succeed, got %v", err)
	}
	recs, _ = repo.List(ctx, ListOptions{})
	if len(recs) != 2 {
		t.Errorf("expected 2 records after delete, got %v", ids(recs))
	}
}

func TestCheckHealth(t *testing.T) {
	db := openTestDB(t)
	h := db.CheckHealth(context.Background())
	if h.Status != observability.HealthStatusUp || h.Details["driver"] != DriverSQLite {
		t.Errorf("health = %+v", h)
	}
	_ = db.Close()
	if err := db.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if h := db.CheckHealth(context.Background()); h.Status != observability.HealthStatusDown {
		t.Errorf("expected down after close, got %+v", h)
	}
}

func TestFromDatabase(t *testing.T) {
	if FromDatabase(nil, "x", "1") != nil {
		t.Error("nil error should map to nil")
	}
	busy := FromDatabase(errString("database is locked"), "x", "1")
	if busy.Code != errors.ErrCodeDatabaseError || !busy.Retryable {
		t.Errorf("busy = %+v", busy)
	}
	other := FromDatabase(errString("no such column"), "x", "1")
	if other.Retryable {
		t.Errorf("schema errors should not be retryable: %+v", other)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func ids(recs []TranscriptRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
