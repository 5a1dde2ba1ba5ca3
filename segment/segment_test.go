package segment

import (
	"slices"
	"testing"
)

func TestOverlap(t *testing.T) {
	tests := []struct {
		name                   string
		aStart, aEnd, bStart, bEnd float64
		want                   float64
	}{
		{"contained", 3, 4, 0, 5, 1},
		{"partial left", 0, 2, 1, 5, 1},
		{"partial right", 4, 6, 0, 5, 1},
		{"touching", 0, 5, 5, 10, 0},
		{"disjoint", 10, 11, 0, 2, 0},
		{"zero length inside", 2, 2, 0, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlap(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlap = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDistinctSpeakers_FirstAppearanceOrder(t *testing.T) {
	turns := []DiarizationTurn{
		{SpeakerID: "SPEAKER_01", Start: 0, End: 1},
		{SpeakerID: "SPEAKER_00", Start: 1, End: 2},
		{SpeakerID: "SPEAKER_01", Start: 2, End: 3},
		{SpeakerID: "SPEAKER_02", Start: 3, End: 4},
		{SpeakerID: "SPEAKER_00", Start: 4, End: 5},
	}
	want := []string{"SPEAKER_01", "SPEAKER_00", "SPEAKER_02"}
	for range 20 {
		if got := DistinctSpeakers(turns); !slices.Equal(got, want) {
			t.Fatalf("DistinctSpeakers = %v, want %v", got, want)
		}
	}
}

func TestTurnSpeakers_IncludesUnknown(t *testing.T) {
	turns := []SpeakerTurn{
		{SpeakerID: Unknown},
		{SpeakerID: "A"},
		{SpeakerID: Unknown},
	}
	if got := TurnSpeakers(turns); !slices.Equal(got, []string{Unknown, "A"}) {
		t.Errorf("TurnSpeakers = %v", got)
	}
	if got := TurnSpeakers(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestSpeakerTurn_DisplayName(t *testing.T) {
	if got := (SpeakerTurn{SpeakerID: "A"}).DisplayName(); got != "A" {
		t.Errorf("expected fallback to raw id, got %q", got)
	}
	if got := (SpeakerTurn{SpeakerID: "A", Speaker: "Alice"}).DisplayName(); got != "Alice" {
		t.Errorf("expected display name, got %q", got)
	}
}

func TestUnitHelpers(t *testing.T) {
	u := TranscriptUnit{Start: 10, End: 11}
	if u.Midpoint() != 10.5 {
		t.Errorf("Midpoint = %v", u.Midpoint())
	}
	if u.Duration() != 1 {
		t.Errorf("Duration = %v", u.Duration())
	}
	if !(Canonical{}).Empty() {
		t.Error("zero Canonical should be empty")
	}
}
