package normalize

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/segment"
)

// Options tune diarization post-processing. The zero value disables both steps.
type Options struct {
	// MergeGap joins consecutive same-speaker turns separated by less than
	// this many seconds.
	MergeGap float64 `yaml:"merge_gap_seconds" mapstructure:"merge_gap_seconds" json:"merge_gap_seconds"`
	// MinTurnDuration drops turns shorter than this many seconds.
	MinTurnDuration float64 `yaml:"min_turn_seconds" mapstructure:"min_turn_seconds" json:"min_turn_seconds"`
}

// Validate rejects negative or non-finite thresholds.
func (o Options) Validate() error {
	if err := checkThreshold("merge_gap_seconds", o.MergeGap); err != nil {
		return err
	}
	return checkThreshold("min_turn_seconds", o.MinTurnDuration)
}

func checkThreshold(name string, v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be a finite, non-negative number (got: %v)", name, v)
	}
	return nil
}

// Result is the outcome of one normalization.
type Result struct {
	segment.Canonical
	// Rejected lists every record dropped for malformed timestamps.
	Rejected []*errors.AppError
	// Dropped counts diarization turns removed as artifacts (start >= end
	// or shorter than MinTurnDuration).
	Dropped int
	// Merged counts turns absorbed by MergeGap smoothing.
	Merged int
}

// Normalizer validates and orders raw records. It holds no per-run state.
type Normalizer struct {
	opts Options
	log  *logger.Logger
}

// New creates a Normalizer. A nil logger uses the "normalize" component logger.
func New(opts Options, log *logger.Logger) *Normalizer {
	if log == nil {
		log = logger.Get("normalize")
	}
	return &Normalizer{opts: opts, log: log}
}

// Normalize converts raw records into canonical sequences.
//
// Malformed records are skipped and reported in Result.Rejected.
// Diarization turns with start >= end are dropped. Both sequences are
// stable-sorted by start. If nothing survives, an EMPTY_INPUT error is
// returned together with the (empty) result so callers can still inspect
// the rejections.
func (n *Normalizer) Normalize(raw Raw) (Result, error) {
	var res Result

	res.Turns = make([]segment.DiarizationTurn, 0, len(raw.Turns))
	for i, rt := range raw.Turns {
		if rt.SpeakerID == "" {
			res.Rejected = append(res.Rejected, n.reject("turn", i, "speaker id is missing"))
			continue
		}
		start, end, reason := checkInterval(rt.Start, rt.End)
		if reason != "" {
			res.Rejected = append(res.Rejected, n.reject("turn", i, reason))
			continue
		}
		if start >= end {
			res.Dropped++
			n.log.Debug("dropping zero-length diarization turn", logger.Fields(
				logger.FieldRecord, i, "speaker_id", rt.SpeakerID, "start", start, "end", end))
			continue
		}
		res.Turns = append(res.Turns, segment.DiarizationTurn{SpeakerID: rt.SpeakerID, Start: start, End: end})
	}

	res.Units = make([]segment.TranscriptUnit, 0, len(raw.Units))
	for i, ru := range raw.Units {
		start, end, reason := checkInterval(ru.Start, ru.End)
		if reason == "" && start > end {
			reason = "start is after end"
		}
		if reason != "" {
			res.Rejected = append(res.Rejected, n.reject("unit", i, reason))
			continue
		}
		unit := segment.TranscriptUnit{Text: ru.Text, Start: start, End: end}
		if ru.Confidence != nil {
			c := *ru.Confidence
			unit.Confidence = &c
		}
		res.Units = append(res.Units, unit)
	}

	SortTurns(res.Turns)
	SortUnits(res.Units)

	if n.opts.MergeGap > 0 {
		var merged int
		res.Turns, merged = mergeGaps(res.Turns, n.opts.MergeGap)
		res.Merged = merged
	}
	if n.opts.MinTurnDuration > 0 {
		var short int
		res.Turns, short = dropShort(res.Turns, n.opts.MinTurnDuration)
		res.Dropped += short
	}

	if res.Dropped > 0 || len(res.Rejected) > 0 {
		n.log.Info("normalized with losses", logger.Fields(
			"rejected", len(res.Rejected), "dropped_turns", res.Dropped, "merged_turns", res.Merged))
	}

	if res.Empty() {
		return res, errors.EmptyInput()
	}
	return res, nil
}

func (n *Normalizer) reject(kind string, index int, reason string) *errors.AppError {
	n.log.Warn("rejecting malformed record", logger.Fields(
		logger.FieldKind, kind, logger.FieldRecord, index, logger.FieldReason, reason))
	return errors.MalformedSegment(kind, index, reason)
}

func checkInterval(s, e Timestamp) (start, end float64, reason string) {
	if p := s.problem(); p != "" {
		return 0, 0, "start " + p
	}
	if p := e.problem(); p != "" {
		return 0, 0, "end " + p
	}
	start, _ = s.Seconds()
	end, _ = e.Seconds()
	return start, end, ""
}

// SortTurns stable-sorts turns by start in place.
func SortTurns(turns []segment.DiarizationTurn) {
	slices.SortStableFunc(turns, func(a, b segment.DiarizationTurn) int {
		return cmp.Compare(a.Start, b.Start)
	})
}

// SortUnits stable-sorts units by start in place.
func SortUnits(units []segment.TranscriptUnit) {
	slices.SortStableFunc(units, func(a, b segment.TranscriptUnit) int {
		return cmp.Compare(a.Start, b.Start)
	})
}
