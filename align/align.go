package align

import (
	"cmp"
	"slices"
	"sort"

	"github.com/kbukum/diarkit/segment"
)

// Assign labels each unit with the speaker of its best-matching turn.
// The result has one entry per unit, in unit order after a stable sort by
// start. Inputs are not modified.
func Assign(turns []segment.DiarizationTurn, units []segment.TranscriptUnit) []segment.AttributedUnit {
	turns = sortedTurns(turns)
	units = sortedUnits(units)

	out := make([]segment.AttributedUnit, len(units))
	if len(turns) == 0 {
		for i, u := range units {
			out[i] = segment.AttributedUnit{TranscriptUnit: u, SpeakerID: segment.Unknown}
		}
		return out
	}

	gaps := newGapIndex(turns)

	// active holds indexes of turns that started before some unit's end and
	// have not yet ended before the current unit's start, in index order.
	active := make([]int, 0, 16)
	next := 0
	for i, u := range units {
		for next < len(turns) && turns[next].Start < u.End {
			active = append(active, next)
			next++
		}
		// unit starts are non-decreasing, so a turn that ended before this
		// unit can never intersect a later one
		kept := active[:0]
		for _, j := range active {
			if turns[j].End > u.Start {
				kept = append(kept, j)
			}
		}
		active = kept

		best, bestOverlap := -1, 0.0
		overlapping := 0
		var firstSpeaker string
		multi := false
		for _, j := range active {
			ov := segment.Overlap(u.Start, u.End, turns[j].Start, turns[j].End)
			if ov <= 0 {
				continue
			}
			if overlapping == 0 {
				firstSpeaker = turns[j].SpeakerID
			} else if turns[j].SpeakerID != firstSpeaker {
				multi = true
			}
			overlapping++
			if ov > bestOverlap {
				best, bestOverlap = j, ov
			}
		}
		if best < 0 {
			best = gaps.nearest(u.Midpoint())
		}
		out[i] = segment.AttributedUnit{TranscriptUnit: u, SpeakerID: turns[best].SpeakerID, Overlap: multi}
	}
	return out
}

// AssignNaive compares every unit with every turn. It defines the expected
// output of Assign.
func AssignNaive(turns []segment.DiarizationTurn, units []segment.TranscriptUnit) []segment.AttributedUnit {
	turns = sortedTurns(turns)
	units = sortedUnits(units)

	out := make([]segment.AttributedUnit, len(units))
	for i, u := range units {
		if len(turns) == 0 {
			out[i] = segment.AttributedUnit{TranscriptUnit: u, SpeakerID: segment.Unknown}
			continue
		}
		best, bestOverlap := -1, 0.0
		speakers := map[string]struct{}{}
		for j, t := range turns {
			ov := segment.Overlap(u.Start, u.End, t.Start, t.End)
			if ov > 0 {
				speakers[t.SpeakerID] = struct{}{}
			}
			if ov > bestOverlap {
				best, bestOverlap = j, ov
			}
		}
		if best < 0 {
			mid := u.Midpoint()
			bestDist := 0.0
			for j, t := range turns {
				d := distance(t, mid)
				if best < 0 || d < bestDist {
					best, bestDist = j, d
				}
			}
		}
		out[i] = segment.AttributedUnit{TranscriptUnit: u, SpeakerID: turns[best].SpeakerID, Overlap: len(speakers) > 1}
	}
	return out
}

// distance is how far mid lies outside t: mid - t.End for a turn before
// mid, t.Start - mid for a turn after it, 0 for a turn containing it.
func distance(t segment.DiarizationTurn, mid float64) float64 {
	return max(0, t.Start-mid, mid-t.End)
}

// gapIndex answers nearest-turn queries for units that intersect no turn.
// Turns are sorted by start, so the turns starting at or before mid form a
// prefix. Within it the best candidate is the first turn reaching mid, or
// failing that the one with the latest end; after it the best is the first
// turn. Prefix maxima of End make both lookups binary searches.
type gapIndex struct {
	turns  []segment.DiarizationTurn
	maxEnd []float64 // maxEnd[i] = max End over turns[0..i]
	argMax []int     // lowest index attaining maxEnd[i]
}

func newGapIndex(turns []segment.DiarizationTurn) gapIndex {
	g := gapIndex{
		turns:  turns,
		maxEnd: make([]float64, len(turns)),
		argMax: make([]int, len(turns)),
	}
	for i, t := range turns {
		if i == 0 || t.End > g.maxEnd[i-1] {
			g.maxEnd[i], g.argMax[i] = t.End, i
		} else {
			g.maxEnd[i], g.argMax[i] = g.maxEnd[i-1], g.argMax[i-1]
		}
	}
	return g
}

// nearest returns the index of the turn closest to mid, preferring the
// lowest index on equal distance.
func (g gapIndex) nearest(mid float64) int {
	// k = number of turns starting at or before mid
	k := sort.Search(len(g.turns), func(i int) bool { return g.turns[i].Start > mid })
	if k == 0 {
		return 0
	}
	if g.maxEnd[k-1] >= mid {
		// first turn in the prefix whose end reaches mid contains it
		return sort.Search(k, func(i int) bool { return g.maxEnd[i] >= mid })
	}
	before := g.argMax[k-1]
	if k == len(g.turns) {
		return before
	}
	if mid-g.maxEnd[k-1] <= g.turns[k].Start-mid {
		return before
	}
	return k
}

func sortedTurns(turns []segment.DiarizationTurn) []segment.DiarizationTurn {
	byStart := func(a, b segment.DiarizationTurn) int { return cmp.Compare(a.Start, b.Start) }
	if slices.IsSortedFunc(turns, byStart) {
		return turns
	}
	turns = slices.Clone(turns)
	slices.SortStableFunc(turns, byStart)
	return turns
}

func sortedUnits(units []segment.TranscriptUnit) []segment.TranscriptUnit {
	byStart := func(a, b segment.TranscriptUnit) int { return cmp.Compare(a.Start, b.Start) }
	if slices.IsSortedFunc(units, byStart) {
		return units
	}
	units = slices.Clone(units)
	slices.SortStableFunc(units, byStart)
	return units
}
