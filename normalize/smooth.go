package normalize

import "github.com/kbukum/diarkit/segment"

// mergeGaps joins each turn into its predecessor when both belong to the same
// speaker and the silence between them is shorter than gap. Input must be
// sorted by start; output stays sorted because merged turns keep the
// earlier start.
func mergeGaps(turns []segment.DiarizationTurn, gap float64) ([]segment.DiarizationTurn, int) {
	if len(turns) < 2 {
		return turns, 0
	}
	out := make([]segment.DiarizationTurn, 0, len(turns))
	merged := 0
	for _, t := range turns {
		if last := len(out) - 1; last >= 0 && out[last].SpeakerID == t.SpeakerID && t.Start-out[last].End < gap {
			if t.End > out[last].End {
				out[last].End = t.End
			}
			merged++
			continue
		}
		out = append(out, t)
	}
	return out, merged
}

// dropShort removes turns shorter than minDur.
func dropShort(turns []segment.DiarizationTurn, minDur float64) ([]segment.DiarizationTurn, int) {
	out := turns[:0:0]
	for _, t := range turns {
		if t.Duration() >= minDur {
			out = append(out, t)
		}
	}
	return out, len(turns) - len(out)
}
