package segment

// DistinctSpeakers returns the raw speaker ids present in turns, in order
// of first appearance.
func DistinctSpeakers(turns []DiarizationTurn) []string {
	return distinct(len(turns), func(i int) string { return turns[i].SpeakerID })
}

// TurnSpeakers returns the raw speaker ids of an aggregated transcript, in
// order of first appearance. Unknown is included when present.
func TurnSpeakers(turns []SpeakerTurn) []string {
	return distinct(len(turns), func(i int) string { return turns[i].SpeakerID })
}

func distinct(n int, id func(int) string) []string {
	seen := make(map[string]struct{}, 8)
	out := make([]string, 0, 8)
	for i := range n {
		s := id(i)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
