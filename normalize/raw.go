package normalize

// RawTurn is a diarization record as decoded from a backend payload.
type RawTurn struct {
	SpeakerID string    `json:"speaker_id"`
	Start     Timestamp `json:"start"`
	End       Timestamp `json:"end"`
}

// RawUnit is an ASR record as decoded from a backend payload.
type RawUnit struct {
	Text       string    `json:"text"`
	Start      Timestamp `json:"start"`
	End        Timestamp `json:"end"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// Raw holds the undecided records of one run. Either side may be empty.
type Raw struct {
	Turns []RawTurn `json:"turns"`
	Units []RawUnit `json:"units"`
}

// Combine takes the diarization turns of diar and the transcript units of asr.
// It is used when the two sides come from separate backend calls.
func Combine(diar, asr Raw) Raw {
	return Raw{Turns: diar.Turns, Units: asr.Units}
}
