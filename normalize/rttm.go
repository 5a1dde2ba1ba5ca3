package normalize

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// RTTM decodes Rich Transcription Time Marked files as written by NeMo and
// pyannote:
//
//	SPEAKER meeting 1 12.340 1.250 <NA> <NA> speaker_0 <NA> <NA>
//
// Only SPEAKER lines are read. A SPEAKER line with too few fields is kept
// with missing timestamps so the Normalizer reports it.
type RTTM struct{}

func (RTTM) Name() string { return "rttm" }

func (RTTM) Decode(data []byte) (Raw, error) {
	var raw Raw
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] != "SPEAKER" {
			continue
		}
		if len(fields) < 8 {
			raw.Turns = append(raw.Turns, RawTurn{})
			continue
		}
		onset := ParseTimestamp(fields[3])
		raw.Turns = append(raw.Turns, RawTurn{
			SpeakerID: fields[7],
			Start:     onset,
			End:       addDuration(onset, fields[4]),
		})
	}
	if err := sc.Err(); err != nil {
		return Raw{}, decodeError("rttm", err)
	}
	return raw, nil
}

func addDuration(onset Timestamp, dur string) Timestamp {
	d, err := strconv.ParseFloat(dur, 64)
	if err != nil {
		return Unparseable(dur)
	}
	start, ok := onset.Seconds()
	if !ok {
		return onset
	}
	return At(start + d)
}
