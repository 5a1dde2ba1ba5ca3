package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type tsState uint8

const (
	tsMissing tsState = iota
	tsValue
	tsUnparseable
)

// Timestamp is a seconds value as found in a backend payload. It may be
// missing or unparseable; the Normalizer decides what to do about that.
// JSON numbers, numeric strings and clock strings ("01:02.5", "00:01:02,500")
// are accepted.
type Timestamp struct {
	v     float64
	state tsState
	raw   string
}

// At returns a Timestamp holding v seconds.
func At(v float64) Timestamp { return Timestamp{v: v, state: tsValue} }

// Unparseable returns a Timestamp that was present but not a number.
func Unparseable(raw string) Timestamp { return Timestamp{state: tsUnparseable, raw: raw} }

// Missing reports whether the field was absent or null.
func (t Timestamp) Missing() bool { return t.state == tsMissing }

// Seconds returns the parsed value and whether one is present.
func (t Timestamp) Seconds() (float64, bool) { return t.v, t.state == tsValue }

// problem describes why t cannot be used as a timestamp, or "".
func (t Timestamp) problem() string {
	switch t.state {
	case tsMissing:
		return "is missing"
	case tsUnparseable:
		return "is not a number (" + strconv.Quote(t.raw) + ")"
	}
	switch {
	case math.IsNaN(t.v):
		return "is NaN"
	case math.IsInf(t.v, 0):
		return "is infinite"
	case t.v < 0:
		return "is negative"
	}
	return ""
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = ParseTimestamp(s)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*t = Unparseable(string(b))
		return nil
	}
	*t = At(v)
	return nil
}

// MarshalJSON writes the value as a number, or null when unusable.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.state != tsValue || math.IsNaN(t.v) || math.IsInf(t.v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, t.v, 'f', -1, 64), nil
}

// ParseTimestamp parses seconds ("12.5", "NaN") or a clock value
// ("MM:SS.fff", "HH:MM:SS,fff"). An empty string is Missing.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	if !strings.Contains(s, ":") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Unparseable(s)
		}
		return At(v)
	}
	parts := strings.Split(strings.Replace(s, ",", ".", 1), ":")
	if len(parts) > 3 {
		return Unparseable(s)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return Unparseable(s)
		}
		// only the seconds field may carry a fraction
		if i < len(parts)-1 && v != math.Trunc(v) {
			return Unparseable(s)
		}
		total = total*60 + v
	}
	return At(total)
}

// firstSet returns the first non-missing timestamp, used when backends name
// the same field differently (start vs start_time).
func firstSet(ts ...Timestamp) Timestamp {
	for _, t := range ts {
		if !t.Missing() {
			return t
		}
	}
	return Timestamp{}
}
