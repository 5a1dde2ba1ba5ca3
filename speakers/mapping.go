package speakers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/segment"
)

// Mapping maps raw speaker ids to display names. It may be partial.
type Mapping map[string]string

// Resolve returns the display name for id. Unmapped ids and blank names
// fall back to the raw id.
func (m Mapping) Resolve(id string) string {
	if name := strings.TrimSpace(m[id]); name != "" {
		return name
	}
	return id
}

// Apply returns a copy of turns with Speaker set from m. The input is not modified.
func Apply(turns []segment.SpeakerTurn, m Mapping) []segment.SpeakerTurn {
	out := make([]segment.SpeakerTurn, len(turns))
	for i, t := range turns {
		t.Speaker = m.Resolve(t.SpeakerID)
		out[i] = t
	}
	return out
}

// Complete returns a mapping with an entry for every id in ids, taking names
// from m where present. It feeds name-input forms.
func Complete(ids []string, m Mapping) Mapping {
	out := make(Mapping, len(ids))
	for _, id := range ids {
		out[id] = m.Resolve(id)
	}
	return out
}

// Parse validates a decoded user mapping. Every value must be a string and
// every key non-empty. Either the whole mapping is returned or an
// INVALID_MAPPING error listing all offending keys.
func Parse(raw map[string]any) (Mapping, error) {
	var bad []string
	m := make(Mapping, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(k) == "" {
			bad = append(bad, k)
			continue
		}
		m[k] = s
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, errors.InvalidMapping(bad, "display names must be strings keyed by a non-empty speaker id")
	}
	return m, nil
}

// ParseJSON decodes and validates a JSON object mapping. A null or empty
// document is an empty mapping.
func ParseJSON(data []byte) (Mapping, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Mapping{}, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.InvalidMapping(nil, fmt.Sprintf("mapping must be a JSON object: %v", err)).WithCause(err)
	}
	return Parse(raw)
}
