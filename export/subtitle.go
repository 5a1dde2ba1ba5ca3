package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/segment"
)

// SubtitlePolicy decides what happens when two turns would produce
// overlapping subtitle cues.
type SubtitlePolicy string

const (
	// PolicyClip shortens or delays cues until they no longer overlap and
	// marks the report degraded.
	PolicyClip SubtitlePolicy = "clip"
	// PolicyReject fails the export at the first cue that would overlap.
	PolicyReject SubtitlePolicy = "reject"
)

// ParsePolicy parses a policy name. An empty name selects PolicyClip.
func ParsePolicy(s string) (SubtitlePolicy, error) {
	switch SubtitlePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyClip:
		return PolicyClip, nil
	case PolicyReject:
		return PolicyReject, nil
	}
	return "", fmt.Errorf("subtitle policy must be %q or %q (got: %s)", PolicyClip, PolicyReject, s)
}

type cue struct {
	start, end int64 // milliseconds
	speaker    string
	text       string
}

func toMillis(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}

// buildCues converts turns into cues numbered from 1 with strictly
// positive durations and no overlap.
//
// Under PolicyClip, a cue that starts inside its predecessor cuts the
// predecessor short at its own start. If both start on the same
// millisecond, the later cue is delayed to the predecessor's end instead.
// Zero-length cues are widened to 1ms. Every adjustment is reported.
func buildCues(format Format, turns []segment.SpeakerTurn, policy SubtitlePolicy) ([]cue, []*errors.AppError, error) {
	cues := make([]cue, len(turns))
	var warnings []*errors.AppError
	adjust := func(n int, reason string) error {
		e := errors.ExportFormat(string(format), n, reason)
		if policy == PolicyReject {
			return e
		}
		warnings = append(warnings, e)
		return nil
	}

	for i, t := range turns {
		c := cue{start: toMillis(t.Start), end: toMillis(t.End), speaker: t.DisplayName(), text: singleLine(t.Text)}
		if c.end <= c.start {
			if err := adjust(i+1, "zero-length cue widened to 1ms"); err != nil {
				return nil, nil, err
			}
			c.end = c.start + 1
		}
		if i > 0 && c.start < cues[i-1].end {
			prev := &cues[i-1]
			if c.start > prev.start {
				if err := adjust(i, fmt.Sprintf("end clipped from %s to %s to avoid overlapping cue %d",
					clock(prev.end, '.'), clock(c.start, '.'), i+1)); err != nil {
					return nil, nil, err
				}
				prev.end = c.start
			} else {
				if err := adjust(i+1, fmt.Sprintf("start delayed from %s to %s to avoid overlapping cue %d",
					clock(c.start, '.'), clock(prev.end, '.'), i)); err != nil {
					return nil, nil, err
				}
				c.start = prev.end
				if c.end <= c.start {
					c.end = c.start + 1
				}
			}
		}
		cues[i] = c
	}
	return cues, warnings, nil
}

// clock formats milliseconds as HH:MM:SS<sep>mmm.
func clock(ms int64, sep byte) string {
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms%1000)
}

func subtitleReport(f Format, n int, warnings []*errors.AppError) Report {
	return Report{Format: f, Records: n, Degraded: len(warnings) > 0, Warnings: warnings}
}

// SRT renders SubRip cues with the speaker as a text prefix.
type SRT struct {
	Policy SubtitlePolicy
}

func (SRT) Format() Format      { return FormatSRT }
func (SRT) ContentType() string { return "application/x-subrip" }

func (s SRT) Export(w io.Writer, turns []segment.SpeakerTurn) (Report, error) {
	cues, warnings, err := buildCues(FormatSRT, turns, s.Policy)
	if err != nil {
		return Report{}, err
	}
	bw := bufio.NewWriter(w)
	for i, c := range cues {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s: %s\n\n", i+1, clock(c.start, ','), clock(c.end, ','), c.speaker, c.text)
	}
	if err := bw.Flush(); err != nil {
		return Report{}, err
	}
	return subtitleReport(FormatSRT, len(cues), warnings), nil
}

var vttEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// VTT renders WebVTT cues with the speaker as a voice span.
type VTT struct {
	Policy SubtitlePolicy
}

func (VTT) Format() Format      { return FormatVTT }
func (VTT) ContentType() string { return "text/vtt; charset=utf-8" }

func (v VTT) Export(w io.Writer, turns []segment.SpeakerTurn) (Report, error) {
	cues, warnings, err := buildCues(FormatVTT, turns, v.Policy)
	if err != nil {
		return Report{}, err
	}
	bw := bufio.NewWriter(w)
	bw.WriteString("WEBVTT\n\n")
	for i, c := range cues {
		fmt.Fprintf(bw, "%d\n%s --> %s\n<v %s>%s\n\n", i+1, clock(c.start, '.'), clock(c.end, '.'),
			vttEscaper.Replace(c.speaker), vttEscaper.Replace(c.text))
	}
	if err := bw.Flush(); err != nil {
		return Report{}, err
	}
	return subtitleReport(FormatVTT, len(cues), warnings), nil
}
