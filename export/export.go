package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/segment"
)

// Format names an output representation. The value doubles as file extension.
type Format string

const (
	FormatText Format = "txt"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
)

// AllFormats lists every supported format in a stable order.
var AllFormats = []Format{FormatText, FormatCSV, FormatJSON, FormatSRT, FormatVTT}

// FormatNames returns the canonical names of AllFormats.
func FormatNames() []string {
	names := make([]string, len(AllFormats))
	for i, f := range AllFormats {
		names[i] = string(f)
	}
	return names
}

// ParseFormat accepts a format name or common alias, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "txt", "text":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "srt", "subrip":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	}
	return "", errors.UnsupportedFormat("export format", s)
}

// ParseFormats parses a list of names, dropping duplicates while keeping order.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	seen := make(map[Format]bool, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Report describes one rendering.
type Report struct {
	Format  Format `json:"format"`
	Records int    `json:"records"`
	// Degraded is set when the output differs from the turn timings, e.g.
	// subtitle cues clipped to avoid overlap. Warnings says where.
	Degraded bool               `json:"degraded"`
	Warnings []*errors.AppError `json:"warnings,omitempty"`
}

// Exporter renders turns in one format.
type Exporter interface {
	Format() Format
	ContentType() string
	Export(w io.Writer, turns []segment.SpeakerTurn) (Report, error)
}

// Options configure a Registry.
type Options struct {
	SubtitlePolicy SubtitlePolicy
}

// Registry holds one Exporter per format.
type Registry struct {
	exporters map[Format]Exporter
}

// NewRegistry returns a registry with every built-in exporter.
func NewRegistry(opts Options) *Registry {
	r := &Registry{exporters: make(map[Format]Exporter, len(AllFormats))}
	r.Register(Text{})
	r.Register(CSV{})
	r.Register(JSON{})
	r.Register(SRT{Policy: opts.SubtitlePolicy})
	r.Register(VTT{Policy: opts.SubtitlePolicy})
	return r
}

// Register adds or replaces the exporter for e.Format().
func (r *Registry) Register(e Exporter) {
	r.exporters[e.Format()] = e
}

// Get returns the exporter for f.
func (r *Registry) Get(f Format) (Exporter, error) {
	e, ok := r.exporters[f]
	if !ok {
		return nil, errors.UnsupportedFormat("export format", string(f))
	}
	return e, nil
}

// Formats returns the registered formats in sorted order.
func (r *Registry) Formats() []Format {
	out := make([]Format, 0, len(r.exporters))
	for f := range r.exporters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Artifact is one rendered file.
type Artifact struct {
	Format      Format `json:"format"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	Report      Report `json:"report"`
}

// Render renders turns in format f.
func (r *Registry) Render(f Format, turns []segment.SpeakerTurn) (Artifact, error) {
	e, err := r.Get(f)
	if err != nil {
		return Artifact{}, err
	}
	var buf bytes.Buffer
	report, err := e.Export(&buf, turns)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Format:      f,
		Filename:    fmt.Sprintf("transcript.%s", f),
		ContentType: e.ContentType(),
		Data:        buf.Bytes(),
		Report:      report,
	}, nil
}

// RenderAll renders turns in each requested format, in order. It stops at
// the first format that fails.
func (r *Registry) RenderAll(turns []segment.SpeakerTurn, formats []Format) ([]Artifact, error) {
	out := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		a, err := r.Render(f, turns)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// singleLine folds line breaks so a turn stays one line in line-oriented formats.
func singleLine(s string) string {
	return lineBreaks.Replace(s)
}
