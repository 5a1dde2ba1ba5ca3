package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/export"
	"github.com/kbukum/diarkit/speakers"
)

// Source is one backend output file and the adapter that reads it.
type Source struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// Job is one independent alignment run.
type Job struct {
	Name        string         `yaml:"name"`
	Source      string         `yaml:"source"`
	Diarization *Source        `yaml:"diarization"`
	Transcript  *Source        `yaml:"transcript"`
	Mapping     map[string]any `yaml:"mapping"`
	Formats     []string       `yaml:"formats"`
	// Output is the directory the job's artifacts are written to. It
	// defaults to <manifest dir>/out/<name>.
	Output string `yaml:"output"`

	mapping speakers.Mapping
	formats []export.Format
}

// Manifest lists the jobs of a batch.
type Manifest struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadManifest reads and checks the manifest at path. Relative paths inside
// it resolve against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.InvalidInput("manifest", err.Error()).WithCause(err)
	}
	return ParseManifest(data, filepath.Dir(path))
}

// ParseManifest decodes a YAML manifest and resolves its paths against baseDir.
func ParseManifest(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.InvalidInput("manifest", err.Error()).WithCause(err)
	}
	if len(m.Jobs) == 0 {
		return nil, errors.InvalidInput("jobs", "manifest has no jobs")
	}

	seen := make(map[string]bool, len(m.Jobs))
	for i := range m.Jobs {
		j := &m.Jobs[i]
		j.Name = strings.TrimSpace(j.Name)
		if j.Name == "" {
			j.Name = fmt.Sprintf("job-%d", i+1)
		}
		if seen[j.Name] {
			return nil, errors.InvalidInput("jobs", fmt.Sprintf("duplicate job name %q", j.Name))
		}
		seen[j.Name] = true

		if err := j.prepare(baseDir); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func (j *Job) prepare(baseDir string) error {
	if j.Diarization == nil && j.Transcript == nil {
		return errors.InvalidInput(j.Name, "a diarization or transcript file is required")
	}
	for _, s := range []*Source{j.Diarization, j.Transcript} {
		if s == nil {
			continue
		}
		if s.Path == "" || s.Format == "" {
			return errors.InvalidInput(j.Name, "sources need a path and a format")
		}
		s.Path = resolve(baseDir, s.Path)
	}

	m, err := speakers.Parse(j.Mapping)
	if err != nil {
		return err
	}
	j.mapping = m

	if j.formats, err = export.ParseFormats(j.Formats); err != nil {
		return err
	}

	if j.Output == "" {
		j.Output = filepath.Join("out", j.Name)
	}
	j.Output = resolve(baseDir, j.Output)
	return nil
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
