package batch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/diarkit/engine"
	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/storage/local"
)

const defaultConcurrency = 4

// Config bounds a batch.
type Config struct {
	// Concurrency is the number of jobs run at once.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" json:"concurrency" validate:"gte=0"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("batch: concurrency must not be negative")
	}
	return nil
}

// Result is the outcome of one job. Err is nil on success.
type Result struct {
	Job      string        `json:"job"`
	RunID    string        `json:"run_id,omitempty"`
	Speakers []string      `json:"speakers,omitempty"`
	Turns    int           `json:"turns"`
	Rejected int           `json:"rejected"`
	Files    []string      `json:"files,omitempty"`
	Degraded bool          `json:"degraded"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Runner executes manifests against one engine.
type Runner struct {
	engine *engine.Engine
	cfg    Config
	log    *logger.Logger
}

// NewRunner creates a Runner.
func NewRunner(eng *engine.Engine, cfg Config, log *logger.Logger) *Runner {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Get("batch")
	}
	return &Runner{engine: eng, cfg: cfg, log: log}
}

// Run executes every job with bounded concurrency. Jobs share nothing, so
// a failed job does not stop the others; its error is reported in its
// Result. Results follow manifest order. Cancelling ctx stops jobs that
// have not started yet.
func (r *Runner) Run(ctx context.Context, m *Manifest) []Result {
	results := make([]Result, len(m.Jobs))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i := range m.Jobs {
		job := &m.Jobs[i]
		g.Go(func() error {
			results[i] = r.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.log.WithContext(ctx).Info("batch finished", logger.Fields(
		logger.FieldCount, len(results),
		"failed", failed,
	))
	return results
}

func (r *Runner) runJob(ctx context.Context, job *Job) (res Result) {
	res = Result{Job: job.Name}
	started := time.Now()
	defer func() { res.Duration = time.Since(started) }()

	if err := ctx.Err(); err != nil {
		res.Err = errors.Timeout("batch job").WithCause(err)
		return res
	}

	in, err := job.input()
	if err != nil {
		res.Err = err
		return res
	}
	out, err := r.engine.Run(ctx, in)
	if err != nil {
		res.Err = err
		r.log.WithContext(ctx).Warn("batch job failed", logger.Fields(
			"job", job.Name,
			logger.FieldError, err.Error(),
		))
		return res
	}
	res.RunID = out.RunID
	res.Speakers = out.Speakers
	res.Turns = len(out.Turns)
	res.Rejected = len(out.Rejected)

	artifacts, err := r.engine.Export(ctx, out, job.formats)
	if err != nil {
		res.Err = err
		return res
	}

	store, err := local.NewStorage(job.Output)
	if err != nil {
		res.Err = errors.InvalidInput("output", err.Error()).WithCause(err)
		return res
	}
	for _, a := range artifacts {
		if err := store.Upload(ctx, a.Filename, bytes.NewReader(a.Data)); err != nil {
			res.Err = err
			return res
		}
		res.Files = append(res.Files, filepath.Join(job.Output, a.Filename))
		if a.Report.Degraded {
			res.Degraded = true
		}
	}

	r.log.WithContext(logger.ContextWithRunID(ctx, out.RunID)).Info("batch job done", logger.Fields(
		"job", job.Name,
		logger.FieldCount, len(res.Files),
	))
	return res
}

func (j *Job) input() (engine.Input, error) {
	in := engine.Input{Source: j.Source, Mapping: j.mapping}
	if in.Source == "" {
		in.Source = j.Name
	}
	var err error
	if in.Diarization, err = readPayload(j.Diarization); err != nil {
		return engine.Input{}, err
	}
	if in.Transcript, err = readPayload(j.Transcript); err != nil {
		return engine.Input{}, err
	}
	return in, nil
}

func readPayload(s *Source) (*engine.Payload, error) {
	if s == nil {
		return nil, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, errors.NotFound("input file", s.Path).WithCause(err)
	}
	return &engine.Payload{Format: s.Format, Data: data}, nil
}
