package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/diarkit/aggregate"
	"github.com/kbukum/diarkit/align"
	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/export"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/normalize"
	"github.com/kbukum/diarkit/observability"
	"github.com/kbukum/diarkit/segment"
	"github.com/kbukum/diarkit/speakers"
)

// Payload is one backend output still in its native encoding.
type Payload struct {
	// Format names the normalize adapter that decodes Data.
	Format string `json:"format"`
	Data   []byte `json:"-"`
}

// Input is the material of one run. Raw, when set, is used as-is and the
// payloads are ignored. Otherwise each non-nil payload is decoded and the
// results are combined, so a single payload carrying both turns and units
// (canonical, whisperx) is enough.
type Input struct {
	Source      string
	Raw         *normalize.Raw
	Diarization *Payload
	Transcript  *Payload
	Mapping     speakers.Mapping
}

// Stats counts what happened during a run.
type Stats struct {
	DiarizationTurns int `json:"diarization_turns"`
	Units            int `json:"units"`
	Rejected         int `json:"rejected"`
	DroppedTurns     int `json:"dropped_turns"`
	MergedTurns      int `json:"merged_turns"`
	OverlapUnits     int `json:"overlap_units"`
	UnknownUnits     int `json:"unknown_units"`
	SpeakerTurns     int `json:"speaker_turns"`
}

// Result is the outcome of a run.
type Result struct {
	RunID  string `json:"run_id"`
	Source string `json:"source,omitempty"`
	// Speakers lists distinct raw ids in first-appearance order, followed by
	// Unknown when some units could not be attributed.
	Speakers []string                 `json:"speakers"`
	Mapping  speakers.Mapping         `json:"mapping,omitempty"`
	Turns    []segment.SpeakerTurn    `json:"turns"`
	Units    []segment.AttributedUnit `json:"units,omitempty"`
	Rejected []*errors.AppError       `json:"rejected,omitempty"`
	Stats    Stats                    `json:"stats"`
}

// Engine wires the pipeline stages with their configuration.
type Engine struct {
	cfg        Config
	normalizer *normalize.Normalizer
	adapters   *normalize.Registry
	exporters  *export.Registry
	formats    []export.Format
	log        *logger.Logger
	metrics    *observability.PipelineMetrics
	newID      func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithAdapters replaces the default adapter registry.
func WithAdapters(r *normalize.Registry) Option {
	return func(e *Engine) { e.adapters = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics enables metric recording.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New validates cfg and builds an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, _ := export.ParsePolicy(cfg.SubtitlePolicy)
	formats, _ := export.ParseFormats(cfg.Formats)

	e := &Engine{
		cfg:       cfg,
		adapters:  normalize.DefaultRegistry(),
		exporters: export.NewRegistry(export.Options{SubtitlePolicy: policy}),
		formats:   formats,
		log:       logger.Get("engine"),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.normalizer = normalize.New(cfg.Normalize(), e.log.WithComponent("normalize"))
	return e, nil
}

// With returns an Engine running cfg that shares e's adapters, logger,
// metrics and id generator. e is not modified.
func (e *Engine) With(cfg Config) (*Engine, error) {
	return New(cfg,
		WithAdapters(e.adapters),
		WithLogger(e.log),
		WithMetrics(e.metrics),
		WithIDGenerator(e.newID),
	)
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Adapters returns the input adapter registry.
func (e *Engine) Adapters() *normalize.Registry { return e.adapters }

// Formats returns the default export formats.
func (e *Engine) Formats() []export.Format { return e.formats }

// Run executes decode, normalize, align, aggregate and map.
//
// Malformed records do not fail the run; they are listed in Result.Rejected.
// A run fails on an unknown input format, an undecodable payload, or when
// no usable record survives (EMPTY_INPUT).
func (e *Engine) Run(ctx context.Context, in Input) (res *Result, err error) {
	runID := e.newID()
	ctx = logger.ContextWithRunID(ctx, runID)
	log := e.log.WithContext(ctx)
	started := time.Now()

	ctx, span := observability.StartStage(ctx, observability.SpanRun,
		attribute.String(observability.AttrRunID, runID))
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			if appErr, ok := errors.AsAppError(err); ok {
				span.SetAttributes(attribute.String(observability.AttrErrorCode, string(appErr.Code)))
			}
		}
		observability.EndSpan(span, err)
		e.metrics.RecordRun(ctx, status, time.Since(started))
	}()

	raw, err := e.decode(ctx, in)
	if err != nil {
		log.Warn("decode failed", logger.ErrorFields("decode", err))
		return nil, err
	}

	var norm normalize.Result
	err = e.stage(ctx, observability.StageNormalize, func(span trace.Span) error {
		var nerr error
		norm, nerr = e.normalizer.Normalize(raw)
		span.SetAttributes(
			attribute.Int(observability.AttrTurns, len(norm.Turns)),
			attribute.Int(observability.AttrUnits, len(norm.Units)),
			attribute.Int(observability.AttrRejected, len(norm.Rejected)),
		)
		return nerr
	})
	e.metrics.RecordRejected(ctx, "record", len(norm.Rejected))
	e.metrics.RecordDropped(ctx, norm.Dropped+norm.Merged)
	if err != nil {
		log.Warn("no usable input", logger.Fields(logger.FieldCount, len(norm.Rejected)))
		return nil, err
	}

	var units []segment.AttributedUnit
	_ = e.stage(ctx, observability.StageAlign, func(span trace.Span) error {
		units = align.Assign(norm.Turns, norm.Units)
		return nil
	})

	var turns []segment.SpeakerTurn
	_ = e.stage(ctx, observability.StageAggregate, func(span trace.Span) error {
		turns = aggregate.Aggregate(units, e.cfg.Aggregate())
		return nil
	})

	res = &Result{
		RunID:    runID,
		Source:   in.Source,
		Speakers: speakerList(norm.Turns, turns),
		Turns:    turns,
		Units:    units,
		Rejected: norm.Rejected,
		Stats: Stats{
			DiarizationTurns: len(norm.Turns),
			Units:            len(units),
			Rejected:         len(norm.Rejected),
			DroppedTurns:     norm.Dropped,
			MergedTurns:      norm.Merged,
			SpeakerTurns:     len(turns),
		},
	}
	for _, u := range units {
		if u.Overlap {
			res.Stats.OverlapUnits++
		}
		if u.SpeakerID == segment.Unknown {
			res.Stats.UnknownUnits++
		}
	}
	e.metrics.RecordOverlaps(ctx, res.Stats.OverlapUnits)

	if len(in.Mapping) > 0 {
		e.Remap(ctx, res, in.Mapping)
	}

	span.SetAttributes(
		attribute.Int(observability.AttrSpeakers, len(res.Speakers)),
		attribute.Int(observability.AttrOverlaps, res.Stats.OverlapUnits),
	)
	log.Info("run completed", logger.Fields(
		"speakers", len(res.Speakers),
		"speaker_turns", len(turns),
		"units", len(units),
		"rejected", len(norm.Rejected),
		logger.FieldDuration, time.Since(started).Milliseconds(),
	))
	return res, nil
}

// Remap applies m to res in place and records it as the run's mapping.
// Repeating the call with the same or another mapping never compounds
// because names always resolve from the raw ids.
func (e *Engine) Remap(ctx context.Context, res *Result, m speakers.Mapping) {
	_ = e.stage(ctx, observability.StageMap, func(trace.Span) error {
		res.Turns = speakers.Apply(res.Turns, m)
		res.Mapping = speakers.Complete(res.Speakers, m)
		return nil
	})
}

// Export renders res in formats, or in the configured default formats when
// formats is empty. Every artifact comes from the same turn slice.
func (e *Engine) Export(ctx context.Context, res *Result, formats []export.Format) ([]export.Artifact, error) {
	if len(formats) == 0 {
		formats = e.formats
	}
	log := e.log.WithContext(logger.ContextWithRunID(ctx, res.RunID))

	out := make([]export.Artifact, 0, len(formats))
	for _, f := range formats {
		var a export.Artifact
		err := e.stage(ctx, observability.StageExport, func(span trace.Span) error {
			span.SetAttributes(attribute.String(observability.AttrFormat, string(f)))
			var rerr error
			a, rerr = e.exporters.Render(f, res.Turns)
			if rerr == nil {
				span.SetAttributes(attribute.Bool(observability.AttrDegraded, a.Report.Degraded))
			}
			return rerr
		})
		if err != nil {
			log.Warn("export failed", logger.Fields(logger.FieldFormat, string(f), logger.FieldError, err.Error()))
			return nil, err
		}
		e.metrics.RecordExport(ctx, string(f), a.Report.Degraded)
		if a.Report.Degraded {
			log.Warn("export degraded", logger.Fields(
				logger.FieldFormat, string(f),
				logger.FieldCount, len(a.Report.Warnings),
			))
		}
		out = append(out, a)
	}
	return out, nil
}

// Speakers decodes and normalizes in, returning only the distinct raw
// speaker ids. It backs name-input forms shown before a full run.
func (e *Engine) Speakers(ctx context.Context, in Input) ([]string, error) {
	raw, err := e.decode(ctx, in)
	if err != nil {
		return nil, err
	}
	norm, err := e.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return segment.DistinctSpeakers(norm.Turns), nil
}

func (e *Engine) decode(ctx context.Context, in Input) (normalize.Raw, error) {
	if in.Raw != nil {
		return *in.Raw, nil
	}
	if in.Diarization == nil && in.Transcript == nil {
		return normalize.Raw{}, errors.EmptyInput()
	}
	var diar, asr normalize.Raw
	if in.Diarization != nil {
		var err error
		if diar, err = e.decodePayload(ctx, in.Diarization); err != nil {
			return normalize.Raw{}, err
		}
		if in.Transcript == nil {
			return diar, nil
		}
	}
	asr, err := e.decodePayload(ctx, in.Transcript)
	if err != nil || in.Diarization == nil {
		return asr, err
	}

	// Turns come from the diarization side and units from the transcript
	// side; either falls back to the other payload when its own side is empty.
	raw := normalize.Combine(diar, asr)
	if len(raw.Turns) == 0 {
		raw.Turns = asr.Turns
	}
	if len(raw.Units) == 0 {
		raw.Units = diar.Units
	}
	return raw, nil
}

func (e *Engine) decodePayload(ctx context.Context, p *Payload) (normalize.Raw, error) {
	var raw normalize.Raw
	err := e.stage(ctx, observability.StageDecode, func(span trace.Span) error {
		span.SetAttributes(attribute.String(observability.AttrBackend, p.Format))
		var derr error
		raw, derr = e.adapters.Decode(p.Format, p.Data)
		return derr
	})
	return raw, err
}

// stage runs fn inside a child span and records its duration.
func (e *Engine) stage(ctx context.Context, name string, fn func(trace.Span) error) error {
	started := time.Now()
	_, span := observability.StartStage(ctx, name)
	err := fn(span)
	observability.EndSpan(span, err)
	e.metrics.RecordStage(ctx, name, time.Since(started))
	return err
}

func speakerList(diar []segment.DiarizationTurn, turns []segment.SpeakerTurn) []string {
	ids := segment.DistinctSpeakers(diar)
	for _, t := range turns {
		if t.SpeakerID == segment.Unknown {
			return append(ids, segment.Unknown)
		}
	}
	return ids
}
