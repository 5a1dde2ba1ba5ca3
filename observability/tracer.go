package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/diarkit/logger"
)

const instrumentationName = "github.com/kbukum/diarkit"

// Pipeline stage span names.
const (
	SpanRun        = "diarkit.run"
	StageDecode    = "diarkit.decode"
	StageNormalize = "diarkit.normalize"
	StageAlign     = "diarkit.align"
	StageAggregate = "diarkit.aggregate"
	StageMap       = "diarkit.map"
	StageExport    = "diarkit.export"
	SpanSidecar    = "diarkit.sidecar"
)

// Attribute keys.
const (
	AttrRunID     = "diarkit.run_id"
	AttrTurns     = "diarkit.turns"
	AttrUnits     = "diarkit.units"
	AttrRejected  = "diarkit.rejected"
	AttrSpeakers  = "diarkit.speakers"
	AttrOverlaps  = "diarkit.overlap_units"
	AttrFormat    = "diarkit.format"
	AttrDegraded  = "diarkit.degraded"
	AttrBackend   = "diarkit.backend"
	AttrErrorCode = "error.code"
)

// ShutdownFunc flushes and stops the providers created by Init.
type ShutdownFunc func(context.Context) error

// InitTracer installs a batching OTLP tracer provider as the global provider.
func InitTracer(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracer initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"sample_rate", cfg.SampleRate,
	))
	return tp, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// newResource describes the running service. The schemaless form keeps the
// resource mergeable with resource.Default regardless of its schema version.
func newResource(service, version, environment string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", service),
			attribute.String("service.version", version),
			attribute.String("deployment.environment", environment),
		),
	)
}

// Tracer returns the diarkit tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartStage starts a child span for one pipeline stage.
func StartStage(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
