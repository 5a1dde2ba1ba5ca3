package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/diarkit/logger"
)

// InitMeter installs a periodic OTLP meter provider as the global provider.
func InitMeter(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Init sets up tracing and metrics. With telemetry disabled it returns a
// no-op shutdown and leaves the global providers untouched.
func Init(ctx context.Context, cfg Config, service, version, environment string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	res, err := newResource(service, version, environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}
	tp, err := InitTracer(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	mp, err := InitMeter(ctx, cfg, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return func(ctx context.Context) error {
		terr := tp.Shutdown(ctx)
		merr := mp.Shutdown(ctx)
		if terr != nil {
			return terr
		}
		return merr
	}, nil
}

// Meter returns the diarkit meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// PipelineMetrics holds the instruments recorded by engine runs and the
// HTTP surface.
type PipelineMetrics struct {
	runTotal        metric.Int64Counter
	runDuration     metric.Float64Histogram
	stageDuration   metric.Float64Histogram
	rejectedTotal   metric.Int64Counter
	droppedTotal    metric.Int64Counter
	overlapTotal    metric.Int64Counter
	exportTotal     metric.Int64Counter
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewPipelineMetrics creates the instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	var err error

	if m.runTotal, err = meter.Int64Counter("diarkit.run.total",
		metric.WithDescription("Engine runs by outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating diarkit.run.total counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram("diarkit.run.duration",
		metric.WithDescription("Duration of engine runs"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating diarkit.run.duration histogram: %w", err)
	}
	if m.stageDuration, err = meter.Float64Histogram("diarkit.stage.duration",
		metric.WithDescription("Duration of pipeline stages"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating diarkit.stage.duration histogram: %w", err)
	}
	if m.rejectedTotal, err = meter.Int64Counter("diarkit.rejected.total",
		metric.WithDescription("Input records rejected during normalization"),
	); err != nil {
		return nil, fmt.Errorf("creating diarkit.rejected.total counter: %w", err)
	}
	if m.droppedTotal, err = meter.Int64Counter("diarkit.dropped.total",
		metric.WithDescription("Diarization turns dropped or merged during smoothing"),
	); err != nil {
		return nil, fmt.Errorf("creating diarkit.dropped.total counter: %w", err)
	}
	if m.overlapTotal, err = meter.Int64Counter("diarkit.overlap.total",
		metric.WithDescription("Units flagged as overlapping speech"),
	); err != nil {
		return nil, fmt.Errorf("creating diarkit.overlap.total counter: %w", err)
	}
	if m.exportTotal, err = meter.Int64Counter("diarkit.export.total",
		metric.WithDescription("Rendered artifacts by format and degradation"),
	); err != nil {
		return nil, fmt.Errorf("creating diarkit.export.total counter: %w", err)
	}
	if m.requestTotal, err = meter.Int64Counter("diarkit.http.request.total",
		metric.WithDescription("HTTP requests by route and status"),
	); err != nil {
		return nil, fmt.Errorf("creating diarkit.http.request.total counter: %w", err)
	}
	if m.requestDuration, err = meter.Float64Histogram("diarkit.http.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating diarkit.http.request.duration histogram: %w", err)
	}
	return m, nil
}

// RecordRun records a finished engine run.
func (m *PipelineMetrics) RecordRun(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.runDuration.Record(ctx, d.Seconds())
}

// RecordStage records the duration of one stage.
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordRejected counts rejected input records by kind.
func (m *PipelineMetrics) RecordRejected(ctx context.Context, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rejectedTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDropped counts turns removed by normalization.
func (m *PipelineMetrics) RecordDropped(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.droppedTotal.Add(ctx, int64(n))
}

// RecordOverlaps counts units carrying the overlap flag.
func (m *PipelineMetrics) RecordOverlaps(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.overlapTotal.Add(ctx, int64(n))
}

// RecordExport counts one rendered artifact.
func (m *PipelineMetrics) RecordExport(ctx context.Context, format string, degraded bool) {
	if m == nil {
		return
	}
	m.exportTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("format", format),
		attribute.Bool("degraded", degraded),
	))
}

// RecordRequest records a served HTTP request.
func (m *PipelineMetrics) RecordRequest(ctx context.Context, route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.Int("status", status),
	)
	m.requestTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, d.Seconds(), attrs)
}
