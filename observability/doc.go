// Package observability wires OpenTelemetry tracing and metrics into diarkit.
//
// Every engine run is one span with a child span per stage (normalize, align,
// aggregate, map, export). PipelineMetrics counts runs, rejected records,
// overlap units and degraded exports.
//
//	shutdown, err := observability.Init(ctx, cfg.Telemetry, "diarkit", version.Get().Version)
//	defer shutdown(ctx)
//
//	ctx, span := observability.StartStage(ctx, observability.StageAlign)
//	defer span.End()
//
// When telemetry is disabled the global no-op providers stay in place, so
// instrumented code needs no nil checks.
package observability
