package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfeidau/assetpipe/internal/pipeline"
)

const instrumentationName = "github.com/wolfeidau/assetpipe"

// Metrics holds the build metric instruments.
type Metrics struct {
	BuildsTotal       metric.Int64Counter
	BuildErrorsTotal  metric.Int64Counter
	BuildDuration     metric.Float64Histogram
	OutputsTotal      metric.Int64Counter
	WatchRebuildTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the Metrics singleton, creating the instruments on first
// use from the global meter provider.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = newMetrics(otel.GetMeterProvider().Meter(instrumentationName))
	})
	return metrics
}

func newMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"assetpipe.builds.total",
		metric.WithDescription("Total number of pipeline runs"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"assetpipe.builds.errors.total",
		metric.WithDescription("Total number of failed pipeline runs"),
		metric.WithUnit("{error}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"assetpipe.builds.duration",
		metric.WithDescription("Duration of pipeline runs"),
		metric.WithUnit("ms"),
	)

	m.OutputsTotal, _ = meter.Int64Counter(
		"assetpipe.outputs.total",
		metric.WithDescription("Total number of files written"),
		metric.WithUnit("{file}"),
	)

	m.WatchRebuildTotal, _ = meter.Int64Counter(
		"assetpipe.watch.rebuilds.total",
		metric.WithDescription("Total number of rebuilds triggered by file changes"),
		metric.WithUnit("{build}"),
	)

	return m
}

// RecordResult records a finished pipeline run.
func (m *Metrics) RecordResult(ctx context.Context, res pipeline.Result) {
	attrs := metric.WithAttributes(attribute.String("pipeline", res.Name))

	m.BuildsTotal.Add(ctx, 1, attrs)
	m.BuildDuration.Record(ctx, float64(res.Duration.Milliseconds()), attrs)
	m.OutputsTotal.Add(ctx, int64(len(res.Outputs)), attrs)
	if !res.OK() {
		m.BuildErrorsTotal.Add(ctx, 1, attrs)
	}
}

// Tracer returns the tracer used for pipeline spans.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Trace runs fn inside a span named after the pipeline and records its result.
func Trace(ctx context.Context, name string, fn func(ctx context.Context) pipeline.Result) pipeline.Result {
	ctx, span := Tracer().Start(ctx, name)
	defer span.End()

	res := fn(ctx)

	span.SetAttributes(
		attribute.String("pipeline", res.Name),
		attribute.Int("outputs", len(res.Outputs)),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}

	GetMetrics().RecordResult(ctx, res)
	return res
}
