package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wolfeidau/assetpipe/internal/pipeline"
)

func TestRecordResult(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m := newMetrics(mp.Meter("test"))
	m.RecordResult(ctx, pipeline.Result{Name: "styles", Outputs: []string{"a.css", "a.css.map"}, Duration: time.Second})
	m.RecordResult(ctx, pipeline.Result{Name: "scripts", Err: errors.New("boom")})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				sums[md.Name] += dp.Value
			}
		}
	}
	require.Equal(t, int64(2), sums["assetpipe.builds.total"])
	require.Equal(t, int64(1), sums["assetpipe.builds.errors.total"])
	require.Equal(t, int64(2), sums["assetpipe.outputs.total"])
}

func TestTraceRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)

	res := Trace(context.Background(), "styles", func(ctx context.Context) pipeline.Result {
		return pipeline.Result{Name: "styles", Err: errors.New("compile failed")}
	})
	require.Error(t, res.Err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "styles", spans[0].Name())
	require.Equal(t, codes.Error, spans[0].Status().Code)
}
