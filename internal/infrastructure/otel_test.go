package infrastructure

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestBusinessMetricsRecording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := CreateBusinessMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordForecast(ctx, "seasonal", false)
	metrics.RecordForecast(ctx, "linear_fallback", true)
	metrics.RecordLoad(ctx, 10, 2)
	metrics.RecordStage(ctx, "make_daily", 50*time.Millisecond, true)
	metrics.RecordPipelineRun(ctx, "run-1", time.Second, nil)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["retailcast_forecast_runs_total"])
	assert.Equal(t, int64(1), sums["retailcast_forecast_fallback_total"])
	assert.Equal(t, int64(10), sums["retailcast_rows_loaded_total"])
	assert.Equal(t, int64(2), sums["retailcast_rows_dropped_total"])
	assert.Equal(t, int64(1), sums["retailcast_stage_runs_total"])
	assert.Equal(t, int64(1), sums["retailcast_pipeline_runs_total"])
}

func TestNilBusinessMetricsIsSafe(t *testing.T) {
	var metrics *BusinessMetrics
	assert.NotPanics(t, func() {
		metrics.RecordForecast(context.Background(), "seasonal", false)
		metrics.RecordLoad(context.Background(), 1, 1)
		metrics.RecordStage(context.Background(), "forecast", time.Second, false)
		metrics.RecordPipelineRun(context.Background(), "x", time.Second, assert.AnError)
	})
}

func TestInitializeOTelDisabled(t *testing.T) {
	cfg := &OTelConfig{
		ServiceName:    "retailcast-test",
		ServiceVersion: ServiceVersion,
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "none",
	}

	providers, err := InitializeOTel(cfg, NewJSONLogger(io.Discard, "error"))
	require.NoError(t, err)
	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	assert.NotNil(t, metrics.ForecastRunsTotal)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTelUnsupportedExporter(t *testing.T) {
	cfg := &OTelConfig{
		ServiceName:    "retailcast-test",
		EnableTracing:  true,
		TraceExporter:  "zipkin",
		MetricExporter: "none",
	}

	_, err := InitializeOTel(cfg, NewJSONLogger(io.Discard, "error"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported trace exporter")
}
