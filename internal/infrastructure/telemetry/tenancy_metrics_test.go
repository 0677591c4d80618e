package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestTenancyMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewTenancyMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordResolution(ctx, "domain", OutcomeResolved, false)
	m.RecordResolution(ctx, "domain", OutcomeResolved, true)
	m.RecordResolution(ctx, "header", OutcomeNotFound, false)
	m.RecordViolation(ctx, "orders")
	m.RecordPipeFailure(ctx, "mail")
	m.RecordPipeFailure(ctx, "mail")
	m.RecordPipeline(ctx, 3*time.Millisecond, "abc")

	data := collect(t, reader)
	assert.Equal(t, int64(3), sumOf(t, data["tenancy_resolution_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["tenancy_cross_tenant_violation_total"]))
	assert.Equal(t, int64(2), sumOf(t, data["tenancy_pipe_failure_total"]))

	hist, ok := data["tenancy_pipeline_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	resolution := data["tenancy_resolution_total"].(metricdata.Sum[int64])
	assert.Len(t, resolution.DataPoints, 3)
}

func TestNopTenancyMetrics(t *testing.T) {
	m := NopTenancyMetrics()
	require.NotNil(t, m)
	assert.NotPanics(t, func() {
		m.RecordResolution(context.Background(), "domain", OutcomeNone, false)
		m.RecordViolation(context.Background(), "x")
	})
}
