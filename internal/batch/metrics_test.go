package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// testResource identifies this service the way a host application would
// when wiring a real MeterProvider (exercises go.opentelemetry.io/otel/sdk,
// the sibling module to sdk/metric that owns resource description).
func testResource(t *testing.T) *resource.Resource {
	t.Helper()
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", "convanalytics"),
	))
	require.NoError(t, err)
	return res
}

func TestInstrumentsRecordOutcomeEmitsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(testResource(t)))
	defer provider.Shutdown(context.Background())

	instr := newInstruments(provider.Meter("convanalytics.batch"))
	instr.recordOutcome(context.Background(), 7, 2)
	instr.recordThroughput(context.Background(), 3.5)
	instr.recordMemory(context.Background(), 128.0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
	}
	assert.True(t, names["convanalytics.batch.processed_total"])
	assert.True(t, names["convanalytics.batch.failed_total"])
	assert.True(t, names["convanalytics.batch.throughput_per_second"])
	assert.True(t, names["convanalytics.batch.memory_usage_mb"])
}

func TestInstrumentsRecordOutcomeSkipsZeroCounts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	instr := newInstruments(provider.Meter("convanalytics.batch"))
	instr.recordOutcome(context.Background(), 0, 0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "convanalytics.batch.processed_total" {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				assert.Empty(t, sum.DataPoints, "no data point should be recorded for a zero count")
			}
		}
	}
}

func TestNewInstrumentsNilMeterIsNoOp(t *testing.T) {
	instr := newInstruments(nil)
	instr.recordOutcome(context.Background(), 5, 5)
	instr.recordThroughput(context.Background(), 1.0)
	instr.recordMemory(context.Background(), 1.0)
}
