package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestBaseSetMeterRecordsBatchRows(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	b := NewBase(nil, "test", nil)
	b.SetMeter(provider.Meter("convanalytics.repository"))
	b.instr.recordBatch(context.Background(), "knowledge_gaps", "insert", 4, 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
	}
	assert.True(t, names["convanalytics.repository.batch_rows_total"])
	assert.True(t, names["convanalytics.repository.batch_failed_total"])
}

func TestBaseWithoutSetMeterRecordBatchIsNoop(t *testing.T) {
	b := NewBase(nil, "test", nil)
	b.instr.recordBatch(context.Background(), "knowledge_gaps", "insert", 4, 1)
}
