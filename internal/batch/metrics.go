package batch

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// instruments bundles the OpenTelemetry gauges a Processor run reports.
// A nil meter (the default, when the caller does not wire a MeterProvider)
// degrades every record* call to a no-op.
type instruments struct {
	throughput metric.Float64Gauge
	memory     metric.Float64Gauge
	processed  metric.Int64Counter
	failed     metric.Int64Counter
}

func newInstruments(meter metric.Meter) *instruments {
	if meter == nil {
		return &instruments{}
	}
	throughput, _ := meter.Float64Gauge("convanalytics.batch.throughput_per_second",
		metric.WithDescription("conversations processed per second, sampled per chunk"))
	memoryGauge, _ := meter.Float64Gauge("convanalytics.batch.memory_usage_mb",
		metric.WithDescription("resident memory observed by the batch processor's sampler"))
	processed, _ := meter.Int64Counter("convanalytics.batch.processed_total",
		metric.WithDescription("conversations successfully analyzed by the batch processor"))
	failed, _ := meter.Int64Counter("convanalytics.batch.failed_total",
		metric.WithDescription("conversations that failed analysis in the batch processor"))
	return &instruments{throughput: throughput, memory: memoryGauge, processed: processed, failed: failed}
}

func (m *instruments) recordThroughput(ctx context.Context, perSecond float64) {
	if m.throughput != nil {
		m.throughput.Record(ctx, perSecond)
	}
}

func (m *instruments) recordMemory(ctx context.Context, mb float64) {
	if m.memory != nil {
		m.memory.Record(ctx, mb)
	}
}

func (m *instruments) recordOutcome(ctx context.Context, processed, failed int) {
	if m.processed != nil && processed > 0 {
		m.processed.Add(ctx, int64(processed))
	}
	if m.failed != nil && failed > 0 {
		m.failed.Add(ctx, int64(failed))
	}
}
