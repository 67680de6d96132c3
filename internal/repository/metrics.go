package repository

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// batchInstruments records rows written/removed by the Base batch
// capability set, broken out by table and operation. A nil meter (the
// default until a caller opts in via Base.SetMeter) degrades every
// record call to a no-op, mirroring internal/batch's instruments.
type batchInstruments struct {
	rows   metric.Int64Counter
	failed metric.Int64Counter
}

func newBatchInstruments(meter metric.Meter) *batchInstruments {
	if meter == nil {
		return &batchInstruments{}
	}
	rows, _ := meter.Int64Counter("convanalytics.repository.batch_rows_total",
		metric.WithDescription("rows written or removed by a batch_insert/batch_upsert/batch_delete call"))
	failed, _ := meter.Int64Counter("convanalytics.repository.batch_failed_total",
		metric.WithDescription("rows that failed within a batch call, by table and operation"))
	return &batchInstruments{rows: rows, failed: failed}
}

func (m *batchInstruments) recordBatch(ctx context.Context, table, op string, succeeded, failed int) {
	attrs := metric.WithAttributes(attribute.String("table", table), attribute.String("op", op))
	if m.rows != nil && succeeded > 0 {
		m.rows.Add(ctx, int64(succeeded), attrs)
	}
	if m.failed != nil && failed > 0 {
		m.failed.Add(ctx, int64(failed), attrs)
	}
}
