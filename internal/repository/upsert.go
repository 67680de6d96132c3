package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/convanalytics/internal/dberr"
	"github.com/steveyegge/convanalytics/internal/dbutil"
)

// BatchUpsertOptions configures Base.BatchUpsert.
type BatchUpsertOptions struct {
	// UpdateColumns restricts which non-key columns are updated on
	// conflict. Empty means all non-key columns (spec §4.1 default).
	UpdateColumns []string
	BatchSize     int
	OnProgress    func(done, total int)
	// Now is injected for deterministic tests; nil uses time.Now.
	Now func() time.Time
}

func (o *BatchUpsertOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// BatchUpsert inserts or updates on conflict against keyCols, bumping
// updated_at to a single transaction-wide "now" (spec §4.1). Insert vs.
// update is disambiguated via ROW_COUNT(): MySQL's ON DUPLICATE KEY
// UPDATE reports 1 affected row for an insert and 2 for an update (when
// the row actually changed), which this method uses to split the two
// counters.
func (b *Base) BatchUpsert(ctx context.Context, table string, records []dbutil.Record, keyCols []string, opts BatchUpsertOptions) (BatchResult, error) {
	if len(records) == 0 {
		return BatchResult{}, nil
	}
	if !dbutil.ShapeConsistent(records) {
		return BatchResult{}, fmt.Errorf("repository: batch upsert %s: %w: records do not share one column set", table, dberr.ErrInvalidData)
	}

	cols := sortedColumns(records[0])
	updateCols := opts.UpdateColumns
	if len(updateCols) == 0 {
		updateCols = nonKeyColumns(cols, keyCols)
	}

	now := opts.now()
	upsertSQL := buildUpsertSQL(table, cols, updateCols)
	chunks := dbutil.Chunk(records, opts.BatchSize)

	var result BatchResult
	total := len(records)
	done := 0

	for _, chunk := range chunks {
		chunkFailed := 0

		txErr := b.WithTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, upsertSQL)
			if err != nil {
				return fmt.Errorf("repository: prepare upsert %s: %w", table, err)
			}
			defer func() { _ = stmt.Close() }()

			for _, rec := range chunk {
				rec = withUpdatedAt(rec, now)
				args := make([]any, 0, len(cols))
				for _, c := range cols {
					args = append(args, rec[c])
				}
				res, err := stmt.ExecContext(ctx, args...)
				if err != nil {
					chunkFailed++
					result.Errors = append(result.Errors, err)
					continue
				}
				affected, _ := res.RowsAffected()
				switch affected {
				case 1:
					result.Inserted++
				default: // 2 (or driver-dependent >1) means an existing row was updated
					result.Updated++
				}
			}
			return nil
		})
		if txErr != nil {
			result.Failed += len(chunk)
			result.Errors = append(result.Errors, txErr)
			continue
		}
		result.Failed += chunkFailed

		done += len(chunk)
		if opts.OnProgress != nil {
			opts.OnProgress(done, total)
		}
	}

	b.instr.recordBatch(ctx, table, "upsert", result.Inserted+result.Updated, result.Failed)
	return result, nil
}

func withUpdatedAt(rec dbutil.Record, now time.Time) dbutil.Record {
	if _, ok := rec["updated_at"]; !ok {
		return rec
	}
	out := make(dbutil.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	out["updated_at"] = now.UnixMilli()
	return out
}

func nonKeyColumns(cols, keyCols []string) []string {
	keySet := make(map[string]struct{}, len(keyCols))
	for _, k := range keyCols {
		keySet[k] = struct{}{}
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, isKey := keySet[c]; !isKey {
			out = append(out, c)
		}
	}
	return out
}

func buildUpsertSQL(table string, cols, updateCols []string) string {
	updates := make([]string, 0, len(updateCols))
	for _, c := range updateCols {
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		table, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(updates, ", "))
}

// BatchDeleteOptions configures Base.BatchDelete.
type BatchDeleteOptions struct {
	BatchSize int
	// DryRun counts matching rows without deleting them.
	DryRun bool
}

// Predicate is a parameterized WHERE-clause fragment (without the WHERE
// keyword), e.g. Predicate{Where: "analyzed_at < ?", Args: []any{cutoff}}.
type Predicate struct {
	Where string
	Args  []any
}

// BatchDelete deletes rows matching pred, chunked the same way as
// BatchInsert. Returns the number of rows affected (or, under DryRun, the
// number that would be).
func (b *Base) BatchDelete(ctx context.Context, table string, pred Predicate, opts BatchDeleteOptions) (int, error) {
	if pred.Where == "" {
		return 0, fmt.Errorf("repository: batch delete %s: %w: predicate is required", table, dberr.ErrInvalidData)
	}

	if opts.DryRun {
		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, pred.Where)
		err := b.db.QueryRowContext(ctx, query, pred.Args...).Scan(&count)
		if err != nil {
			return 0, dberr.Classify(fmt.Sprintf("batch delete dry run %s", table), err)
		}
		return count, nil
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	var total int
	for {
		var affected int64
		err := b.WithTx(ctx, func(tx *sql.Tx) error {
			query := fmt.Sprintf("DELETE FROM %s WHERE %s LIMIT ?", table, pred.Where)
			args := append(append([]any{}, pred.Args...), batchSize)
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			affected, err = res.RowsAffected()
			return err
		})
		if err != nil {
			return total, dberr.Classify(fmt.Sprintf("batch delete %s", table), err)
		}
		total += int(affected)
		if affected < int64(batchSize) {
			break
		}
	}
	b.instr.recordBatch(ctx, table, "delete", total, 0)
	return total, nil
}

// CleanupOldData deletes rows in table older than retention, measured on
// tsColumn (an epoch-millisecond column).
func (b *Base) CleanupOldData(ctx context.Context, table string, retention time.Duration, tsColumn string) (int, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()
	return b.BatchDelete(ctx, table, Predicate{
		Where: fmt.Sprintf("%s < ?", tsColumn),
		Args:  []any{cutoff},
	}, BatchDeleteOptions{})
}
