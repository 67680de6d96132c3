package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/convanalytics/internal/dberr"
	"github.com/steveyegge/convanalytics/internal/dbutil"
)

// ConflictPolicy selects how batch_insert reacts to a uniqueness
// violation (spec §4.1).
type ConflictPolicy int

const (
	ConflictFail ConflictPolicy = iota
	ConflictIgnore
	ConflictReplace
)

// BatchInsertOptions configures Base.BatchInsert.
type BatchInsertOptions struct {
	BatchSize      int
	Conflict       ConflictPolicy
	OnProgress     func(done, total int)
	EnableRollback bool
	// RollbackThreshold is the within-chunk failure rate (0-1) above
	// which EnableRollback aborts the whole call. Spec default: 0.10.
	RollbackThreshold float64
}

// BatchResult is the structured outcome every batch call returns (spec
// §7: "{processed, failed, errors?}").
type BatchResult struct {
	Inserted int
	Updated  int
	Failed   int
	Errors   []error
}

func (o *BatchInsertOptions) threshold() float64 {
	if o.RollbackThreshold > 0 {
		return o.RollbackThreshold
	}
	return 0.10
}

// BatchInsert chunks records into one transaction per opts.BatchSize
// chunk. A row whose insert fails on its own is counted in Failed and
// skipped, and the rest of its chunk commits. A uniqueness violation under
// ConflictFail, a failure rate above the threshold when EnableRollback is
// set, or a transaction-level error rolls the whole chunk back and counts
// every row of it as failed. A batch of size 0 returns a zero result
// without opening a transaction.
func (b *Base) BatchInsert(ctx context.Context, table string, records []dbutil.Record, opts BatchInsertOptions) (BatchResult, error) {
	if len(records) == 0 {
		return BatchResult{}, nil
	}
	if !dbutil.ShapeConsistent(records) {
		return BatchResult{}, fmt.Errorf("repository: batch insert %s: %w: records do not share one column set", table, dberr.ErrInvalidData)
	}

	cols := sortedColumns(records[0])
	insertSQL := buildInsertSQL(table, cols, opts.Conflict)
	chunks := dbutil.Chunk(records, opts.BatchSize)

	var result BatchResult
	total := len(records)
	done := 0

	for _, chunk := range chunks {
		chunkFailed := 0
		var chunkErrs []error

		txErr := b.WithTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, insertSQL)
			if err != nil {
				return fmt.Errorf("repository: prepare insert %s: %w", table, err)
			}
			defer func() { _ = stmt.Close() }()

			for _, rec := range chunk {
				args := make([]any, len(cols))
				for i, c := range cols {
					args[i] = rec[c]
				}
				if _, err := stmt.ExecContext(ctx, args...); err != nil {
					classified := dberr.Classify(fmt.Sprintf("batch insert %s", table), err)
					if opts.Conflict == ConflictFail && dberr.IsAlreadyExists(classified) {
						return classified // whole chunk rolls back on a hard failure
					}
					chunkFailed++
					chunkErrs = append(chunkErrs, classified)
					continue
				}
			}

			if opts.EnableRollback && len(chunk) > 0 && float64(chunkFailed)/float64(len(chunk)) > opts.threshold() {
				return fmt.Errorf("repository: batch insert %s: %w: chunk failure rate %d/%d exceeds threshold",
					table, dberr.ErrDatabaseError, chunkFailed, len(chunk))
			}
			return nil
		})

		if txErr != nil {
			result.Failed += len(chunk)
			result.Errors = append(result.Errors, txErr)
			if opts.EnableRollback {
				return result, txErr
			}
			continue
		}

		result.Inserted += len(chunk) - chunkFailed
		result.Failed += chunkFailed
		result.Errors = append(result.Errors, chunkErrs...)

		done += len(chunk)
		if opts.OnProgress != nil {
			opts.OnProgress(done, total)
		}
	}

	b.instr.recordBatch(ctx, table, "insert", result.Inserted, result.Failed)
	return result, nil
}

func sortedColumns(r dbutil.Record) []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// placeholders returns "?, ?, ..." for n columns.
func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

// buildInsertSQL renders the INSERT statement for the given conflict
// policy, MySQL dialect. Ignore uses INSERT IGNORE (silently skips
// existing rows); Replace uses ON DUPLICATE KEY UPDATE (overwrites); Fail
// is a plain INSERT whose constraint violation surfaces to the caller.
func buildInsertSQL(table string, cols []string, conflict ConflictPolicy) string {
	ignore := ""
	if conflict == ConflictIgnore {
		ignore = "IGNORE "
	}
	base := fmt.Sprintf("INSERT %sINTO %s (%s) VALUES (%s)", ignore, table, strings.Join(cols, ", "), placeholders(len(cols)))
	if conflict == ConflictReplace {
		updates := make([]string, 0, len(cols))
		for _, c := range cols {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		base += " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
	}
	return base
}
