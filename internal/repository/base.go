// Package repository implements the Analytics Repository Base (spec
// §4.1) and the four concrete repositories (§4.2-§4.5) that persist and
// aggregate conversation analytics on a relational engine reachable via
// database/sql + github.com/go-sql-driver/mysql.
//
// Grounded on internal/storage/sqlite/decision_points.go's CRUD idiom
// (COALESCE-heavy scans, NULL-as-empty-FK handling) and
// internal/storage/sqlite/config.go's ON CONFLICT upsert, translated to
// the MySQL dialect this package's driver speaks.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/steveyegge/convanalytics/internal/logging"
)

// stmtKey identifies a cached prepared statement by the repository that
// owns it and a caller-chosen query key (spec §9: "cached by
// (repository, key)").
type stmtKey struct {
	repo string
	key  string
}

// Base embeds *sql.DB and gives every repository the shared batch
// capability set (spec §9 "deep/implicit polymorphism... implement as a
// small interface plus composition").
type Base struct {
	db   *sql.DB
	name string
	log  *zap.Logger

	mu    sync.RWMutex
	stmts map[stmtKey]*sql.Stmt

	instr *batchInstruments
}

// NewBase constructs a Base for the named repository ("conversation_analytics",
// "productivity_patterns", "knowledge_gaps", "decision_tracking").
func NewBase(db *sql.DB, name string, log *zap.Logger) *Base {
	return &Base{
		db:    db,
		name:  name,
		log:   logging.OrNop(log),
		stmts: make(map[stmtKey]*sql.Stmt),
		instr: newBatchInstruments(nil),
	}
}

// SetMeter wires an OpenTelemetry meter into the batch capability set's
// row/failure counters. Optional; a repository constructed via NewBase
// and never given a meter records nothing.
func (b *Base) SetMeter(meter metric.Meter) {
	b.instr = newBatchInstruments(meter)
}

// DB exposes the underlying connection pool for repositories that need
// custom queries beyond the shared capability set.
func (b *Base) DB() *sql.DB { return b.db }

// Prepare returns a cached *sql.Stmt for (repo, key), preparing it against
// the current connection on first use.
func (b *Base) Prepare(ctx context.Context, key, query string) (*sql.Stmt, error) {
	sk := stmtKey{repo: b.name, key: key}

	b.mu.RLock()
	stmt, ok := b.stmts[sk]
	b.mu.RUnlock()
	if ok {
		return stmt, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if stmt, ok := b.stmts[sk]; ok {
		return stmt, nil
	}
	stmt, err := b.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: prepare %s/%s: %w", b.name, key, err)
	}
	b.stmts[sk] = stmt
	return stmt, nil
}

// Reconnect closes every cached prepared statement. Call after the
// underlying *sql.DB reconnects so statements are never shared across
// connections (spec §9).
func (b *Base) Reconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, stmt := range b.stmts {
		_ = stmt.Close()
		delete(b.stmts, k)
	}
}

// WithTx runs fn inside a new transaction, committing on success and
// rolling back on error or panic. This is the one-transaction-per-chunk
// unit spec §5 describes as "the unit of atomicity and rollback".
func (b *Base) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			b.log.Warn("rollback failed", zap.Error(rbErr), zap.NamedError("cause", err))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: commit: %w", err)
	}
	return nil
}
