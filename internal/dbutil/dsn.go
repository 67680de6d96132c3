// Package dbutil holds small, dependency-light helpers shared by every
// repository: DSN construction, record chunking, and the pure numerical
// routines (percentile, trend) spec §4.1 calls out as pure helpers.
package dbutil

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
)

// DSNOptions configures the MySQL-wire-protocol connection string used to
// reach the relational store (a Dolt server or plain MySQL — both speak
// the same protocol, so one driver serves either, per SPEC_FULL.md §2.1).
type DSNOptions struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ParseTime       bool
}

// DefaultDSNOptions returns sane local defaults.
func DefaultDSNOptions(database string) DSNOptions {
	return DSNOptions{
		Host:            "127.0.0.1",
		Port:            3306,
		User:            "root",
		Database:        database,
		ConnMaxLifetime: 5 * time.Minute,
		ParseTime:       true,
	}
}

// DSN renders the connection string for database/sql.Open("mysql", ...).
func (o DSNOptions) DSN() string {
	parseTime := "false"
	if o.ParseTime {
		parseTime = "true"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=%s&multiStatements=true",
		o.User, o.Password, o.Host, o.Port, o.Database, parseTime)
}

// Open opens the relational store and verifies connectivity with a
// bounded retry (the store may still be starting up when this library is
// constructed inside a larger process).
func Open(ctx context.Context, opts DSNOptions) (*sql.DB, error) {
	db, err := sql.Open("mysql", opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("dbutil: open: %w", err)
	}
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	pingErr := backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, bo)
	if pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dbutil: ping: %w", pingErr)
	}
	return db, nil
}
