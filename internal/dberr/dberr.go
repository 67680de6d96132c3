// Package dberr defines the sentinel error taxonomy used across the
// repository layer (spec §7), grounded on the teacher's
// internal/storage/sqlite/errors.go wrapping idiom but extended to
// classify MySQL-dialect constraint failures instead of SQLite ones.
package dberr

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound indicates the requested conversation/decision/gap is
	// absent.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a uniqueness violation, surfaced only
	// when the caller requested conflict=Fail.
	ErrAlreadyExists = errors.New("already exists")

	// ErrReferenceMissing indicates a foreign-key violation.
	ErrReferenceMissing = errors.New("reference missing")

	// ErrInvalidData indicates a check-constraint or validation failure.
	ErrInvalidData = errors.New("invalid data")

	// ErrDatabaseError wraps any other store failure.
	ErrDatabaseError = errors.New("database error")

	// ErrCancelled indicates processing stopped because
	// max_processing_time_ms elapsed.
	ErrCancelled = errors.New("cancelled")

	// ErrPartialFailure indicates a batch completed with some failed
	// items.
	ErrPartialFailure = errors.New("partial failure")
)

// MySQL error numbers this package classifies. See the MySQL manual,
// "Server Error Message Reference".
const (
	mysqlErrDupEntry       = 1062
	mysqlErrNoReferencedRow = 1452
	mysqlErrNoReferencedRow2 = 1216
	mysqlErrCheckConstraint = 3819
)

// Classify wraps a raw driver/sql error into one of this package's
// sentinels. sql.ErrNoRows and the classified constraint failures come
// back as the op label plus a sentinel only. Any other error is wrapped
// with ErrDatabaseError and keeps the driver error in its chain, so the
// driver's own message is part of the returned error's text. A nil input
// returns nil.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDupEntry:
			return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		case mysqlErrNoReferencedRow, mysqlErrNoReferencedRow2:
			return fmt.Errorf("%s: %w", op, ErrReferenceMissing)
		case mysqlErrCheckConstraint:
			return fmt.Errorf("%s: %w", op, ErrInvalidData)
		}
	}

	return fmt.Errorf("%s: %w: %w", op, ErrDatabaseError, err)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAlreadyExists reports whether err is or wraps ErrAlreadyExists.
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsReferenceMissing reports whether err is or wraps ErrReferenceMissing.
func IsReferenceMissing(err error) bool { return errors.Is(err, ErrReferenceMissing) }

// IsInvalidData reports whether err is or wraps ErrInvalidData.
func IsInvalidData(err error) bool { return errors.Is(err, ErrInvalidData) }

// IsRetryable reports whether the error looks like a transient condition
// worth retrying (lock contention, connection reset) rather than a
// constraint failure that will never succeed on retry.
func IsRetryable(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock found
			return true
		}
	}
	return errors.Is(err, mysql.ErrInvalidConn)
}
