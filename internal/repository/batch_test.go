package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/convanalytics/internal/dbutil"
)

func TestBatchInsertEmptyIsNoop(t *testing.T) {
	b := NewBase(nil, "test", nil)
	result, err := b.BatchInsert(context.Background(), "t", nil, BatchInsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, result)
}

func TestBatchInsertRejectsShapeMismatch(t *testing.T) {
	b := NewBase(nil, "test", nil)
	records := []dbutil.Record{
		{"id": 1, "name": "a"},
		{"id": 2},
	}
	_, err := b.BatchInsert(context.Background(), "t", records, BatchInsertOptions{})
	assert.Error(t, err)
}

func TestBatchUpsertEmptyIsNoop(t *testing.T) {
	b := NewBase(nil, "test", nil)
	result, err := b.BatchUpsert(context.Background(), "t", nil, []string{"id"}, BatchUpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, result)
}

func TestBuildInsertSQLDialect(t *testing.T) {
	cols := []string{"a", "b"}

	fail := buildInsertSQL("t", cols, ConflictFail)
	assert.Equal(t, "INSERT INTO t (a, b) VALUES (?, ?)", fail)

	ignore := buildInsertSQL("t", cols, ConflictIgnore)
	assert.Equal(t, "INSERT IGNORE INTO t (a, b) VALUES (?, ?)", ignore)

	replace := buildInsertSQL("t", cols, ConflictReplace)
	assert.Contains(t, replace, "ON DUPLICATE KEY UPDATE a = VALUES(a), b = VALUES(b)")
}

func TestBuildUpsertSQL(t *testing.T) {
	sqlText := buildUpsertSQL("t", []string{"id", "name", "updated_at"}, []string{"name", "updated_at"})
	assert.Equal(t, "INSERT INTO t (id, name, updated_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name), updated_at = VALUES(updated_at)", sqlText)
}

func TestNonKeyColumns(t *testing.T) {
	cols := []string{"a", "b", "id"}
	out := nonKeyColumns(cols, []string{"id"})
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestSortedColumns(t *testing.T) {
	rec := dbutil.Record{"z": 1, "a": 2, "m": 3}
	assert.Equal(t, []string{"a", "m", "z"}, sortedColumns(rec))
}

func TestBatchDeleteRequiresPredicate(t *testing.T) {
	b := NewBase(nil, "test", nil)
	_, err := b.BatchDelete(context.Background(), "t", Predicate{}, BatchDeleteOptions{})
	assert.Error(t, err)
}
