package dbutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmpty(t *testing.T) {
	require.Nil(t, Chunk(nil, 10))
}

func TestChunkSplitsEvenly(t *testing.T) {
	records := make([]Record, 5)
	for i := range records {
		records[i] = Record{"id": i}
	}
	chunks := Chunk(records, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[1], 2)
	assert.Len(t, chunks[2], 1)
}

func TestChunkSizeZeroIsOneChunk(t *testing.T) {
	records := []Record{{"a": 1}, {"b": 2}}
	chunks := Chunk(records, 0)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 2)
}

func TestShapeConsistent(t *testing.T) {
	assert.True(t, ShapeConsistent(nil))
	assert.True(t, ShapeConsistent([]Record{
		{"a": 1, "b": 2},
		{"a": 3, "b": 4},
	}))
	assert.False(t, ShapeConsistent([]Record{
		{"a": 1, "b": 2},
		{"a": 3},
	}))
}
