package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSliceRoundTrip(t *testing.T) {
	original := StringSlice{"alpha", "beta", "gamma"}

	text, err := original.MarshalText()
	require.NoError(t, err)

	decoded, err := StringSliceFromText(string(text))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestStringSliceEmptyAndNullBothDecodeToEmptyNonNilSlice(t *testing.T) {
	fromEmpty, err := StringSliceFromText("")
	require.NoError(t, err)
	assert.NotNil(t, fromEmpty)
	assert.Empty(t, fromEmpty)

	fromNullLiteral, err := StringSliceFromText("null")
	require.NoError(t, err)
	assert.NotNil(t, fromNullLiteral)
	assert.Empty(t, fromNullLiteral)
}

func TestStringSliceMarshalEmptyIsEmptyArray(t *testing.T) {
	text, err := StringSlice{}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(text))
}

func TestStringSliceFromTextRejectsMalformedJSON(t *testing.T) {
	_, err := StringSliceFromText("not json")
	assert.Error(t, err)
}

func TestIntSetRoundTrip(t *testing.T) {
	original := IntSet{9, 14, 22}

	text, err := original.MarshalText()
	require.NoError(t, err)

	decoded, err := IntSetFromText(string(text))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestIntSetEmptyDecodesToEmptyNonNilSet(t *testing.T) {
	decoded, err := IntSetFromText("")
	require.NoError(t, err)
	assert.NotNil(t, decoded)
	assert.Empty(t, decoded)
}

func TestIntSetContains(t *testing.T) {
	s := IntSet{1, 2, 3}
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(9))
}
