package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBagRoundTrip(t *testing.T) {
	original := Bag{
		"title":    StringValue("consistency models"),
		"depth":    NumberValue(72.5),
		"resolved": BoolValue(true),
		"tags":     SequenceValue([]string{"cap-theorem", "distributed"}),
		"nested":   BagValue(Bag{"inner": StringValue("value")}),
	}

	text, err := original.MarshalText()
	require.NoError(t, err)

	decoded, err := BagFromText(string(text))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestBagFromTextEmptyAndNullBothDecodeToEmptyNonNilBag(t *testing.T) {
	fromEmpty, err := BagFromText("")
	require.NoError(t, err)
	assert.NotNil(t, fromEmpty)
	assert.Empty(t, fromEmpty)

	fromNullLiteral, err := BagFromText("null")
	require.NoError(t, err)
	assert.NotNil(t, fromNullLiteral)
	assert.Empty(t, fromNullLiteral)
}

func TestBagMarshalEmptyIsEmptyObject(t *testing.T) {
	text, err := Bag{}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(text))
}

func TestValueUnmarshalInfersKindFromJSONShape(t *testing.T) {
	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte(`"hello"`)))
	assert.Equal(t, KindString, v.Kind)
	assert.Equal(t, "hello", v.Str)

	require.NoError(t, v.UnmarshalJSON([]byte(`42.5`)))
	assert.Equal(t, KindNumber, v.Kind)
	assert.Equal(t, 42.5, v.Num)

	require.NoError(t, v.UnmarshalJSON([]byte(`true`)))
	assert.Equal(t, KindBool, v.Kind)
	assert.True(t, v.Bool)

	require.NoError(t, v.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, KindNull, v.Kind)

	require.NoError(t, v.UnmarshalJSON([]byte(`["a","b"]`)))
	assert.Equal(t, KindSequence, v.Kind)
	assert.Equal(t, []string{"a", "b"}, v.Sequence)

	require.NoError(t, v.UnmarshalJSON([]byte(`{"k":"v"}`)))
	assert.Equal(t, KindBag, v.Kind)
	assert.Equal(t, StringValue("v"), v.Nested["k"])
}

func TestBagFromTextRejectsMalformedJSON(t *testing.T) {
	_, err := BagFromText("{not json")
	assert.Error(t, err)
}
