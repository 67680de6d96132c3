package dbutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileEmpty(t *testing.T) {
	require.Equal(t, 0.0, Percentile(nil, 50))
}

func TestPercentileMedian(t *testing.T) {
	values := []float64{40, 50, 60, 70, 80}
	assert.Equal(t, 60.0, Median(values))
}

func TestPercentileUnsortedInputUnmodified(t *testing.T) {
	values := []float64{80, 40, 60, 70, 50}
	got := Median(values)
	assert.Equal(t, 60.0, got)
	// original slice must not be mutated by the sort-on-copy.
	assert.Equal(t, []float64{80, 40, 60, 70, 50}, values)
}

func TestTrendSlopePositive(t *testing.T) {
	// five latest analytics rows, increasing productivity and time.
	points := []Point{
		{T: 1, V: 40}, {T: 2, V: 50}, {T: 3, V: 60}, {T: 4, V: 70}, {T: 5, V: 80},
	}
	assert.Greater(t, TrendSlope(points), 0.0)
}

func TestTrendSlopeZeroDenominator(t *testing.T) {
	points := []Point{{T: 5, V: 1}, {T: 5, V: 2}, {T: 5, V: 3}}
	assert.Equal(t, 0.0, TrendSlope(points))
}

func TestTrendSlopeSinglePoint(t *testing.T) {
	assert.Equal(t, 0.0, TrendSlope([]Point{{T: 1, V: 1}}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 100))
	assert.Equal(t, 100.0, Clamp(500, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))
}
