package dbutil

import "sort"

// Percentile returns the p-th percentile (0-100) of values over a sorted
// copy of values, interpolating linearly between the two nearest ranks.
// Returns 0 for an empty input.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Median is Percentile(values, 50).
func Median(values []float64) float64 { return Percentile(values, 50) }

// Point is one (time, value) sample for TrendSlope.
type Point struct {
	T float64
	V float64
}

// TrendSlope is the ordinary-least-squares slope of value against time.
// It is zero when fewer than two points are given or the time variance is
// zero (spec §4.1: "zero when the denominator vanishes").
func TrendSlope(points []Point) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}

	var sumT, sumV float64
	for _, p := range points {
		sumT += p.T
		sumV += p.V
	}
	meanT := sumT / float64(n)
	meanV := sumV / float64(n)

	var num, den float64
	for _, p := range points {
		dt := p.T - meanT
		num += dt * (p.V - meanV)
		den += dt * dt
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
