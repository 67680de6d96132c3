package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMemorySamplerTracksPeakAcrossSamples(t *testing.T) {
	readings := []float64{100, 300, 150}
	i := 0
	s := newMemorySampler(10000, zap.NewNop())
	s.readMB = func() float64 {
		v := readings[i]
		i++
		return v
	}

	s.sampleOnce()
	s.sampleOnce()
	s.sampleOnce()

	assert.Equal(t, 150.0, s.Current())
	assert.Equal(t, 300.0, s.Peak())
}

func TestMemorySamplerWarnsPastNinetyPercentOfBudget(t *testing.T) {
	s := newMemorySampler(1000, zap.NewNop())
	s.readMB = func() float64 { return 950 }

	s.sampleOnce()

	assert.True(t, s.warned)
}

func TestMemorySamplerZeroBudgetNeverWarns(t *testing.T) {
	s := newMemorySampler(0, zap.NewNop())
	s.readMB = func() float64 { return 1e9 }

	s.sampleOnce()

	assert.False(t, s.warned)
}

func TestMemorySamplerClearsWarningBelowThreshold(t *testing.T) {
	s := newMemorySampler(1000, zap.NewNop())
	s.readMB = func() float64 { return 950 }
	s.sampleOnce()
	assert.True(t, s.warned)

	s.readMB = func() float64 { return 100 }
	s.sampleOnce()
	assert.False(t, s.warned)
}
