package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/convanalytics/internal/types"
)

func TestMergeGapsByIdentitySumsFrequencyAndUnionsOccurrence(t *testing.T) {
	gaps := []types.KnowledgeGap{
		{NormalizedContent: "cap theorem", GapType: types.GapConcept, Frequency: 1, FirstOccurrence: 100, LastOccurrence: 200},
		{NormalizedContent: "cap theorem", GapType: types.GapConcept, Frequency: 1, FirstOccurrence: 50, LastOccurrence: 300},
		{NormalizedContent: "other", GapType: types.GapTopic, Frequency: 1, FirstOccurrence: 10, LastOccurrence: 20},
	}
	merged := mergeGapsByIdentity(gaps)
	assert.Len(t, merged, 2)
	assert.Equal(t, 2, merged[0].Frequency)
	assert.Equal(t, int64(50), merged[0].FirstOccurrence)
	assert.Equal(t, int64(300), merged[0].LastOccurrence)
}

func TestJaccardIdenticalSets(t *testing.T) {
	a := wordSet("cap theorem distributed systems")
	b := wordSet("cap theorem distributed systems")
	assert.Equal(t, 1.0, jaccard(a, b))
}

func TestJaccardDisjointSets(t *testing.T) {
	a := wordSet("alpha beta")
	b := wordSet("gamma delta")
	assert.Equal(t, 0.0, jaccard(a, b))
}

func TestClusterPriorityCritical(t *testing.T) {
	assert.Equal(t, types.PriorityCritical, clusterPriority(10, 20))
}

func TestClusterPriorityHigh(t *testing.T) {
	assert.Equal(t, types.PriorityHigh, clusterPriority(5, 40))
}

func TestClusterPriorityMedium(t *testing.T) {
	assert.Equal(t, types.PriorityMedium, clusterPriority(3, 90))
}

func TestClusterPriorityLow(t *testing.T) {
	assert.Equal(t, types.PriorityLow, clusterPriority(1, 90))
}

func TestUnderstandingLevelBuckets(t *testing.T) {
	assert.Equal(t, 85.0, understandingLevel(75, 1))
	assert.Equal(t, 70.0, understandingLevel(65, 0))
	assert.Equal(t, 55.0, understandingLevel(45, 0))
	assert.Equal(t, 35.0, understandingLevel(25, 0))
	assert.Equal(t, 15.0, understandingLevel(5, 0))
}

func TestIsPlateauedDetectsSmallDelta(t *testing.T) {
	assert.True(t, isPlateaued([]float64{70, 71, 71.5}))
	assert.False(t, isPlateaued([]float64{40, 55, 70}))
}

func TestIsPlateauedRequiresThreePoints(t *testing.T) {
	assert.False(t, isPlateaued([]float64{70, 71}))
}
