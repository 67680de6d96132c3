package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/convanalytics/internal/types"
)

func TestDetectDecisionsFindsMarkedDecision(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "We decided to go with ClickHouse because it benchmarks well.", CreatedAt: 1_700_000_000_000},
	}
	decisions := DetectDecisions("conv-1", messages)
	require.Len(t, decisions, 1)
	assert.Contains(t, decisions[0].Summary, "We decided to go with ClickHouse")
	assert.Equal(t, []string{"conv-1"}, decisions[0].ConversationIDs)
	assert.Greater(t, decisions[0].ClarityScore, 50.0)
}

func TestDetectDecisionsNoMarkerYieldsNone(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "Tell me about caching strategies.", CreatedAt: 1000},
	}
	assert.Empty(t, DetectDecisions("conv-1", messages))
}

func TestHeuristicPriorityUrgentIsCritical(t *testing.T) {
	assert.Equal(t, types.PriorityCritical, heuristicPriority("this is urgent, asap"))
}

func TestHeuristicConfidenceLowersOnUncertainty(t *testing.T) {
	assert.Less(t, heuristicConfidence("maybe this might work"), 50.0)
}
