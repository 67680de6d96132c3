package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/convanalytics/internal/types"
)

func TestDetectGapsEmptyMessagesReturnsNil(t *testing.T) {
	assert.Nil(t, DetectGaps(nil))
}

func TestDetectGapsFindsUnresolvedQuestion(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "What is the CAP theorem?", CreatedAt: 1000},
		{Role: types.RoleAssistant, Content: "It describes consistency, availability, and partition tolerance trade-offs.", CreatedAt: 2000},
	}
	gaps := DetectGaps(messages)
	require.Len(t, gaps, 1)
	assert.Equal(t, types.GapQuestion, gaps[0].GapType)
	assert.Equal(t, "what is the cap theorem", gaps[0].NormalizedContent)
}

func TestDetectGapsMergesDuplicatesWithinPass(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "What is the CAP theorem?", CreatedAt: 1000},
		{Role: types.RoleAssistant, Content: "It's a distributed systems trade-off.", CreatedAt: 2000},
		{Role: types.RoleUser, Content: "what is the CAP theorem??", CreatedAt: 3000},
	}
	gaps := DetectGaps(messages)
	require.Len(t, gaps, 1)
	assert.Equal(t, 2, gaps[0].Frequency)
	assert.Equal(t, int64(1000), gaps[0].FirstOccurrence)
	assert.Equal(t, int64(3000), gaps[0].LastOccurrence)
}
