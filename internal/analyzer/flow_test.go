package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/convanalytics/internal/types"
)

func TestAnalyzeFlowEmptyMessagesReturnsZeroValue(t *testing.T) {
	result := AnalyzeFlow(nil)
	assert.Equal(t, FlowResult{}, result)
}

func TestAnalyzeFlowTracksTopicsAndDepth(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "Why does the database connection keep timing out?", CreatedAt: 1000},
		{Role: types.RoleAssistant, Content: "The database connection pool has a default timeout of 30 seconds, how large is your query load?", CreatedAt: 2000},
		{Role: types.RoleUser, Content: "What if we increase the connection pool size for the database?", CreatedAt: 3000},
		{Role: types.RoleAssistant, Content: "Increasing the database connection pool should help with the timeout issue.", CreatedAt: 4000},
	}

	result := AnalyzeFlow(messages)
	assert.Greater(t, result.TopicCount, 0)
	assert.Greater(t, result.DepthScore, 0.0)
	assert.GreaterOrEqual(t, result.CircularityIndex, 0.0)
	assert.LessOrEqual(t, result.CircularityIndex, 1.0)
	assert.NotNil(t, result.ResolutionTime)
}

func TestAnalyzeFlowUnresolvedWhenLastMessageIsQuestion(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "What about caching strategy?", CreatedAt: 1000},
	}
	result := AnalyzeFlow(messages)
	assert.Nil(t, result.ResolutionTime)
}

func TestCountTransitionsAndReturns(t *testing.T) {
	seq := []string{"a", "b", "a", "c", "a"}
	assert.Equal(t, 4, countTransitions(seq))
	assert.Equal(t, 2, countReturns(seq))
}

func TestNormalizeContentStripsPunctuationAndCase(t *testing.T) {
	assert.Equal(t, "cap theorem", NormalizeContent("CAP Theorem!"))
	assert.Equal(t, "cap theorem", NormalizeContent("  CAP   theorem "))
}
