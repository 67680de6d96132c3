package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/convanalytics/internal/analyzer"
	"github.com/steveyegge/convanalytics/internal/config"
	"github.com/steveyegge/convanalytics/internal/dberr"
	"github.com/steveyegge/convanalytics/internal/repository"
	"github.com/steveyegge/convanalytics/internal/types"
)

type fakeStore struct {
	conversations map[string]types.Conversation
	messages      map[string][]types.Message
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (types.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok {
		return types.Conversation{}, dberr.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) GetMessages(_ context.Context, conversationID string) ([]types.Message, error) {
	return f.messages[conversationID], nil
}

type fakeConversationsRepo struct {
	saved         []types.ConversationAnalytics
	needingAnalysis []string
}

func (f *fakeConversationsRepo) Save(_ context.Context, conversationID string, a types.ConversationAnalytics) (string, error) {
	a.ConversationID = conversationID
	f.saved = append(f.saved, a)
	return "analytics-id", nil
}

func (f *fakeConversationsRepo) ProductivitySummary(_ context.Context, _ types.TimeRange) (repository.ProductivitySummary, error) {
	return repository.ProductivitySummary{TotalConversations: len(f.saved)}, nil
}

func (f *fakeConversationsRepo) ConversationsNeedingAnalysis(_ context.Context, limit int) ([]string, error) {
	if limit < len(f.needingAnalysis) {
		return f.needingAnalysis[:limit], nil
	}
	return f.needingAnalysis, nil
}

type fakePatternsRepo struct{}

func (fakePatternsRepo) Save(_ context.Context, _ types.ProductivityPattern) (string, error) {
	return "pattern-id", nil
}
func (fakePatternsRepo) PeakHours(_ context.Context, _ types.TimeRange) ([]int, error) { return nil, nil }
func (fakePatternsRepo) SessionLengthAnalysis(_ context.Context, _ types.TimeRange) (repository.SessionLengthAnalysis, error) {
	return repository.SessionLengthAnalysis{}, nil
}

type fakeGapsRepo struct {
	saved []types.KnowledgeGap
}

// BatchProcessGapsFromConversations mirrors the real repository method's
// detect-then-persist behavior so tests exercising AnalyzeConversation see
// the same gap candidates a live KnowledgeGapsRepo would save.
func (f *fakeGapsRepo) BatchProcessGapsFromConversations(_ context.Context, messages []types.Message) (repository.BatchResult, error) {
	candidates := analyzer.DetectGaps(messages)
	gaps := make([]types.KnowledgeGap, len(candidates))
	for i, c := range candidates {
		gaps[i] = types.KnowledgeGap{
			GapType:           c.GapType,
			Content:           c.Content,
			NormalizedContent: c.NormalizedContent,
			Frequency:         c.Frequency,
			FirstOccurrence:   c.FirstOccurrence,
			LastOccurrence:    c.LastOccurrence,
			ExplorationDepth:  c.ExplorationDepth,
		}
	}
	f.saved = append(f.saved, gaps...)
	return repository.BatchResult{Inserted: len(gaps)}, nil
}
func (fakeGapsRepo) GapClusters(_ context.Context, _ int, _ float64) ([]repository.GapCluster, error) {
	return nil, nil
}
func (fakeGapsRepo) TopicCoverage(_ context.Context) (map[types.GapType]float64, error) {
	return map[types.GapType]float64{}, nil
}

type fakeDecisionsRepo struct {
	saved []types.DecisionTracking
}

// BatchTrackDecisions mirrors the real repository method's heuristic
// fallback so tests see the same clarity-scoring behavior a live
// DecisionTrackingRepo would apply.
func (f *fakeDecisionsRepo) BatchTrackDecisions(_ context.Context, decisions []types.DecisionTracking, suppliedClarity []*float64) (repository.BatchResult, error) {
	for i, d := range decisions {
		if i < len(suppliedClarity) && suppliedClarity[i] != nil {
			d.ClarityScore = *suppliedClarity[i]
		}
		f.saved = append(f.saved, d)
	}
	return repository.BatchResult{Inserted: len(decisions)}, nil
}
func (fakeDecisionsRepo) DecisionAnalysis(_ context.Context, _ types.TimeRange) (repository.DecisionAnalysis, error) {
	return repository.DecisionAnalysis{}, nil
}

func newTestEngine(store *fakeStore, conversations *fakeConversationsRepo, gaps *fakeGapsRepo, decisions *fakeDecisionsRepo) *Engine {
	cfg := config.DefaultEngineConfig()
	return New(store, Repos{
		Conversations: conversations,
		Patterns:      fakePatternsRepo{},
		Gaps:          gaps,
		Decisions:     decisions,
	}, cfg, nil)
}

func TestAnalyzeConversationNotFound(t *testing.T) {
	store := &fakeStore{conversations: map[string]types.Conversation{}}
	e := newTestEngine(store, &fakeConversationsRepo{}, &fakeGapsRepo{}, &fakeDecisionsRepo{})

	err := e.AnalyzeConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, dberr.ErrNotFound)
}

func TestAnalyzeConversationEmptyMessagesSkipsSilently(t *testing.T) {
	store := &fakeStore{
		conversations: map[string]types.Conversation{"c1": {ID: "c1"}},
		messages:      map[string][]types.Message{},
	}
	conversations := &fakeConversationsRepo{}
	e := newTestEngine(store, conversations, &fakeGapsRepo{}, &fakeDecisionsRepo{})

	err := e.AnalyzeConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, conversations.saved)
}

func TestAnalyzeConversationWritesAnalyticsGapsAndDecisions(t *testing.T) {
	store := &fakeStore{
		conversations: map[string]types.Conversation{"c1": {ID: "c1", UpdatedAt: 1000}},
		messages: map[string][]types.Message{
			"c1": {
				{Role: types.RoleUser, Content: "What is the CAP theorem?", CreatedAt: 1000},
				{Role: types.RoleAssistant, Content: "We decided to go with eventual consistency because latency matters.", CreatedAt: 2000},
			},
		},
	}
	conversations := &fakeConversationsRepo{}
	gaps := &fakeGapsRepo{}
	decisions := &fakeDecisionsRepo{}
	e := newTestEngine(store, conversations, gaps, decisions)

	err := e.AnalyzeConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, conversations.saved, 1)
	assert.NotEmpty(t, gaps.saved)
	assert.NotEmpty(t, decisions.saved)
}

func TestProcessNeedingAnalysisDisabledReturnsZero(t *testing.T) {
	store := &fakeStore{}
	conversations := &fakeConversationsRepo{needingAnalysis: []string{"c1"}}
	e := newTestEngine(store, conversations, &fakeGapsRepo{}, &fakeDecisionsRepo{})
	e.cfg.EnableIncrementalProcessing = false

	processed, err := e.ProcessNeedingAnalysis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestProcessNeedingAnalysisProcessesStaleConversations(t *testing.T) {
	store := &fakeStore{
		conversations: map[string]types.Conversation{
			"c1": {ID: "c1", UpdatedAt: 1000},
		},
		messages: map[string][]types.Message{
			"c1": {{Role: types.RoleUser, Content: "hello there friend", CreatedAt: 500}},
		},
	}
	conversations := &fakeConversationsRepo{needingAnalysis: []string{"c1"}}
	e := newTestEngine(store, conversations, &fakeGapsRepo{}, &fakeDecisionsRepo{})

	processed, err := e.ProcessNeedingAnalysis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestGenerateReportEmptyRangeReturnsZeroedSuccess(t *testing.T) {
	e := newTestEngine(&fakeStore{}, &fakeConversationsRepo{}, &fakeGapsRepo{}, &fakeDecisionsRepo{})

	report, err := e.GenerateReport(context.Background(), types.TimeRange{Start: 1, End: 1}, ReportSummary)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ConversationMetrics.TotalConversations)
	assert.Empty(t, report.Recommendations)
	assert.Empty(t, report.Insights)
}

func TestGenerateReportCachesResult(t *testing.T) {
	conversations := &fakeConversationsRepo{}
	e := newTestEngine(&fakeStore{}, conversations, &fakeGapsRepo{}, &fakeDecisionsRepo{})
	tr := types.TimeRange{Start: 1, End: 100}

	first, err := e.GenerateReport(context.Background(), tr, ReportSummary)
	require.NoError(t, err)

	conversations.saved = append(conversations.saved, types.ConversationAnalytics{})
	second, err := e.GenerateReport(context.Background(), tr, ReportSummary)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBatchProcessConversationsZeroDeadlineReturnsImmediately(t *testing.T) {
	e := newTestEngine(&fakeStore{}, &fakeConversationsRepo{}, &fakeGapsRepo{}, &fakeDecisionsRepo{})

	result, err := e.BatchProcessConversations(context.Background(), []string{"c1"}, BatchProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
}

func TestBatchProcessConversationsProcessesAll(t *testing.T) {
	store := &fakeStore{
		conversations: map[string]types.Conversation{
			"c1": {ID: "c1"}, "c2": {ID: "c2"},
		},
		messages: map[string][]types.Message{
			"c1": {{Role: types.RoleUser, Content: "hello world", CreatedAt: 1}},
			"c2": {{Role: types.RoleUser, Content: "hello again", CreatedAt: 1}},
		},
	}
	e := newTestEngine(store, &fakeConversationsRepo{}, &fakeGapsRepo{}, &fakeDecisionsRepo{})

	result, err := e.BatchProcessConversations(context.Background(), []string{"c1", "c2", "missing"}, BatchProcessOptions{
		MaxProcessingTime: time.Second,
		MaxConcurrency:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)
}
