package engine

import (
	"context"

	"github.com/steveyegge/convanalytics/internal/repository"
	"github.com/steveyegge/convanalytics/internal/types"
)

// ConversationsRepo is the slice of repository.ConversationAnalyticsRepo
// the Engine depends on (spec §9: "implement as a small interface plus
// composition"). *repository.ConversationAnalyticsRepo satisfies this
// structurally.
type ConversationsRepo interface {
	Save(ctx context.Context, conversationID string, a types.ConversationAnalytics) (string, error)
	ProductivitySummary(ctx context.Context, tr types.TimeRange) (repository.ProductivitySummary, error)
	ConversationsNeedingAnalysis(ctx context.Context, limit int) ([]string, error)
}

// PatternsRepo is the slice of repository.ProductivityPatternsRepo the
// Engine depends on.
type PatternsRepo interface {
	Save(ctx context.Context, p types.ProductivityPattern) (string, error)
	PeakHours(ctx context.Context, tr types.TimeRange) ([]int, error)
	SessionLengthAnalysis(ctx context.Context, tr types.TimeRange) (repository.SessionLengthAnalysis, error)
}

// GapsRepo is the slice of repository.KnowledgeGapsRepo the Engine
// depends on. AnalyzeConversation drives gap detection and persistence
// through BatchProcessGapsFromConversations rather than duplicating the
// analyzer.DetectGaps + convert + BatchSave sequence itself.
type GapsRepo interface {
	BatchProcessGapsFromConversations(ctx context.Context, messages []types.Message) (repository.BatchResult, error)
	GapClusters(ctx context.Context, minSize int, similarityThreshold float64) ([]repository.GapCluster, error)
	TopicCoverage(ctx context.Context) (map[types.GapType]float64, error)
}

// DecisionsRepo is the slice of repository.DecisionTrackingRepo the
// Engine depends on.
type DecisionsRepo interface {
	BatchTrackDecisions(ctx context.Context, decisions []types.DecisionTracking, suppliedClarity []*float64) (repository.BatchResult, error)
	DecisionAnalysis(ctx context.Context, tr types.TimeRange) (repository.DecisionAnalysis, error)
}
