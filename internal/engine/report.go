package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/convanalytics/internal/types"
)

// ReportFormat is the level of detail requested from GenerateReport.
type ReportFormat string

const (
	ReportSummary   ReportFormat = "summary"
	ReportDetailed  ReportFormat = "detailed"
	ReportExecutive ReportFormat = "executive"
)

// ConversationMetrics is the conversation-level section of a Report.
type ConversationMetrics struct {
	TotalConversations int
	AverageProductivity float64
	MedianProductivity float64
	TrendSlope          float64
	TotalInsights       int
}

// ProductivityInsights is the productivity-pattern section of a Report.
type ProductivityInsights struct {
	PeakHours            []int
	OptimalSessionLength int
}

// KnowledgeGapMetrics is the knowledge-gap section of a Report.
type KnowledgeGapMetrics struct {
	ClusterCount  int
	TopicCoverage map[types.GapType]float64
}

// DecisionMetrics is the decision section of a Report.
type DecisionMetrics struct {
	TotalDecisions      int
	ReversalRatePercent float64
	WeeklyVelocity      float64
}

// Report is the Engine's aggregate output from GenerateReport (spec
// §4.10).
type Report struct {
	Format               ReportFormat
	Range                types.TimeRange
	ConversationMetrics  ConversationMetrics
	ProductivityInsights ProductivityInsights
	KnowledgeGapMetrics  KnowledgeGapMetrics
	DecisionMetrics      DecisionMetrics
	Recommendations      []string
	Insights             []string
}

// GenerateReport aggregates conversation, productivity, knowledge-gap, and
// decision metrics over range in parallel; a failing sub-aggregation
// contributes zeroed defaults rather than aborting the call (spec §4.10,
// §7). The result is cached under a composite key.
func (e *Engine) GenerateReport(ctx context.Context, tr types.TimeRange, format ReportFormat) (Report, error) {
	key := reportCacheKey(format, tr)
	if cached, ok := e.cache.Get(key); ok {
		if report, ok := cached.(Report); ok {
			return report, nil
		}
	}

	report := Report{Format: format, Range: tr, Recommendations: []string{}, Insights: []string{}}
	if tr.Empty() {
		e.cache.Set(key, report)
		return report, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var conversationMetrics ConversationMetrics
	var productivityInsights ProductivityInsights
	var knowledgeGapMetrics KnowledgeGapMetrics
	var decisionMetrics DecisionMetrics

	g.Go(func() error {
		summary, err := e.conversations.ProductivitySummary(gctx, tr)
		if err != nil {
			e.log.Warn("conversation metrics sub-aggregation failed, using zero defaults", zap.Error(err))
			return nil
		}
		conversationMetrics = ConversationMetrics{
			TotalConversations: summary.TotalConversations,
			AverageProductivity: summary.AverageProductivity,
			MedianProductivity: summary.MedianProductivity,
			TrendSlope:          summary.TrendSlope,
			TotalInsights:       summary.TotalInsights,
		}
		return nil
	})

	g.Go(func() error {
		peakHours, err := e.patterns.PeakHours(gctx, tr)
		if err != nil {
			e.log.Warn("peak hours sub-aggregation failed, using zero defaults", zap.Error(err))
			return nil
		}
		sessions, err := e.patterns.SessionLengthAnalysis(gctx, tr)
		if err != nil {
			e.log.Warn("session length sub-aggregation failed, using zero defaults", zap.Error(err))
			return nil
		}
		productivityInsights = ProductivityInsights{
			PeakHours:            peakHours,
			OptimalSessionLength: sessions.OptimalMinutes,
		}
		return nil
	})

	g.Go(func() error {
		clusters, err := e.gaps.GapClusters(gctx, 2, 0.7)
		if err != nil {
			e.log.Warn("gap cluster sub-aggregation failed, using zero defaults", zap.Error(err))
			return nil
		}
		coverage, err := e.gaps.TopicCoverage(gctx)
		if err != nil {
			e.log.Warn("topic coverage sub-aggregation failed, using zero defaults", zap.Error(err))
			coverage = map[types.GapType]float64{}
		}
		knowledgeGapMetrics = KnowledgeGapMetrics{ClusterCount: len(clusters), TopicCoverage: coverage}
		return nil
	})

	g.Go(func() error {
		analysis, err := e.decisions.DecisionAnalysis(gctx, tr)
		if err != nil {
			e.log.Warn("decision sub-aggregation failed, using zero defaults", zap.Error(err))
			return nil
		}
		decisionMetrics = DecisionMetrics{
			TotalDecisions:      analysis.TotalDecisions,
			ReversalRatePercent: analysis.ReversalRatePercent,
			WeeklyVelocity:      analysis.WeeklyVelocity,
		}
		return nil
	})

	// Every sub-aggregation swallows its own error and returns nil, so
	// g.Wait() only ever surfaces a context cancellation.
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.ConversationMetrics = conversationMetrics
	report.ProductivityInsights = productivityInsights
	report.KnowledgeGapMetrics = knowledgeGapMetrics
	report.DecisionMetrics = decisionMetrics

	e.cache.Set(key, report)
	return report, nil
}

func reportCacheKey(format ReportFormat, tr types.TimeRange) string {
	return fmt.Sprintf("report:%s:%d-%d", format, tr.Start, tr.End)
}

