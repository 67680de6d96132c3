package engine

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/convanalytics/internal/analyzer"
	"github.com/steveyegge/convanalytics/internal/dberr"
	"github.com/steveyegge/convanalytics/internal/types"
)

// AnalyzeConversation is idempotent per call: it always appends a fresh
// conversation-analytics row plus any gaps/decisions derived from the
// current message sequence. It fails with dberr.ErrNotFound if the
// conversation is absent, and skips silently (success, no rows written)
// when the conversation has no messages (spec §4.10, §8).
func (e *Engine) AnalyzeConversation(ctx context.Context, conversationID string) error {
	if _, err := e.store.GetConversation(ctx, conversationID); err != nil {
		return err
	}

	messages, err := e.store.GetMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	var flow analyzer.FlowResult
	var productivity analyzer.ProductivityResult
	var decisions []analyzer.DecisionCandidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		flow = analyzer.AnalyzeFlow(messages)
		return gctx.Err()
	})
	g.Go(func() error {
		productivity = analyzer.AnalyzeProductivity(messages)
		return gctx.Err()
	})
	g.Go(func() error {
		decisions = analyzer.DetectDecisions(conversationID, messages)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// Fixed write order: analytics row -> gaps -> decisions (spec §5).
	// Patterns are a window-level aggregate, recomputed at the batch
	// level rather than per conversation.
	record := types.ConversationAnalytics{
		TopicCount:         flow.TopicCount,
		TopicTransitions:    flow.TopicTransitions,
		DepthScore:          flow.DepthScore,
		CircularityIndex:    flow.CircularityIndex,
		ProductivityScore:   productivity.ProductivityScore,
		ResolutionTime:      flow.ResolutionTime,
		InsightCount:        productivity.InsightCount,
		BreakthroughCount:   productivity.BreakthroughCount,
		QuestionQualityAvg:  productivity.QuestionQualityScore,
		ResponseQualityAvg:  productivity.EffectivenessScore,
		EngagementScore:     productivity.EngagementScore,
		Metadata:            types.Bag{},
	}
	if _, err := e.conversations.Save(ctx, conversationID, record); err != nil {
		return err
	}

	if _, err := e.gaps.BatchProcessGapsFromConversations(ctx, messages); err != nil {
		return err
	}

	if len(decisions) > 0 {
		tracked := make([]types.DecisionTracking, len(decisions))
		suppliedClarity := make([]*float64, len(decisions))
		for i, d := range decisions {
			decisionType := d.DecisionType
			tracked[i] = types.DecisionTracking{
				DecisionSummary:         d.Summary,
				DecisionType:            &decisionType,
				ConversationIDs:         types.StringSlice(d.ConversationIDs),
				DecisionMadeAt:          &d.DecisionMadeAt,
				ClarityScore:            d.ClarityScore,
				ConfidenceLevel:         d.ConfidenceLevel,
				InformationCompleteness: d.InformationCompleteness,
				AlternativesConsidered:  d.AlternativesConsidered,
				RiskAssessed:            d.RiskAssessed,
				Tags:                    types.StringSlice(d.Tags),
				Priority:                d.Priority,
			}
			// The analyzer already derived a clarity score from its own
			// heuristics; treat it as caller-supplied so BatchTrackDecisions
			// doesn't recompute it from the summary text a second time.
			clarity := d.ClarityScore
			suppliedClarity[i] = &clarity
		}
		if _, err := e.decisions.BatchTrackDecisions(ctx, tracked, suppliedClarity); err != nil {
			return err
		}
	}

	return nil
}

// ProcessNeedingAnalysis selects up to batch_processing_size stale
// conversations and analyzes each until max_processing_time_ms elapses,
// returning the processed count (spec §4.10).
func (e *Engine) ProcessNeedingAnalysis(ctx context.Context) (int, error) {
	if !e.cfg.EnableIncrementalProcessing {
		return 0, nil
	}
	if e.cfg.MaxProcessingTime <= 0 {
		return 0, nil
	}

	ids, err := e.conversations.ConversationsNeedingAnalysis(ctx, e.cfg.BatchProcessingSize)
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(e.cfg.MaxProcessingTime)
	processed := 0
	for _, id := range ids {
		if time.Now().After(deadline) {
			break
		}
		if err := e.AnalyzeConversation(ctx, id); err != nil {
			if errors.Is(err, dberr.ErrNotFound) {
				continue
			}
			return processed, err
		}
		processed++
	}
	return processed, nil
}
