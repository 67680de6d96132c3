package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/steveyegge/convanalytics/internal/dberr"
	"github.com/steveyegge/convanalytics/internal/dbutil"
	"github.com/steveyegge/convanalytics/internal/types"
)

// ConversationAnalyticsRepo persists the per-conversation metric tuple
// (spec §4.2). Rows are append-only per analysis pass; the row with the
// greatest analyzed_at is authoritative for a given conversation_id.
type ConversationAnalyticsRepo struct {
	*Base
}

// NewConversationAnalyticsRepo wires a repo against an open connection pool.
func NewConversationAnalyticsRepo(db *sql.DB, log *zap.Logger) *ConversationAnalyticsRepo {
	return &ConversationAnalyticsRepo{Base: NewBase(db, "conversation_analytics", log)}
}

// ProductivitySummary is the result of ProductivitySummary(range).
type ProductivitySummary struct {
	AverageProductivity float64
	MedianProductivity  float64
	TrendSlope          float64
	TotalConversations  int
	TotalInsights        int
	AverageDepth          float64
	AverageCircularity    float64
}

// Save inserts a new analytics row with analyzed_at = now (spec §4.2).
func (r *ConversationAnalyticsRepo) Save(ctx context.Context, conversationID string, a types.ConversationAnalytics) (string, error) {
	id := uuid.NewString()
	now := time.Now().UnixMilli()
	metadata, err := a.Metadata.MarshalText()
	if err != nil {
		return "", fmt.Errorf("repository: marshal metadata: %w: %v", dberr.ErrInvalidData, err)
	}

	stmt, err := r.Prepare(ctx, "save", `
		INSERT INTO conversation_analytics (
			id, conversation_id, analyzed_at, topic_count, topic_transitions,
			depth_score, circularity_index, productivity_score, resolution_time,
			insight_count, breakthrough_count, question_quality_avg,
			response_quality_avg, engagement_score, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}

	_, err = stmt.ExecContext(ctx, id, conversationID, now, a.TopicCount, a.TopicTransitions,
		a.DepthScore, a.CircularityIndex, a.ProductivityScore, a.ResolutionTime,
		a.InsightCount, a.BreakthroughCount, a.QuestionQualityAvg,
		a.ResponseQualityAvg, a.EngagementScore, string(metadata), now, now)
	if err != nil {
		return "", dberr.Classify("save conversation analytics", err)
	}
	return id, nil
}

// Get returns the latest analytics row for a conversation via a windowed
// query (partition by conversation, order by analyzed_at desc, take the
// first) — spec §4.2.
func (r *ConversationAnalyticsRepo) Get(ctx context.Context, conversationID string) (types.ConversationAnalytics, error) {
	stmt, err := r.Prepare(ctx, "get_latest", `
		SELECT topic_count, topic_transitions, depth_score, circularity_index,
			productivity_score, resolution_time, insight_count, breakthrough_count,
			question_quality_avg, response_quality_avg, engagement_score, metadata,
			created_at, updated_at
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY conversation_id ORDER BY analyzed_at DESC) AS rn
			FROM conversation_analytics WHERE conversation_id = ?
		) ranked WHERE rn = 1
	`)
	if err != nil {
		return types.ConversationAnalytics{}, err
	}

	var a types.ConversationAnalytics
	var metadata sql.NullString
	row := stmt.QueryRowContext(ctx, conversationID)
	err = row.Scan(&a.TopicCount, &a.TopicTransitions, &a.DepthScore, &a.CircularityIndex,
		&a.ProductivityScore, &a.ResolutionTime, &a.InsightCount, &a.BreakthroughCount,
		&a.QuestionQualityAvg, &a.ResponseQualityAvg, &a.EngagementScore, &metadata,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return types.ConversationAnalytics{}, dberr.Classify("get conversation analytics", err)
	}
	bag, err := types.BagFromText(metadata.String)
	if err != nil {
		return types.ConversationAnalytics{}, fmt.Errorf("repository: unmarshal metadata: %w", err)
	}
	a.Metadata = bag
	return a, nil
}

// ProductivitySummary computes average/median/trend productivity and
// aggregate counts over latest rows only, restricted to analyzed_at ∈
// range (spec §4.2).
func (r *ConversationAnalyticsRepo) ProductivitySummary(ctx context.Context, tr types.TimeRange) (ProductivitySummary, error) {
	if tr.Empty() {
		return ProductivitySummary{}, nil
	}

	rows, err := r.DB().QueryContext(ctx, `
		SELECT productivity_score, analyzed_at, insight_count, depth_score, circularity_index
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY conversation_id ORDER BY analyzed_at DESC) AS rn
			FROM conversation_analytics WHERE analyzed_at >= ? AND analyzed_at < ?
		) ranked WHERE rn = 1
	`, tr.Start, tr.End)
	if err != nil {
		return ProductivitySummary{}, dberr.Classify("productivity summary", err)
	}
	defer rows.Close()

	var scores []float64
	var points []dbutil.Point
	var totalInsights int
	var sumDepth, sumCircularity float64
	count := 0

	for rows.Next() {
		var productivity float64
		var analyzedAt int64
		var insights int
		var depth, circularity float64
		if err := rows.Scan(&productivity, &analyzedAt, &insights, &depth, &circularity); err != nil {
			return ProductivitySummary{}, dberr.Classify("productivity summary scan", err)
		}
		scores = append(scores, productivity)
		points = append(points, dbutil.Point{T: float64(analyzedAt) / 1000, V: productivity})
		totalInsights += insights
		sumDepth += depth
		sumCircularity += circularity
		count++
	}
	if err := rows.Err(); err != nil {
		return ProductivitySummary{}, dberr.Classify("productivity summary rows", err)
	}

	summary := ProductivitySummary{
		TotalConversations: count,
		TotalInsights:       totalInsights,
		TrendSlope:          dbutil.TrendSlope(points),
		MedianProductivity:  dbutil.Median(scores),
	}
	if count > 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		summary.AverageProductivity = sum / float64(count)
		summary.AverageDepth = sumDepth / float64(count)
		summary.AverageCircularity = sumCircularity / float64(count)
	}
	return summary, nil
}

// TopPerforming orders latest records by (productivity_score desc,
// insight_count desc) — spec §4.2.
func (r *ConversationAnalyticsRepo) TopPerforming(ctx context.Context, limit int, tr types.TimeRange) ([]string, error) {
	if tr.Empty() || limit <= 0 {
		return nil, nil
	}
	rows, err := r.DB().QueryContext(ctx, `
		SELECT conversation_id FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY conversation_id ORDER BY analyzed_at DESC) AS rn
			FROM conversation_analytics WHERE analyzed_at >= ? AND analyzed_at < ?
		) ranked WHERE rn = 1
		ORDER BY productivity_score DESC, insight_count DESC
		LIMIT ?
	`, tr.Start, tr.End, limit)
	if err != nil {
		return nil, dberr.Classify("top performing", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dberr.Classify("top performing scan", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ConversationsNeedingAnalysis selects conversations whose latest
// analyzed_at is missing or older than their updated_at — the
// incremental-scan predicate (spec §4.2, glossary "Incremental scan").
func (r *ConversationAnalyticsRepo) ConversationsNeedingAnalysis(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.DB().QueryContext(ctx, `
		SELECT c.id FROM conversations c
		LEFT JOIN (
			SELECT conversation_id, MAX(analyzed_at) AS latest_analyzed_at
			FROM conversation_analytics GROUP BY conversation_id
		) latest ON latest.conversation_id = c.id
		WHERE latest.latest_analyzed_at IS NULL OR latest.latest_analyzed_at < c.updated_at
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, dberr.Classify("conversations needing analysis", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dberr.Classify("conversations needing analysis scan", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
