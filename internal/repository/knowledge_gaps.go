package repository

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/steveyegge/convanalytics/internal/analyzer"
	"github.com/steveyegge/convanalytics/internal/dberr"
	"github.com/steveyegge/convanalytics/internal/dbutil"
	"github.com/steveyegge/convanalytics/internal/types"
)

// KnowledgeGapsRepo persists knowledge gaps with dedup, clustering, and
// learning-curve aggregation (spec §4.4).
type KnowledgeGapsRepo struct {
	*Base
}

func NewKnowledgeGapsRepo(db *sql.DB, log *zap.Logger) *KnowledgeGapsRepo {
	return &KnowledgeGapsRepo{Base: NewBase(db, "knowledge_gaps", log)}
}

// substringDedupMinLen is the normalized-content length above which a
// substring match (not just exact match) counts as a duplicate (spec §4.4).
const substringDedupMinLen = 10

// Save looks up an existing gap by normalized content (exact match, or
// substring match when normalized content exceeds 10 characters). On hit
// it adds g.Frequency (at least 1) to the existing row's frequency and
// bumps last_occurrence in one statement, returning the existing id. On
// miss it inserts a new row.
func (r *KnowledgeGapsRepo) Save(ctx context.Context, g types.KnowledgeGap) (string, error) {
	existingID, existingLast, found, err := r.findDuplicate(ctx, g.NormalizedContent, g.GapType)
	if err != nil {
		return "", err
	}
	if found {
		lastOccurrence := g.LastOccurrence
		if existingLast > lastOccurrence {
			lastOccurrence = existingLast
		}
		stmt, err := r.Prepare(ctx, "merge_on_save", `
			UPDATE knowledge_gaps SET frequency = frequency + ?, last_occurrence = ?, updated_at = ?
			WHERE id = ?
		`)
		if err != nil {
			return "", err
		}
		if _, err := stmt.ExecContext(ctx, max(g.Frequency, 1), lastOccurrence, time.Now().UnixMilli(), existingID); err != nil {
			return "", dberr.Classify("merge knowledge gap", err)
		}
		return existingID, nil
	}
	return r.insert(ctx, g)
}

func (r *KnowledgeGapsRepo) insert(ctx context.Context, g types.KnowledgeGap) (string, error) {
	id := uuid.NewString()
	now := time.Now().UnixMilli()

	relatedEntities, _ := g.RelatedEntities.MarshalText()
	relatedGaps, _ := g.RelatedGaps.MarshalText()
	suggestedActions, _ := g.SuggestedActions.MarshalText()
	suggestedResources, _ := g.SuggestedResources.MarshalText()

	stmt, err := r.Prepare(ctx, "insert", `
		INSERT INTO knowledge_gaps (
			id, gap_type, content, normalized_content, frequency, first_occurrence,
			last_occurrence, exploration_depth, resolved, resolution_conversation_id,
			resolution_date, resolution_quality, related_entities, related_gaps,
			suggested_actions, suggested_resources, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	_, err = stmt.ExecContext(ctx, id, string(g.GapType), g.Content, g.NormalizedContent,
		max(g.Frequency, 1), g.FirstOccurrence, g.LastOccurrence, g.ExplorationDepth,
		g.Resolved, nullIfEmpty(g.ResolutionConversation), g.ResolutionDate, g.ResolutionQuality,
		string(relatedEntities), string(relatedGaps), string(suggestedActions), string(suggestedResources),
		now, now)
	if err != nil {
		return "", dberr.Classify("insert knowledge gap", err)
	}
	return id, nil
}

func (r *KnowledgeGapsRepo) findDuplicate(ctx context.Context, normalized string, gapType types.GapType) (id string, lastOccurrence int64, found bool, err error) {
	var query string
	var args []any
	if len(normalized) > substringDedupMinLen {
		query = `SELECT id, last_occurrence FROM knowledge_gaps WHERE gap_type = ? AND (normalized_content = ? OR normalized_content LIKE CONCAT('%', ?, '%') OR ? LIKE CONCAT('%', normalized_content, '%')) LIMIT 1`
		args = []any{string(gapType), normalized, normalized, normalized}
	} else {
		query = `SELECT id, last_occurrence FROM knowledge_gaps WHERE gap_type = ? AND normalized_content = ? LIMIT 1`
		args = []any{string(gapType), normalized}
	}

	row := r.DB().QueryRowContext(ctx, query, args...)
	if scanErr := row.Scan(&id, &lastOccurrence); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", 0, false, nil
		}
		return "", 0, false, dberr.Classify("find duplicate gap", scanErr)
	}
	return id, lastOccurrence, true, nil
}

// BatchSave groups the incoming batch by (normalized_content, gap_type),
// merges within each group (sums frequencies, min/max occurrence
// timestamps, unions sequences), then upserts against the existing store
// (spec §4.4).
func (r *KnowledgeGapsRepo) BatchSave(ctx context.Context, gaps []types.KnowledgeGap) (BatchResult, error) {
	if len(gaps) == 0 {
		return BatchResult{}, nil
	}
	merged := mergeGapsByIdentity(gaps)

	var result BatchResult
	for _, g := range merged {
		if _, err := r.Save(ctx, g); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Inserted++
	}
	return result, nil
}

func mergeGapsByIdentity(gaps []types.KnowledgeGap) []types.KnowledgeGap {
	type key struct {
		normalized string
		gapType    types.GapType
	}
	order := make([]key, 0, len(gaps))
	groups := make(map[key]types.KnowledgeGap, len(gaps))

	for _, g := range gaps {
		k := key{normalized: g.NormalizedContent, gapType: g.GapType}
		existing, ok := groups[k]
		if !ok {
			order = append(order, k)
			groups[k] = g
			continue
		}
		existing.Frequency += g.Frequency
		if g.FirstOccurrence < existing.FirstOccurrence {
			existing.FirstOccurrence = g.FirstOccurrence
		}
		if g.LastOccurrence > existing.LastOccurrence {
			existing.LastOccurrence = g.LastOccurrence
		}
		existing.RelatedEntities = unionStrings(existing.RelatedEntities, g.RelatedEntities)
		existing.RelatedGaps = unionStrings(existing.RelatedGaps, g.RelatedGaps)
		existing.SuggestedActions = unionStrings(existing.SuggestedActions, g.SuggestedActions)
		existing.SuggestedResources = unionStrings(existing.SuggestedResources, g.SuggestedResources)
		groups[k] = existing
	}

	out := make([]types.KnowledgeGap, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	return out
}

func unionStrings(a, b types.StringSlice) types.StringSlice {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make(types.StringSlice, 0, len(a)+len(b))
	for _, s := range append(append(types.StringSlice{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// GapCluster is the result of clustering unresolved gaps by similarity.
type GapCluster struct {
	GapIDs         []string
	TotalFrequency int
	AverageDepth   float64
	Priority       types.Priority
}

// GapClusters examines all unresolved gaps in insertion order; for each
// unprocessed gap, absorbs all subsequent unprocessed gaps whose Jaccard
// similarity over normalized-content word sets is >= similarityThreshold.
// Clusters smaller than minSize are discarded (spec §4.4).
func (r *KnowledgeGapsRepo) GapClusters(ctx context.Context, minSize int, similarityThreshold float64) ([]GapCluster, error) {
	if similarityThreshold <= 0 {
		similarityThreshold = 0.7
	}

	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, normalized_content, frequency, exploration_depth FROM knowledge_gaps
		WHERE resolved = FALSE ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, dberr.Classify("gap clusters", err)
	}
	defer rows.Close()

	type gapRow struct {
		id         string
		normalized string
		words      map[string]struct{}
		frequency  int
		depth      float64
	}
	var all []gapRow
	for rows.Next() {
		var g gapRow
		if err := rows.Scan(&g.id, &g.normalized, &g.frequency, &g.depth); err != nil {
			return nil, dberr.Classify("gap clusters scan", err)
		}
		g.words = wordSet(g.normalized)
		all = append(all, g)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify("gap clusters rows", err)
	}

	processed := make([]bool, len(all))
	var clusters []GapCluster

	for i := range all {
		if processed[i] {
			continue
		}
		processed[i] = true
		members := []int{i}
		for j := i + 1; j < len(all); j++ {
			if processed[j] {
				continue
			}
			if jaccard(all[i].words, all[j].words) >= similarityThreshold {
				processed[j] = true
				members = append(members, j)
			}
		}
		if len(members) < minSize {
			continue
		}

		var totalFreq int
		var sumDepth float64
		ids := make([]string, 0, len(members))
		for _, m := range members {
			totalFreq += all[m].frequency
			sumDepth += all[m].depth
			ids = append(ids, all[m].id)
		}
		avgDepth := sumDepth / float64(len(members))
		clusters = append(clusters, GapCluster{
			GapIDs:         ids,
			TotalFrequency: totalFreq,
			AverageDepth:   avgDepth,
			Priority:       clusterPriority(totalFreq, avgDepth),
		})
	}
	return clusters, nil
}

func clusterPriority(totalFrequency int, avgDepth float64) types.Priority {
	switch {
	case totalFrequency >= 10 && avgDepth < 30:
		return types.PriorityCritical
	case totalFrequency >= 5 && avgDepth < 50:
		return types.PriorityHigh
	case totalFrequency >= 3:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// LearningProgress is the result of learning-curve analysis for a gap.
type LearningProgress struct {
	Points               []dbutil.Point
	Gradient             float64 // points per day
	Plateaued            bool
	EstimatedHours        float64
}

const plateauDeltaThreshold = 2.0
const maxEstimatedHours = 720

// LearningProgress derives progress points from conversation_analytics
// rows of conversations whose messages mention the gap's normalized
// content, buckets understanding level, and estimates a completion ETA
// (spec §4.4).
func (r *KnowledgeGapsRepo) LearningProgress(ctx context.Context, gapID string) (LearningProgress, error) {
	var normalized string
	row := r.DB().QueryRowContext(ctx, `SELECT normalized_content FROM knowledge_gaps WHERE id = ?`, gapID)
	if err := row.Scan(&normalized); err != nil {
		return LearningProgress{}, dberr.Classify("learning progress lookup", err)
	}

	rows, err := r.DB().QueryContext(ctx, `
		SELECT ca.analyzed_at, ca.depth_score, ca.insight_count
		FROM conversation_analytics ca
		JOIN messages m ON m.conversation_id = ca.conversation_id
		WHERE m.content LIKE CONCAT('%', ?, '%')
		ORDER BY ca.analyzed_at ASC
	`, normalized)
	if err != nil {
		return LearningProgress{}, dberr.Classify("learning progress scan", err)
	}
	defer rows.Close()

	var points []dbutil.Point
	var levels []float64
	for rows.Next() {
		var analyzedAt int64
		var depth float64
		var insights int
		if err := rows.Scan(&analyzedAt, &depth, &insights); err != nil {
			return LearningProgress{}, dberr.Classify("learning progress row scan", err)
		}
		level := understandingLevel(depth, insights)
		points = append(points, dbutil.Point{T: float64(analyzedAt), V: level})
		levels = append(levels, level)
	}
	if err := rows.Err(); err != nil {
		return LearningProgress{}, dberr.Classify("learning progress rows", err)
	}

	progress := LearningProgress{Points: points}
	if len(points) < 2 {
		return progress, nil
	}

	scaledPoints := make([]dbutil.Point, len(points))
	for i, p := range points {
		scaledPoints[i] = dbutil.Point{T: p.T / 86_400_000, V: p.V} // ms -> days
	}
	progress.Gradient = dbutil.TrendSlope(scaledPoints)
	progress.Plateaued = isPlateaued(levels)

	current := levels[len(levels)-1]
	if progress.Gradient > 0 && current < 85 {
		hours := ((85 - current) / progress.Gradient) * 24
		progress.EstimatedHours = math.Min(hours, maxEstimatedHours)
	}
	return progress, nil
}

// understandingLevel buckets depth/insight signals into a 0-100 level
// (spec §4.4).
func understandingLevel(depth float64, insightCount int) float64 {
	switch {
	case insightCount > 0 && depth > 70:
		return 85
	case depth > 60:
		return 70
	case depth > 40:
		return 55
	case depth > 20:
		return 35
	default:
		return 15
	}
}

// isPlateaued reports whether the average delta across the last three
// points is under the plateau threshold.
func isPlateaued(levels []float64) bool {
	if len(levels) < 3 {
		return false
	}
	tail := levels[len(levels)-3:]
	var sumDelta float64
	for i := 1; i < len(tail); i++ {
		sumDelta += math.Abs(tail[i] - tail[i-1])
	}
	return sumDelta/float64(len(tail)-1) < plateauDeltaThreshold
}

// TopicCoverage returns, for each distinct gap_type, the count of gaps
// and the fraction resolved.
func (r *KnowledgeGapsRepo) TopicCoverage(ctx context.Context) (map[types.GapType]float64, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT gap_type, COUNT(*) AS total, SUM(CASE WHEN resolved THEN 1 ELSE 0 END) AS resolved
		FROM knowledge_gaps GROUP BY gap_type
	`)
	if err != nil {
		return nil, dberr.Classify("topic coverage", err)
	}
	defer rows.Close()

	coverage := make(map[types.GapType]float64)
	for rows.Next() {
		var gapType string
		var total, resolved int
		if err := rows.Scan(&gapType, &total, &resolved); err != nil {
			return nil, dberr.Classify("topic coverage scan", err)
		}
		if total == 0 {
			continue
		}
		coverage[types.GapType(gapType)] = float64(resolved) / float64(total)
	}
	return coverage, rows.Err()
}

const gapColumns = `id, gap_type, content, normalized_content, frequency, first_occurrence,
	last_occurrence, exploration_depth, resolved, resolution_conversation_id,
	resolution_date, resolution_quality, related_entities, related_gaps,
	suggested_actions, suggested_resources, created_at, updated_at`

func scanGap(rows *sql.Rows) (types.KnowledgeGap, error) {
	var g types.KnowledgeGap
	var resolutionConversation sql.NullString
	var resolutionDate sql.NullInt64
	var relatedEntities, relatedGaps, suggestedActions, suggestedResources string

	if err := rows.Scan(&g.ID, &g.GapType, &g.Content, &g.NormalizedContent, &g.Frequency,
		&g.FirstOccurrence, &g.LastOccurrence, &g.ExplorationDepth, &g.Resolved,
		&resolutionConversation, &resolutionDate, &g.ResolutionQuality,
		&relatedEntities, &relatedGaps, &suggestedActions, &suggestedResources,
		&g.CreatedAt, &g.UpdatedAt); err != nil {
		return types.KnowledgeGap{}, err
	}

	g.ResolutionConversation = resolutionConversation.String
	if resolutionDate.Valid {
		g.ResolutionDate = &resolutionDate.Int64
	}
	var err error
	if g.RelatedEntities, err = types.StringSliceFromText(relatedEntities); err != nil {
		return types.KnowledgeGap{}, err
	}
	if g.RelatedGaps, err = types.StringSliceFromText(relatedGaps); err != nil {
		return types.KnowledgeGap{}, err
	}
	if g.SuggestedActions, err = types.StringSliceFromText(suggestedActions); err != nil {
		return types.KnowledgeGap{}, err
	}
	if g.SuggestedResources, err = types.StringSliceFromText(suggestedResources); err != nil {
		return types.KnowledgeGap{}, err
	}
	return g, nil
}

// GetUnresolvedGaps returns up to limit unresolved gaps ordered by
// descending frequency (spec §6 public operation get_unresolved_gaps).
func (r *KnowledgeGapsRepo) GetUnresolvedGaps(ctx context.Context, limit int) ([]types.KnowledgeGap, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+gapColumns+` FROM knowledge_gaps
		WHERE resolved = FALSE ORDER BY frequency DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, dberr.Classify("get unresolved gaps", err)
	}
	defer rows.Close()

	var gaps []types.KnowledgeGap
	for rows.Next() {
		g, err := scanGap(rows)
		if err != nil {
			return nil, dberr.Classify("get unresolved gaps scan", err)
		}
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

// GapsByPriority returns unresolved gaps whose per-gap priority (the same
// frequency/depth rule GapClusters applies to clusters, applied here to a
// single gap's own frequency and exploration depth) matches priority
// (spec §6 public operation gaps_by_priority).
func (r *KnowledgeGapsRepo) GapsByPriority(ctx context.Context, priority types.Priority) ([]types.KnowledgeGap, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+gapColumns+` FROM knowledge_gaps WHERE resolved = FALSE
	`)
	if err != nil {
		return nil, dberr.Classify("gaps by priority", err)
	}
	defer rows.Close()

	var gaps []types.KnowledgeGap
	for rows.Next() {
		g, err := scanGap(rows)
		if err != nil {
			return nil, dberr.Classify("gaps by priority scan", err)
		}
		if clusterPriority(g.Frequency, g.ExplorationDepth) == priority {
			gaps = append(gaps, g)
		}
	}
	return gaps, rows.Err()
}

// BatchProcessGapsFromConversations detects gap candidates from a
// conversation's messages and persists them through BatchSave, wiring the
// Knowledge Gap Detector analyzer directly into the repository layer for
// callers that want detection and persistence in one call (spec §6
// public operation batch_process_gaps_from_conversations).
func (r *KnowledgeGapsRepo) BatchProcessGapsFromConversations(ctx context.Context, messages []types.Message) (BatchResult, error) {
	candidates := analyzer.DetectGaps(messages)
	if len(candidates) == 0 {
		return BatchResult{}, nil
	}
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
	return r.BatchSave(ctx, gaps)
}

// MarkResolved marks a gap resolved with the given resolution metadata.
func (r *KnowledgeGapsRepo) MarkResolved(ctx context.Context, gapID, resolutionConversation string, resolutionDate int64, quality float64) error {
	stmt, err := r.Prepare(ctx, "mark_resolved", `
		UPDATE knowledge_gaps SET resolved = TRUE, resolution_conversation_id = ?,
			resolution_date = ?, resolution_quality = ?, updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return err
	}
	res, err := stmt.ExecContext(ctx, resolutionConversation, resolutionDate, quality, time.Now().UnixMilli(), gapID)
	if err != nil {
		return dberr.Classify("mark gap resolved", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

