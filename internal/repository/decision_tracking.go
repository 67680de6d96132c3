package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/steveyegge/convanalytics/internal/dberr"
	"github.com/steveyegge/convanalytics/internal/types"
)

// DecisionTrackingRepo persists decision lifecycle records (spec §4.5).
// Grounded on internal/storage/sqlite/decision_points.go's CRUD idiom,
// translated to the MySQL dialect.
type DecisionTrackingRepo struct {
	*Base
}

func NewDecisionTrackingRepo(db *sql.DB, log *zap.Logger) *DecisionTrackingRepo {
	return &DecisionTrackingRepo{Base: NewBase(db, "decision_tracking", log)}
}

// Save inserts with status "decided".
func (r *DecisionTrackingRepo) Save(ctx context.Context, d types.DecisionTracking) (string, error) {
	id := uuid.NewString()
	now := time.Now().UnixMilli()

	conversationIDs, _ := d.ConversationIDs.MarshalText()
	successFactors, _ := d.SuccessFactors.MarshalText()
	failureFactors, _ := d.FailureFactors.MarshalText()
	tags, _ := d.Tags.MarshalText()

	var decisionType any
	if d.DecisionType != nil {
		decisionType = string(*d.DecisionType)
	}
	priority := d.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}

	stmt, err := r.Prepare(ctx, "save", `
		INSERT INTO decision_tracking (
			id, decision_summary, decision_type, conversation_ids,
			problem_identified_at, options_considered_at, decision_made_at,
			implementation_started_at, outcome_assessed_at, clarity_score,
			confidence_level, consensus_level, reversal_count, modification_count,
			outcome_score, information_completeness, stakeholder_count,
			alternatives_considered, risk_assessed, success_factors, failure_factors,
			lessons_learned, tags, priority, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	_, err = stmt.ExecContext(ctx, id, d.DecisionSummary, decisionType, string(conversationIDs),
		d.ProblemIdentifiedAt, d.OptionsConsideredAt, d.DecisionMadeAt,
		d.ImplementationStartedAt, d.OutcomeAssessedAt, d.ClarityScore,
		d.ConfidenceLevel, d.ConsensusLevel, d.ReversalCount, d.ModificationCount,
		d.OutcomeScore, d.InformationCompleteness, d.StakeholderCount,
		d.AlternativesConsidered, d.RiskAssessed, string(successFactors), string(failureFactors),
		d.LessonsLearned, string(tags), string(priority), string(types.StatusDecided), now, now)
	if err != nil {
		return "", dberr.Classify("save decision", err)
	}
	return id, nil
}

// UpdateOutcome sets the outcome score and assessment timestamp and
// transitions status to "assessed".
func (r *DecisionTrackingRepo) UpdateOutcome(ctx context.Context, decisionID string, outcomeScore float64, assessedAt int64) error {
	stmt, err := r.Prepare(ctx, "update_outcome", `
		UPDATE decision_tracking SET outcome_score = ?, outcome_assessed_at = ?, status = ?, updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return err
	}
	res, err := stmt.ExecContext(ctx, outcomeScore, assessedAt, string(types.StatusAssessed), time.Now().UnixMilli(), decisionID)
	if err != nil {
		return dberr.Classify("update decision outcome", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

// MarkReversed increments reversal_count, transitions to "reversed", and
// appends reason to lessons_learned delimited by "; " (spec §4.5).
func (r *DecisionTrackingRepo) MarkReversed(ctx context.Context, decisionID, reason string) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		var lessonsLearned string
		row := tx.QueryRowContext(ctx, `SELECT lessons_learned FROM decision_tracking WHERE id = ?`, decisionID)
		if err := row.Scan(&lessonsLearned); err != nil {
			if err == sql.ErrNoRows {
				return dberr.ErrNotFound
			}
			return dberr.Classify("mark reversed lookup", err)
		}

		updated := reason
		if lessonsLearned != "" {
			updated = lessonsLearned + "; " + reason
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE decision_tracking SET reversal_count = reversal_count + 1, status = ?,
				lessons_learned = ?, reversed_at = ?, updated_at = ?
			WHERE id = ?
		`, string(types.StatusReversed), updated, time.Now().UnixMilli(), time.Now().UnixMilli(), decisionID)
		if err != nil {
			return dberr.Classify("mark reversed", err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return dberr.ErrNotFound
		}
		return nil
	})
}

// DecisionAnalysis is the result of DecisionAnalysis(range).
type DecisionAnalysis struct {
	TotalDecisions                    int
	AverageTimeToDecisionHours        float64
	AverageTimeToImplementationHours  float64
	ReversalRatePercent               float64
	TopSuccessFactors                 []string
	CommonPitfalls                    []string
	WeeklyVelocity                    float64
}

// DecisionAnalysis returns counts, averages, time-to-decision/implementation,
// reversal rate, top success factors, common pitfalls, and weekly velocity
// (spec §4.5).
func (r *DecisionTrackingRepo) DecisionAnalysis(ctx context.Context, tr types.TimeRange) (DecisionAnalysis, error) {
	if tr.Empty() {
		return DecisionAnalysis{}, nil
	}

	rows, err := r.DB().QueryContext(ctx, `
		SELECT problem_identified_at, decision_made_at, implementation_started_at,
			reversal_count, outcome_score, success_factors, failure_factors
		FROM decision_tracking WHERE decision_made_at >= ? AND decision_made_at < ?
	`, tr.Start, tr.End)
	if err != nil {
		return DecisionAnalysis{}, dberr.Classify("decision analysis", err)
	}
	defer rows.Close()

	var total, reversed int
	var decisionHoursSum, decisionHoursCount float64
	var implHoursSum, implHoursCount float64
	successCounts := make(map[string]int)
	pitfallCounts := make(map[string]int)
	var earliest, latest int64

	for rows.Next() {
		var problemAt, decisionAt, implAt sql.NullInt64
		var reversalCount int
		var outcomeScore sql.NullFloat64
		var successText, failureText sql.NullString

		if err := rows.Scan(&problemAt, &decisionAt, &implAt, &reversalCount, &outcomeScore, &successText, &failureText); err != nil {
			return DecisionAnalysis{}, dberr.Classify("decision analysis scan", err)
		}
		total++
		if reversalCount > 0 {
			reversed++
		}
		if decisionAt.Valid {
			if earliest == 0 || decisionAt.Int64 < earliest {
				earliest = decisionAt.Int64
			}
			if decisionAt.Int64 > latest {
				latest = decisionAt.Int64
			}
		}
		if problemAt.Valid && decisionAt.Valid {
			decisionHoursSum += float64(decisionAt.Int64-problemAt.Int64) / 3_600_000
			decisionHoursCount++
		}
		if decisionAt.Valid && implAt.Valid {
			implHoursSum += float64(implAt.Int64-decisionAt.Int64) / 3_600_000
			implHoursCount++
		}

		successFactors, _ := types.StringSliceFromText(successText.String)
		failureFactors, _ := types.StringSliceFromText(failureText.String)
		if outcomeScore.Valid && outcomeScore.Float64 >= 70 {
			for _, f := range successFactors {
				successCounts[f]++
			}
		}
		if (outcomeScore.Valid && outcomeScore.Float64 < 50) || reversalCount > 0 {
			for _, f := range failureFactors {
				pitfallCounts[f]++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return DecisionAnalysis{}, dberr.Classify("decision analysis rows", err)
	}

	analysis := DecisionAnalysis{TotalDecisions: total}
	if decisionHoursCount > 0 {
		analysis.AverageTimeToDecisionHours = decisionHoursSum / decisionHoursCount
	}
	if implHoursCount > 0 {
		analysis.AverageTimeToImplementationHours = implHoursSum / implHoursCount
	}
	if total > 0 {
		analysis.ReversalRatePercent = float64(reversed) / float64(total) * 100
	}
	if latest > earliest {
		weeks := float64(latest-earliest) / (7 * 24 * 3_600_000)
		if weeks > 0 {
			analysis.WeeklyVelocity = float64(total) / weeks
		}
	}
	analysis.TopSuccessFactors = rankByCount(successCounts)
	analysis.CommonPitfalls = rankByCount(pitfallCounts)
	return analysis, nil
}

func rankByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && counts[keys[j]] > counts[keys[j-1]]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// DecisionPattern summarizes decision volume and mix for one priority
// bucket within a time range (spec §6 public operation decision_patterns).
type DecisionPattern struct {
	Priority      types.Priority
	Count         int
	ReversalCount int
}

// DecisionPatterns groups decisions made in range by priority, returning
// per-priority counts and reversal counts so callers can see which
// priority tier is least stable.
func (r *DecisionTrackingRepo) DecisionPatterns(ctx context.Context, tr types.TimeRange) ([]DecisionPattern, error) {
	if tr.Empty() {
		return nil, nil
	}
	rows, err := r.DB().QueryContext(ctx, `
		SELECT priority, COUNT(*), SUM(CASE WHEN reversal_count > 0 THEN 1 ELSE 0 END)
		FROM decision_tracking
		WHERE decision_made_at >= ? AND decision_made_at < ?
		GROUP BY priority
	`, tr.Start, tr.End)
	if err != nil {
		return nil, dberr.Classify("decision patterns", err)
	}
	defer rows.Close()

	var patterns []DecisionPattern
	for rows.Next() {
		var priority string
		var p DecisionPattern
		if err := rows.Scan(&priority, &p.Count, &p.ReversalCount); err != nil {
			return nil, dberr.Classify("decision patterns scan", err)
		}
		p.Priority = types.Priority(priority)
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// DecisionsNeedingFollowUp selects status in {decided, implemented} older
// than the cutoff whose outcome has not been recorded (spec §4.5).
func (r *DecisionTrackingRepo) DecisionsNeedingFollowUp(ctx context.Context, daysOld int) ([]string, error) {
	cutoff := time.Now().AddDate(0, 0, -daysOld).UnixMilli()
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id FROM decision_tracking
		WHERE status IN (?, ?) AND decision_made_at < ? AND outcome_assessed_at IS NULL
	`, string(types.StatusDecided), string(types.StatusImplemented), cutoff)
	if err != nil {
		return nil, dberr.Classify("decisions needing follow up", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dberr.Classify("decisions needing follow up scan", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BatchTrackDecisions saves a batch of decisions, applying the
// deterministic keyword heuristic to any decision whose caller did not
// supply a clarity score (spec §4.5). The heuristic never overwrites a
// caller-supplied score.
func (r *DecisionTrackingRepo) BatchTrackDecisions(ctx context.Context, decisions []types.DecisionTracking, suppliedClarity []*float64) (BatchResult, error) {
	var result BatchResult
	for i, d := range decisions {
		var supplied *float64
		if i < len(suppliedClarity) {
			supplied = suppliedClarity[i]
		}
		d.ClarityScore = heuristicClarity(d.DecisionSummary, supplied)

		if _, err := r.Save(ctx, d); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Inserted++
	}
	return result, nil
}

// heuristicClarity applies the ingestion-time keyword heuristic (spec
// §4.5) when the caller does not supply a clarity signal. Never overwrites
// a caller-supplied score.
func heuristicClarity(text string, supplied *float64) float64 {
	if supplied != nil {
		return *supplied
	}
	lower := strings.ToLower(text)
	score := 50.0
	for _, kw := range []string{"decided", "because", "therefore", "concluded"} {
		if strings.Contains(lower, kw) {
			score += 10
		}
	}
	for _, kw := range []string{"maybe", "unsure", "not sure", "perhaps"} {
		if strings.Contains(lower, kw) {
			score -= 10
		}
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
