package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/steveyegge/convanalytics/internal/dberr"
	"github.com/steveyegge/convanalytics/internal/types"
)

// ProductivityPatternsRepo stores windowed patterns keyed by
// (window_type, window_start) — spec §4.3.
type ProductivityPatternsRepo struct {
	*Base
}

func NewProductivityPatternsRepo(db *sql.DB, log *zap.Logger) *ProductivityPatternsRepo {
	return &ProductivityPatternsRepo{Base: NewBase(db, "productivity_patterns", log)}
}

// SessionLengthAnalysis is the result of SessionLengthAnalysis(range).
type SessionLengthAnalysis struct {
	OptimalMinutes int
	AverageMinutes float64
	// Distribution maps a 15-minute bucket (minutes, bucket floor) to the
	// mean productivity observed in that bucket.
	Distribution map[int]float64
}

// Save upserts a pattern row keyed on (window_type, window_start).
func (r *ProductivityPatternsRepo) Save(ctx context.Context, p types.ProductivityPattern) (string, error) {
	records := []map[string]any{{
		"id":                     uuid.NewString(),
		"window_start":           p.WindowStart,
		"window_end":             p.WindowEnd,
		"window_type":            string(p.WindowType),
		"conversation_count":     p.ConversationCount,
		"message_count":          p.MessageCount,
		"decision_count":         p.DecisionCount,
		"insight_count":          p.InsightCount,
		"avg_productivity":       p.AvgProductivity,
		"peak_productivity":      p.PeakProductivity,
		"min_productivity":       p.MinProductivity,
		"peak_hours":             mustMarshalIntSet(p.PeakHours),
		"optimal_session_length": p.OptimalSessionLength,
		"sample_size":            p.SampleSize,
		"confidence_level":       p.ConfidenceLevel,
		"updated_at":             time.Now().UnixMilli(),
	}}
	updateCols := []string{
		"window_end", "conversation_count", "message_count", "decision_count",
		"insight_count", "avg_productivity", "peak_productivity", "min_productivity",
		"peak_hours", "optimal_session_length", "sample_size", "confidence_level", "updated_at",
	}
	result, err := r.BatchUpsert(ctx, "productivity_patterns", toRecords(records), []string{"window_type", "window_start"}, BatchUpsertOptions{UpdateColumns: updateCols})
	if err != nil {
		return "", err
	}
	if result.Failed > 0 {
		return "", dberr.Classify("save productivity pattern", result.Errors[0])
	}
	return records[0]["id"].(string), nil
}

// PeakHours returns the hours (0-23) that most frequently appear in
// peak_hours across windows falling in range, ordered by frequency desc.
func (r *ProductivityPatternsRepo) PeakHours(ctx context.Context, tr types.TimeRange) ([]int, error) {
	if tr.Empty() {
		return nil, nil
	}
	rows, err := r.DB().QueryContext(ctx, `
		SELECT peak_hours FROM productivity_patterns
		WHERE window_start >= ? AND window_start < ?
	`, tr.Start, tr.End)
	if err != nil {
		return nil, dberr.Classify("peak hours", err)
	}
	defer rows.Close()

	freq := make(map[int]int)
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return nil, dberr.Classify("peak hours scan", err)
		}
		hours, err := types.IntSetFromText(text.String)
		if err != nil {
			continue
		}
		for _, h := range hours {
			freq[h]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify("peak hours rows", err)
	}

	ordered := rankByFrequency(freq)
	return ordered, nil
}

// SessionLengthAnalysis buckets optimal_session_length into 15-minute
// buckets and returns the bucket with the highest mean productivity
// across windows in range (spec §4.3).
func (r *ProductivityPatternsRepo) SessionLengthAnalysis(ctx context.Context, tr types.TimeRange) (SessionLengthAnalysis, error) {
	if tr.Empty() {
		return SessionLengthAnalysis{Distribution: map[int]float64{}}, nil
	}
	rows, err := r.DB().QueryContext(ctx, `
		SELECT optimal_session_length, avg_productivity FROM productivity_patterns
		WHERE window_start >= ? AND window_start < ?
	`, tr.Start, tr.End)
	if err != nil {
		return SessionLengthAnalysis{}, dberr.Classify("session length analysis", err)
	}
	defer rows.Close()

	bucketSum := make(map[int]float64)
	bucketCount := make(map[int]int)
	var totalMinutes float64
	count := 0

	for rows.Next() {
		var minutes int
		var productivity float64
		if err := rows.Scan(&minutes, &productivity); err != nil {
			return SessionLengthAnalysis{}, dberr.Classify("session length scan", err)
		}
		bucket := (minutes / 15) * 15
		bucketSum[bucket] += productivity
		bucketCount[bucket]++
		totalMinutes += float64(minutes)
		count++
	}
	if err := rows.Err(); err != nil {
		return SessionLengthAnalysis{}, dberr.Classify("session length rows", err)
	}

	distribution := make(map[int]float64, len(bucketSum))
	best, bestMean := 0, -1.0
	for bucket, sum := range bucketSum {
		mean := sum / float64(bucketCount[bucket])
		distribution[bucket] = mean
		if mean > bestMean {
			bestMean = mean
			best = bucket
		}
	}

	analysis := SessionLengthAnalysis{OptimalMinutes: best, Distribution: distribution}
	if count > 0 {
		analysis.AverageMinutes = totalMinutes / float64(count)
	}
	return analysis, nil
}

// QuestionPatterns is a placeholder aggregation surface over the
// question_quality dimension; productivity patterns do not themselves
// carry question text, so this reports the avg/peak/min productivity of
// windows in range as the nearest available proxy.
func (r *ProductivityPatternsRepo) QuestionPatterns(ctx context.Context, tr types.TimeRange) (avg, peak, min float64, err error) {
	if tr.Empty() {
		return 0, 0, 0, nil
	}
	row := r.DB().QueryRowContext(ctx, `
		SELECT COALESCE(AVG(avg_productivity), 0), COALESCE(MAX(peak_productivity), 0), COALESCE(MIN(min_productivity), 0)
		FROM productivity_patterns WHERE window_start >= ? AND window_start < ?
	`, tr.Start, tr.End)
	if scanErr := row.Scan(&avg, &peak, &min); scanErr != nil {
		return 0, 0, 0, dberr.Classify("question patterns", scanErr)
	}
	return avg, peak, min, nil
}

func mustMarshalIntSet(s types.IntSet) string {
	text, err := s.MarshalText()
	if err != nil {
		return ""
	}
	return string(text)
}

func rankByFrequency(freq map[int]int) []int {
	hours := make([]int, 0, len(freq))
	for h := range freq {
		hours = append(hours, h)
	}
	for i := 1; i < len(hours); i++ {
		for j := i; j > 0 && freq[hours[j]] > freq[hours[j-1]]; j-- {
			hours[j], hours[j-1] = hours[j-1], hours[j]
		}
	}
	return hours
}
