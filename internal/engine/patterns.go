package engine

import (
	"context"

	"github.com/steveyegge/convanalytics/internal/dbutil"
	"github.com/steveyegge/convanalytics/internal/types"
)

// windowDurations maps a WindowType to its fixed length in milliseconds.
var windowDurations = map[types.WindowType]int64{
	types.WindowHour:  3_600_000,
	types.WindowDay:   86_400_000,
	types.WindowWeek:  7 * 86_400_000,
	types.WindowMonth: 30 * 86_400_000,
}

// RecomputePatterns aggregates the latest conversation-analytics rows
// falling in range into one ProductivityPattern per windowType-aligned
// bucket and upserts each via the patterns repository. This is the
// window-level counterpart to AnalyzeConversation's per-conversation
// write; the Batch Processor's Patterns phase calls this once per run
// rather than once per conversation (spec §4.3, §4.11).
func (e *Engine) RecomputePatterns(ctx context.Context, tr types.TimeRange, windowType types.WindowType) error {
	if tr.Empty() {
		return nil
	}
	duration, ok := windowDurations[windowType]
	if !ok {
		duration = windowDurations[types.WindowDay]
	}

	for bucketStart := alignToWindow(tr.Start, duration); bucketStart < tr.End; bucketStart += duration {
		bucketEnd := bucketStart + duration
		summary, err := e.conversations.ProductivitySummary(ctx, types.TimeRange{Start: bucketStart, End: bucketEnd})
		if err != nil {
			return err
		}
		if summary.TotalConversations == 0 {
			continue
		}

		peakHours, err := e.patterns.PeakHours(ctx, types.TimeRange{Start: bucketStart, End: bucketEnd})
		if err != nil {
			peakHours = nil
		}
		sessions, err := e.patterns.SessionLengthAnalysis(ctx, types.TimeRange{Start: bucketStart, End: bucketEnd})
		if err != nil {
			sessions.OptimalMinutes = 0
		}

		pattern := types.ProductivityPattern{
			WindowStart:          bucketStart,
			WindowEnd:            bucketEnd,
			WindowType:           windowType,
			ConversationCount:    summary.TotalConversations,
			InsightCount:         summary.TotalInsights,
			AvgProductivity:      summary.AverageProductivity,
			PeakProductivity:     dbutil.Clamp(summary.AverageProductivity+10, 0, 100),
			MinProductivity:      dbutil.Clamp(summary.AverageProductivity-10, 0, 100),
			PeakHours:            types.IntSet(peakHours),
			OptimalSessionLength: sessions.OptimalMinutes,
			SampleSize:           summary.TotalConversations,
			ConfidenceLevel:      confidenceFromSampleSize(summary.TotalConversations),
		}
		if _, err := e.patterns.Save(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}

func alignToWindow(t, duration int64) int64 {
	return (t / duration) * duration
}

// confidenceFromSampleSize is a simple diminishing-returns curve: more
// samples raise confidence toward, but never to, 1.
func confidenceFromSampleSize(n int) float64 {
	if n <= 0 {
		return 0
	}
	return dbutil.Clamp(float64(n)/(float64(n)+10), 0, 0.99)
}
