// Package batch drives the Engine's phased pipeline over large
// conversation-id sets with memory, concurrency, and cache controls
// (spec §4.11), grounded on the teacher's internal/eventbus channel-fanout
// idiom for streaming progress rather than a callback.
package batch

// Phase names the five ordered stages a Processor run passes through.
type Phase string

const (
	PhaseLoad      Phase = "load"
	PhaseAnalytics Phase = "analytics"
	PhasePatterns  Phase = "patterns"
	PhaseGaps      Phase = "gaps"
	PhaseDecisions Phase = "decisions"
)

// Progress is one snapshot emitted on a Processor's progress channel
// (spec §4.11: "{phase, processed, total, failed, current_operation,
// estimated_time_remaining_ms, memory_usage_mb, throughput_per_second}").
type Progress struct {
	Phase                    Phase
	Processed                int
	Total                    int
	Failed                   int
	CurrentOperation         string
	EstimatedTimeRemainingMs int64
	MemoryUsageMB            float64
	ThroughputPerSecond      float64
}
