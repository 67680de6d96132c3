package analyzer

import (
	"strings"

	"github.com/steveyegge/convanalytics/internal/types"
)

// ProductivityResult is the Productivity Analyzer's output (spec §4.7).
type ProductivityResult struct {
	ProductivityScore  float64 // 0-100
	EngagementScore    float64 // 0-100
	SessionDurationMs   int64
	ActiveTimeMs        int64
	AverageResponseLatencyMs float64
	QuestionQualityScore float64 // 0-100
	EffectivenessScore  float64 // 0-100
	InsightCount        int
	BreakthroughCount   int
	PeakPeriodStart     int64
	PeakPeriodEnd       int64
}

var insightMarkers = []string{"i understand now", "that makes sense", "ah, i see", "got it", "that clarifies"}
var breakthroughMarkers = []string{"breakthrough", "finally", "that solves it", "eureka", "now it works"}

// AnalyzeProductivity computes engagement, output density, and
// effectiveness signals from a message sequence (spec §4.7).
func AnalyzeProductivity(messages []types.Message) ProductivityResult {
	if len(messages) == 0 {
		return ProductivityResult{}
	}

	var questionCount int
	var assistantLenSum float64
	var assistantCount int
	var alternations int
	var insights, breakthroughs int
	var latencySum float64
	var latencyCount int

	for i, m := range messages {
		lower := strings.ToLower(m.Content)
		if strings.Contains(m.Content, "?") {
			questionCount++
		}
		if m.Role == types.RoleAssistant {
			assistantLenSum += float64(len(m.Content))
			assistantCount++
		}
		if i > 0 && messages[i-1].Role != m.Role {
			alternations++
		}
		if i > 0 {
			latencySum += float64(m.CreatedAt - messages[i-1].CreatedAt)
			latencyCount++
		}
		for _, marker := range insightMarkers {
			if strings.Contains(lower, marker) {
				insights++
				break
			}
		}
		for _, marker := range breakthroughMarkers {
			if strings.Contains(lower, marker) {
				breakthroughs++
				break
			}
		}
	}

	questionDensity := float64(questionCount) / float64(len(messages))
	avgAssistantLen := 0.0
	if assistantCount > 0 {
		avgAssistantLen = assistantLenSum / float64(assistantCount)
	}
	alternationRate := 0.0
	if len(messages) > 1 {
		alternationRate = float64(alternations) / float64(len(messages)-1)
	}

	// Engagement: question density (30%) + avg assistant response length,
	// normalized against a 500-char reference (30%) + role-alternation
	// rate (40%) (spec §4.7).
	engagement := clamp(questionDensity*100*0.3+clamp(avgAssistantLen/500*100, 0, 100)*0.3+alternationRate*100*0.4, 0, 100)

	questionQuality := clamp(questionDensity*150, 0, 100)
	effectiveness := clamp(float64(insights+breakthroughs)/float64(len(messages))*200, 0, 100)
	productivity := clamp(engagement*0.4+questionQuality*0.3+effectiveness*0.3, 0, 100)

	result := ProductivityResult{
		ProductivityScore:    productivity,
		EngagementScore:      engagement,
		SessionDurationMs:    messages[len(messages)-1].CreatedAt - messages[0].CreatedAt,
		QuestionQualityScore: questionQuality,
		EffectivenessScore:   effectiveness,
		InsightCount:         insights,
		BreakthroughCount:    breakthroughs,
		PeakPeriodStart:      messages[0].CreatedAt,
		PeakPeriodEnd:        messages[len(messages)-1].CreatedAt,
	}
	if latencyCount > 0 {
		result.AverageResponseLatencyMs = latencySum / float64(latencyCount)
	}
	result.ActiveTimeMs = activeTime(messages)
	return result
}

// activeTime sums inter-message gaps under a 10-minute idle threshold,
// excluding long pauses from the "active" duration.
func activeTime(messages []types.Message) int64 {
	const idleThresholdMs = 10 * 60 * 1000
	var active int64
	for i := 1; i < len(messages); i++ {
		gap := messages[i].CreatedAt - messages[i-1].CreatedAt
		if gap > 0 && gap < idleThresholdMs {
			active += gap
		}
	}
	return active
}
