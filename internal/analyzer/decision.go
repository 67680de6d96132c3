package analyzer

import (
	"strings"

	"github.com/steveyegge/convanalytics/internal/types"
)

// DecisionCandidate is the Decision Tracker's per-decision output before
// persistence (spec §4.9).
type DecisionCandidate struct {
	Summary                string
	DecisionType            types.DecisionType
	ConversationIDs         []string
	DecisionMadeAt          int64
	ClarityScore            float64
	ConfidenceLevel         float64
	InformationCompleteness float64
	AlternativesConsidered  int
	RiskAssessed            bool
	Tags                    []string
	Priority                types.Priority
}

var decisionMarkers = []string{"we decided", "i decided", "let's go with", "we'll use", "decision:", "going with", "chose to"}
var alternativeMarkers = []string{"instead of", "versus", "compared to", "or we could", "alternatively"}
var riskMarkers = []string{"risk", "trade-off", "tradeoff", "downside", "caveat"}
var highConfidenceMarkers = []string{"definitely", "certainly", "clearly", "confirmed"}
var lowConfidenceMarkers = []string{"maybe", "might", "possibly", "not sure", "unsure"}

// DetectDecisions extracts decision events from the message sequence in
// chronological order (spec §4.9). Clarity, confidence, and priority are
// keyword heuristics applied only when not otherwise supplied by a
// caller — this analyzer never receives caller-supplied signals, so it
// always computes them.
func DetectDecisions(conversationID string, messages []types.Message) []DecisionCandidate {
	var decisions []DecisionCandidate

	for _, m := range messages {
		lower := strings.ToLower(m.Content)
		marker, found := firstMatch(lower, decisionMarkers)
		if !found {
			continue
		}

		summary := extractSummary(m.Content, marker)
		decisions = append(decisions, DecisionCandidate{
			Summary:                 summary,
			DecisionType:            classifyDecisionType(lower),
			ConversationIDs:         []string{conversationID},
			DecisionMadeAt:          m.CreatedAt,
			ClarityScore:            heuristicDecisionClarity(lower),
			ConfidenceLevel:         heuristicConfidence(lower),
			InformationCompleteness: heuristicCompleteness(lower),
			AlternativesConsidered:  countMatches(lower, alternativeMarkers),
			RiskAssessed:            containsAny(lower, riskMarkers),
			Tags:                    extractTags(lower),
			Priority:                heuristicPriority(lower),
		})
	}
	return decisions
}

func firstMatch(lower string, markers []string) (string, bool) {
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}
	return "", false
}

func containsAny(lower string, markers []string) bool {
	_, found := firstMatch(lower, markers)
	return found
}

func countMatches(lower string, markers []string) int {
	count := 0
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			count++
		}
	}
	return count
}

// extractSummary takes the text from the decision marker to the end of
// its sentence (the next '.', '!' or newline), trimmed to 200 bytes.
func extractSummary(content, marker string) string {
	idx := strings.Index(strings.ToLower(content), marker)
	if idx < 0 {
		return strings.TrimSpace(content)
	}
	rest := content[idx:]
	if end := strings.IndexAny(rest, ".!\n"); end > 0 {
		rest = rest[:end]
	}
	summary := strings.TrimSpace(rest)
	if len(summary) > 200 {
		summary = summary[:200]
	}
	return summary
}

func classifyDecisionType(lower string) types.DecisionType {
	switch {
	case strings.Contains(lower, "strategy") || strings.Contains(lower, "roadmap") || strings.Contains(lower, "long-term"):
		return types.DecisionStrategic
	case strings.Contains(lower, "deploy") || strings.Contains(lower, "config") || strings.Contains(lower, "schedule"):
		return types.DecisionOperational
	case strings.Contains(lower, "i feel") || strings.Contains(lower, "personally"):
		return types.DecisionPersonal
	default:
		return types.DecisionTactical
	}
}

func heuristicDecisionClarity(lower string) float64 {
	score := 50.0
	for _, kw := range []string{"decided", "because", "therefore", "concluded"} {
		if strings.Contains(lower, kw) {
			score += 10
		}
	}
	for _, kw := range lowConfidenceMarkers {
		if strings.Contains(lower, kw) {
			score -= 10
		}
	}
	return clamp(score, 0, 100)
}

func heuristicConfidence(lower string) float64 {
	score := 50.0
	for _, kw := range highConfidenceMarkers {
		if strings.Contains(lower, kw) {
			score += 15
		}
	}
	for _, kw := range lowConfidenceMarkers {
		if strings.Contains(lower, kw) {
			score -= 15
		}
	}
	return clamp(score, 0, 100)
}

func heuristicCompleteness(lower string) float64 {
	score := 40.0
	if containsAny(lower, alternativeMarkers) {
		score += 20
	}
	if containsAny(lower, riskMarkers) {
		score += 20
	}
	if strings.Contains(lower, "data") || strings.Contains(lower, "research") || strings.Contains(lower, "tested") {
		score += 20
	}
	return clamp(score, 0, 100)
}

func heuristicPriority(lower string) types.Priority {
	switch {
	case strings.Contains(lower, "urgent") || strings.Contains(lower, "critical") || strings.Contains(lower, "asap"):
		return types.PriorityCritical
	case strings.Contains(lower, "important") || strings.Contains(lower, "soon"):
		return types.PriorityHigh
	case strings.Contains(lower, "minor") || strings.Contains(lower, "eventually"):
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}

func extractTags(lower string) []string {
	var tags []string
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			tags = append(tags, kw)
		}
	}
	return tags
}
