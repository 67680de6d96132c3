package analyzer

import (
	"regexp"
	"strings"

	"github.com/steveyegge/convanalytics/internal/types"
)

// GapCandidate is the Knowledge Gap Detector's per-gap output before
// persistence (spec §4.8).
type GapCandidate struct {
	GapType           types.GapType
	Content           string
	NormalizedContent string
	Frequency         int
	FirstOccurrence   int64
	LastOccurrence    int64
	ExplorationDepth  float64
}

var uncertaintyMarkers = []string{"i don't understand", "not sure", "confused about", "unclear on", "what does", "what is", "how does", "why does"}
var complexityKeywords = []string{"architecture", "algorithm", "distributed", "concurrency", "consensus", "optimization", "protocol"}
var punctuationPattern = regexp.MustCompile(`[^a-z0-9\s]`)
var whitespacePattern = regexp.MustCompile(`\s+`)

// NormalizeContent lowercases, strips punctuation, and collapses
// whitespace — a gap's identity key (spec §3, glossary "Normalized
// content").
func NormalizeContent(s string) string {
	lower := strings.ToLower(s)
	stripped := punctuationPattern.ReplaceAllString(lower, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(stripped, " "))
}

// DetectGaps extracts candidate gaps (unresolved questions, recurring
// topics lacking depth, explicit uncertainty markers) and merges
// duplicate normalized content within the same pass (spec §4.8).
func DetectGaps(messages []types.Message) []GapCandidate {
	if len(messages) == 0 {
		return nil
	}

	flow := AnalyzeFlow(messages)
	var raw []GapCandidate

	for _, m := range messages {
		if m.Role != types.RoleUser {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		lower := strings.ToLower(content)

		gapType, isGap := classifyGap(content, lower)
		if !isGap {
			continue
		}

		raw = append(raw, GapCandidate{
			GapType:           gapType,
			Content:           content,
			NormalizedContent: NormalizeContent(content),
			Frequency:         1,
			FirstOccurrence:   m.CreatedAt,
			LastOccurrence:    m.CreatedAt,
			ExplorationDepth:  explorationDepth(lower, flow.DepthScore),
		})
	}

	return mergeGapCandidates(raw)
}

func classifyGap(content, lower string) (types.GapType, bool) {
	if strings.HasSuffix(strings.TrimSpace(content), "?") {
		return types.GapQuestion, true
	}
	for _, marker := range uncertaintyMarkers {
		if strings.Contains(lower, marker) {
			if strings.Contains(lower, "how") || strings.Contains(lower, "skill") || strings.Contains(lower, "learn") {
				return types.GapSkill, true
			}
			return types.GapConcept, true
		}
	}
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			return types.GapTopic, true
		}
	}
	return "", false
}

// explorationDepth estimates 0-100 depth from content-complexity keyword
// hits and the conversation's overall depth score (spec §4.8).
func explorationDepth(lower string, conversationDepth float64) float64 {
	hits := 0
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	score := conversationDepth*0.6 + float64(hits)*10
	return clamp(score, 0, 100)
}

// mergeGapCandidates merges identical (normalized_content, gap_type)
// pairs within a single detection pass by summing frequencies and taking
// min/max of the occurrence window (spec §4.8).
func mergeGapCandidates(candidates []GapCandidate) []GapCandidate {
	type key struct {
		normalized string
		gapType    types.GapType
	}
	order := make([]key, 0, len(candidates))
	merged := make(map[key]GapCandidate, len(candidates))

	for _, c := range candidates {
		k := key{normalized: c.NormalizedContent, gapType: c.GapType}
		existing, ok := merged[k]
		if !ok {
			order = append(order, k)
			merged[k] = c
			continue
		}
		existing.Frequency += c.Frequency
		if c.FirstOccurrence < existing.FirstOccurrence {
			existing.FirstOccurrence = c.FirstOccurrence
		}
		if c.LastOccurrence > existing.LastOccurrence {
			existing.LastOccurrence = c.LastOccurrence
		}
		if c.ExplorationDepth > existing.ExplorationDepth {
			existing.ExplorationDepth = c.ExplorationDepth
		}
		merged[k] = existing
	}

	out := make([]GapCandidate, 0, len(order))
	for _, k := range order {
		out = append(out, merged[k])
	}
	return out
}
