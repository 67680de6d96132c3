// Package analyzer implements the four pure analyzers (spec §4.6-§4.9):
// each is a function from a conversation and its ordered message sequence
// to a value-typed metric record. Analyzers hold no persistent state.
package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/steveyegge/convanalytics/internal/dbutil"
	"github.com/steveyegge/convanalytics/internal/types"
)

// FlowResult is the Flow Analyzer's output (spec §4.6).
type FlowResult struct {
	TopicCount          int
	TopicTransitions     int
	DepthScore           float64 // 0-100
	CircularityIndex     float64 // 0-1
	CoherenceScore       float64 // 0-100
	ProgressionScore     float64 // 0-100
	AverageTopicDuration float64 // messages per topic
	VocabularyRichness   float64 // 0-1, unique words / total words
	ResolutionTime       *int64  // ms, time from first to last message if resolved
	Topics               []string
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {},
	"from": {}, "have": {}, "what": {}, "about": {}, "would": {}, "could": {},
	"should": {}, "there": {}, "their": {}, "which": {}, "when": {}, "where": {},
}

var technicalTermPattern = regexp.MustCompile(`(?i)\b(api|database|server|client|cache|queue|thread|mutex|latency|throughput|kubernetes|docker|schema|index|partition|replica|consensus)\w*\b`)
var businessPatternRe = regexp.MustCompile(`(?i)\b(revenue|customer|stakeholder|budget|roadmap|deadline|milestone|deliverable)\w*\b`)
var wordPattern = regexp.MustCompile(`[a-zA-Z']+`)

// AnalyzeFlow derives topic and depth metrics from a message sequence.
// Returns a zero FlowResult for an empty sequence (spec §8 boundary
// behavior: "empty message sequence -> analyze_conversation writes no
// rows").
func AnalyzeFlow(messages []types.Message) FlowResult {
	if len(messages) == 0 {
		return FlowResult{}
	}

	topicSeq := make([]string, 0, len(messages))
	topicScores := make(map[string]float64)
	vocabulary := make(map[string]struct{})
	totalWords := 0

	for _, m := range messages {
		words := wordPattern.FindAllString(m.Content, -1)
		totalWords += len(words)
		for _, w := range words {
			vocabulary[strings.ToLower(w)] = struct{}{}
		}
		topic := dominantTopic(m.Content, topicScores)
		if topic != "" {
			topicSeq = append(topicSeq, topic)
		}
	}

	transitions := countTransitions(topicSeq)
	circularity := 0.0
	if transitions > 0 {
		circularity = float64(countReturns(topicSeq)) / float64(max(transitions, 1))
	}

	vocabRichness := 0.0
	if totalWords > 0 {
		vocabRichness = float64(len(vocabulary)) / float64(totalWords)
	}

	result := FlowResult{
		TopicCount:           len(topicScores),
		TopicTransitions:     transitions,
		CircularityIndex:     clamp01(circularity),
		DepthScore:           depthScore(messages, topicScores),
		CoherenceScore:       coherenceScore(topicSeq),
		ProgressionScore:     progressionScore(messages),
		VocabularyRichness:   vocabRichness,
		Topics:               rankedTopics(topicScores),
	}
	if len(topicScores) > 0 {
		result.AverageTopicDuration = float64(len(messages)) / float64(len(topicScores))
	}
	if isResolved(messages) {
		elapsed := messages[len(messages)-1].CreatedAt - messages[0].CreatedAt
		result.ResolutionTime = &elapsed
	}
	return result
}

// dominantTopic extracts the highest-scoring candidate topic in a single
// message and accrues its score into the running topicScores map. Single
// words need length >= 4 and must not be a stopword, and score 1 per
// occurrence; two-word phrases score 1.5 per occurrence. Each match of the
// technical or business term patterns adds 1.3 on top of any single-word
// score for the same word, so a technical term of four or more letters
// scores 2.3 per occurrence, not 1.3 times its plain word score.
func dominantTopic(content string, topicScores map[string]float64) string {
	lower := strings.ToLower(content)
	words := wordPattern.FindAllString(lower, -1)

	candidates := make(map[string]float64)
	for _, w := range words {
		if len(w) < 4 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		candidates[w] += 1.0
	}
	for i := 0; i < len(words)-1; i++ {
		bigram := words[i] + " " + words[i+1]
		if len(words[i]) >= 3 && len(words[i+1]) >= 3 {
			candidates[bigram] += 1.5
		}
	}
	for _, m := range technicalTermPattern.FindAllString(lower, -1) {
		candidates[strings.ToLower(m)] += 1.3
	}
	for _, m := range businessPatternRe.FindAllString(lower, -1) {
		candidates[strings.ToLower(m)] += 1.3
	}

	var best string
	var bestScore float64
	for topic, score := range candidates {
		if score > bestScore {
			best = topic
			bestScore = score
		}
	}
	if best != "" {
		topicScores[best] += bestScore
	}
	return best
}

func countTransitions(topicSeq []string) int {
	count := 0
	for i := 1; i < len(topicSeq); i++ {
		if topicSeq[i] != topicSeq[i-1] {
			count++
		}
	}
	return count
}

// countReturns counts how many times a topic recurs after the
// conversation has moved on to at least one other topic.
func countReturns(topicSeq []string) int {
	seen := make(map[string]int)
	returns := 0
	for i, t := range topicSeq {
		if last, ok := seen[t]; ok && i-last > 1 {
			returns++
		}
		seen[t] = i
	}
	return returns
}

// depthScore is a weighted sum of message length, question depth,
// topic breadth, follow-up density, and technical-term density, bounded
// to [0,100] (spec §4.6).
func depthScore(messages []types.Message, topicScores map[string]float64) float64 {
	var totalLen, questionWeight, technicalHits, followUps float64
	for i, m := range messages {
		totalLen += float64(len(m.Content))
		lower := strings.ToLower(m.Content)
		if strings.Contains(lower, "why") {
			questionWeight += 3
		}
		if strings.Contains(lower, "how") {
			questionWeight += 2
		}
		if strings.Contains(lower, "what if") {
			questionWeight += 3
		}
		technicalHits += float64(len(technicalTermPattern.FindAllString(lower, -1)))
		if i > 0 && strings.Contains(lower, "?") {
			followUps++
		}
	}

	avgLen := 0.0
	if len(messages) > 0 {
		avgLen = totalLen / float64(len(messages))
	}
	breadth := float64(len(topicScores))
	followUpDensity := 0.0
	if len(messages) > 1 {
		followUpDensity = followUps / float64(len(messages)-1)
	}

	score := (avgLen/10)*0.25 + questionWeight*1.5 + breadth*2 + followUpDensity*20 + technicalHits*1.5
	return clamp(score, 0, 100)
}

func coherenceScore(topicSeq []string) float64 {
	if len(topicSeq) < 2 {
		return 100
	}
	stable := 0
	for i := 1; i < len(topicSeq); i++ {
		if topicSeq[i] == topicSeq[i-1] {
			stable++
		}
	}
	return clamp(float64(stable)/float64(len(topicSeq)-1)*100, 0, 100)
}

// progressionScore rewards later messages growing longer and more
// detailed, a weak proxy for forward movement within the conversation.
func progressionScore(messages []types.Message) float64 {
	if len(messages) < 2 {
		return 50
	}
	points := make([]dbutil.Point, len(messages))
	for i, m := range messages {
		points[i] = dbutil.Point{T: float64(i), V: float64(len(m.Content))}
	}
	slope := dbutil.TrendSlope(points)
	return clamp(50+slope, 0, 100)
}

// isResolved treats a conversation as resolved when its final message is
// from the assistant and does not end in a question mark.
func isResolved(messages []types.Message) bool {
	last := messages[len(messages)-1]
	return last.Role == types.RoleAssistant && !strings.HasSuffix(strings.TrimSpace(last.Content), "?")
}

func rankedTopics(scores map[string]float64) []string {
	topics := make([]string, 0, len(scores))
	for t := range scores {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if scores[topics[i]] != scores[topics[j]] {
			return scores[topics[i]] > scores[topics[j]]
		}
		return topics[i] < topics[j]
	})
	return topics
}

func clamp(v, lo, hi float64) float64 {
	return dbutil.Clamp(v, lo, hi)
}

func clamp01(v float64) float64 {
	return dbutil.Clamp(v, 0, 1)
}
