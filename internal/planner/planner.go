// Package planner decides whether a message needs web research and, when it
// does, which queries to run.
package planner

import (
	"context"
	"regexp"
	"strings"

	"research-agent/internal/common/logger"
	"research-agent/internal/common/metrics"
)

// PlannedQuery is one prioritized search query. Priority 1 is highest.
type PlannedQuery struct {
	Query     string `json:"query"`
	Reasoning string `json:"reasoning"`
	Priority  int    `json:"priority"`
}

// SearchPlan is produced once per (chat, message) pair and cached by exact
// message text.
type SearchPlan struct {
	ShouldSearch       bool           `json:"shouldSearch"`
	Queries            []PlannedQuery `json:"queries"`
	SuggestNewChat     bool           `json:"suggestNewChat"`
	DecisionConfidence float64        `json:"decisionConfidence"`
}

// Message is one turn of conversation context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Similarity judges relatedness of two messages in [0,1]. The topic-change
// heuristic is pluggable; the contract is only that suggestNewChat fires
// when the two most recent user messages are judged unrelated.
type Similarity func(a, b string) float64

type Planner struct {
	maxQueries int
	similarity Similarity
	cache      *Cache
	logger     logger.Logger
}

const topicChangeThreshold = 0.2

func New(maxQueries int, cache *Cache, log logger.Logger) *Planner {
	if maxQueries <= 0 || maxQueries > 3 {
		maxQueries = 3
	}
	return &Planner{
		maxQueries: maxQueries,
		similarity: KeywordJaccard,
		cache:      cache,
		logger: log.With(map[string]interface{}{
			"component": "planner",
		}),
	}
}

// WithSimilarity replaces the topic-change heuristic.
func (p *Planner) WithSimilarity(fn Similarity) *Planner {
	p.similarity = fn
	return p
}

// Plan classifies newMessage and produces a search plan. Identical
// (chatID, newMessage) pairs return byte-identical plans via the cache;
// recomputation on a cache race is idempotent, not an error.
func (p *Planner) Plan(ctx context.Context, chatID, newMessage string, recentContext []Message) SearchPlan {
	if plan, ok := p.cache.Get(ctx, chatID, newMessage); ok {
		metrics.PlannerCacheLookups.WithLabelValues("hit").Inc()
		return plan
	}
	metrics.PlannerCacheLookups.WithLabelValues("miss").Inc()

	plan := p.classify(newMessage, recentContext)
	p.cache.Put(ctx, chatID, newMessage, plan)

	p.logger.Info("plan computed", map[string]interface{}{
		"chatId":       chatID,
		"shouldSearch": plan.ShouldSearch,
		"queries":      len(plan.Queries),
		"newChat":      plan.SuggestNewChat,
	})
	return plan
}

var greetings = []string{
	"hi", "hello", "hey", "thanks", "thank you", "ok", "okay", "yes", "no",
	"good morning", "good evening", "bye", "goodbye", "got it", "great",
	"cool", "nice", "sounds good",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func (p *Planner) classify(message string, recentContext []Message) SearchPlan {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")

	plan := SearchPlan{
		SuggestNewChat: p.topicChanged(message, recentContext),
	}

	if normalized == "" {
		plan.DecisionConfidence = 1.0
		return plan
	}

	trimmed := strings.TrimRight(normalized, ".!?")
	for _, g := range greetings {
		if trimmed == g {
			plan.DecisionConfidence = 0.95
			return plan
		}
	}
	// Very short non-question messages are acknowledgements, not research.
	if len(trimmed) < 4 && !strings.Contains(normalized, "?") {
		plan.DecisionConfidence = 0.7
		return plan
	}

	score, signals := scoreMessage(normalized)
	if score <= 0 {
		plan.DecisionConfidence = confidenceFromScore(-score)
		return plan
	}

	plan.ShouldSearch = true
	plan.DecisionConfidence = confidenceFromScore(score)
	plan.Queries = p.buildQueries(message, signals)
	return plan
}

// signal tags carried from scoring into query construction.
type signals struct {
	timeSensitive bool
	factual       bool
	research      bool
}

var (
	timeSensitiveTerms = []string{
		"latest", "current", "today", "now", "recent", "breaking", "news",
		"this year", "this month", "this week", "yesterday", "live", "update",
	}
	factualTerms = []string{
		"what is", "what are", "who is", "who are", "when did", "when was",
		"where is", "how many", "how much", "which", "price of", "cost of",
		"weather", "stock", "score", "funding",
	}
	researchTerms = []string{
		"compare", "comparison", "best", "top", "review", "vs", "versus",
		"difference between", "pros and cons", "alternatives", "recommend",
	}
	conversationalTerms = []string{
		"explain", "why do you", "what do you think", "write me", "draft",
		"summarize this", "rephrase", "translate",
	}
)

// scoreMessage is a keyword-weighted classifier: positive score means the
// message is information-seeking and benefits from live web data.
func scoreMessage(normalized string) (int, signals) {
	score := 0
	var sig signals

	if containsAny(normalized, timeSensitiveTerms) {
		score += 40
		sig.timeSensitive = true
	}
	if containsAny(normalized, factualTerms) {
		score += 30
		sig.factual = true
	}
	if containsAny(normalized, researchTerms) {
		score += 20
		sig.research = true
	}
	if containsAny(normalized, conversationalTerms) {
		score -= 30
	}
	if strings.Contains(normalized, "?") && score == 0 {
		score += 15
		sig.factual = true
	}

	return score, sig
}

func confidenceFromScore(score int) float64 {
	c := 0.5 + float64(score)/100
	if c > 1 {
		c = 1
	}
	if c < 0.5 {
		c = 0.5
	}
	return c
}

// buildQueries derives 1..maxQueries prioritized queries from the message
// and its classification signals.
func (p *Planner) buildQueries(message string, sig signals) []PlannedQuery {
	base := strings.TrimSpace(whitespaceRe.ReplaceAllString(message, " "))

	queries := []PlannedQuery{{
		Query:     base,
		Reasoning: "direct search for the user's question",
		Priority:  1,
	}}

	if sig.timeSensitive {
		queries = append(queries, PlannedQuery{
			Query:     base + " latest news",
			Reasoning: "message is time-sensitive; bias toward recent coverage",
			Priority:  2,
		})
	}
	if sig.research {
		queries = append(queries, PlannedQuery{
			Query:     base + " review comparison",
			Reasoning: "message asks for evaluation; bias toward comparative sources",
			Priority:  3,
		})
	}

	if len(queries) > p.maxQueries {
		queries = queries[:p.maxQueries]
	}
	return queries
}

// topicChanged compares the new message against the immediately preceding
// user message only, not full history.
func (p *Planner) topicChanged(message string, recentContext []Message) bool {
	var previous string
	for i := len(recentContext) - 1; i >= 0; i-- {
		if recentContext[i].Role == "user" {
			previous = recentContext[i].Content
			break
		}
	}
	if previous == "" {
		return false
	}
	if !substantive(message) || !substantive(previous) {
		return false
	}
	return p.similarity(message, previous) < topicChangeThreshold
}

// substantive filters out messages too short to carry a topic.
func substantive(s string) bool {
	return len(keywords(s)) >= 2
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
