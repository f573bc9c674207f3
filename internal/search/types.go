package search

import "strings"

// SearchMethod identifies which provider produced a result set.
type SearchMethod string

const (
	MethodSerp       SearchMethod = "serp"
	MethodOpenRouter SearchMethod = "openrouter"
	MethodDuckDuckGo SearchMethod = "duckduckgo"
	MethodFallback   SearchMethod = "fallback"
)

// ResultKind classifies an individual search result.
type ResultKind string

const (
	KindOrganic       ResultKind = "organic"
	KindNews          ResultKind = "news"
	KindInstantAnswer ResultKind = "instant_answer"
	KindFallback      ResultKind = "fallback"
)

// Field caps applied at the adapter boundary, before results leave a
// provider adapter.
const (
	MaxTitleLen   = 200
	MaxURLLen     = 2000
	MaxSnippetLen = 500

	// DefaultRelevance is used when a provider omits a score.
	DefaultRelevance = 0.5
)

// SearchResult is the common result shape every provider adapter maps into.
// Immutable once returned by an adapter.
type SearchResult struct {
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Snippet        string     `json:"snippet"`
	RelevanceScore float64    `json:"relevanceScore"`
	Kind           ResultKind `json:"kind"`
}

// ProviderError records one provider attempt failure without blocking the
// chain.
type ProviderError struct {
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

// ProviderResult is the chain's answer for one query. HasRealResults is
// false iff Method is MethodFallback.
type ProviderResult struct {
	Results        []SearchResult  `json:"results"`
	Method         SearchMethod    `json:"searchMethod"`
	HasRealResults bool            `json:"hasRealResults"`
	Enrichment     string          `json:"enrichment,omitempty"`
	ProviderErrors []ProviderError `json:"providerErrors,omitempty"`
}

// capResult enforces the adapter-boundary field caps and the relevance
// default/range.
func capResult(r SearchResult) SearchResult {
	r.Title = truncate(strings.TrimSpace(r.Title), MaxTitleLen)
	r.URL = truncate(strings.TrimSpace(r.URL), MaxURLLen)
	r.Snippet = truncate(strings.TrimSpace(r.Snippet), MaxSnippetLen)

	if r.RelevanceScore == 0 {
		r.RelevanceScore = DefaultRelevance
	}
	if r.RelevanceScore < 0 {
		r.RelevanceScore = 0
	}
	if r.RelevanceScore > 1 {
		r.RelevanceScore = 1
	}
	return r
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
