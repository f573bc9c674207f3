// Package registry merges provider results and scraped pages into
// contextId-addressable web research sources for one workflow.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"research-agent/internal/common/logger"
	"research-agent/internal/common/metrics"
	"research-agent/internal/search"
	"research-agent/internal/urlkit"
)

// SourceType classifies a web research source.
type SourceType string

const (
	TypeSearchResult    SourceType = "search_result"
	TypeScrapedPage     SourceType = "scraped_page"
	TypeResearchSummary SourceType = "research_summary"
)

// WebResearchSource is one logical source. ContextID is minted once per
// logical source and is the only stable cross-reference between streaming
// events and persisted storage. URL is empty when the source was redacted;
// the ContextID reference stays resolvable either way.
type WebResearchSource struct {
	ContextID      string     `json:"contextId"`
	Type           SourceType `json:"type"`
	URL            string     `json:"url,omitempty"`
	Title          string     `json:"title,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	RelevanceScore float64    `json:"relevanceScore,omitempty"`
}

// Registry lives for one workflow. Sources are only appended as the planner
// and providers complete; nothing mutates after the workflow is finalized.
type Registry struct {
	mu       sync.Mutex
	ordered  []WebResearchSource
	byKey    map[string]string // canonical URL key -> contextId
	redacted map[string]bool   // contextId -> excluded from persisted payload
	snippets map[string]string // contextId -> provider snippet
	logger   logger.Logger
}

func New(log logger.Logger) *Registry {
	return &Registry{
		byKey:    make(map[string]string),
		redacted: make(map[string]bool),
		snippets: make(map[string]string),
		logger: log.With(map[string]interface{}{
			"component": "source-registry",
		}),
	}
}

// AddSearchResults merges a provider's results, deduplicating against every
// source already registered. It returns the sources that were newly minted.
func (r *Registry) AddSearchResults(results []search.SearchResult) []WebResearchSource {
	r.mu.Lock()
	defer r.mu.Unlock()

	var added []WebResearchSource
	for _, result := range results {
		src, ok := r.add(TypeSearchResult, result.URL, result.Title, result.RelevanceScore)
		if !ok {
			continue
		}
		if result.Snippet != "" {
			r.snippets[src.ContextID] = result.Snippet
		}
		added = append(added, src)
	}
	return added
}

// AddScrapedPage registers a scraped page. When the page URL matches an
// existing search result the existing source is upgraded to scraped_page and
// its contextId is kept, honoring one stable identifier per logical source.
func (r *Registry) AddScrapedPage(pageURL, title string) (WebResearchSource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := urlkit.NormalizeForKey(pageURL)
	if id, ok := r.byKey[key]; ok {
		for i := range r.ordered {
			if r.ordered[i].ContextID == id {
				r.ordered[i].Type = TypeScrapedPage
				if title != "" {
					r.ordered[i].Title = title
				}
				return r.ordered[i], true
			}
		}
	}

	return r.add(TypeScrapedPage, pageURL, title, 0)
}

// AddSummary registers a synthesized research-summary source. Summaries have
// no URL by nature, not by redaction.
func (r *Registry) AddSummary(title string) WebResearchSource {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := WebResearchSource{
		ContextID: uuid.Must(uuid.NewV7()).String(),
		Type:      TypeResearchSummary,
		Title:     title,
		Timestamp: time.Now().UTC(),
	}
	r.ordered = append(r.ordered, src)
	return src
}

// add registers one URL-bearing source under the lock. Invalid URLs still
// mint a contextId so references stay resolvable, but the source is redacted
// and the exclusion is logged, never silently dropped.
func (r *Registry) add(typ SourceType, rawURL, title string, relevance float64) (WebResearchSource, bool) {
	canonical, err := urlkit.Normalize(rawURL, search.MaxURLLen)

	src := WebResearchSource{
		ContextID:      uuid.Must(uuid.NewV7()).String(),
		Type:           typ,
		Title:          title,
		Timestamp:      time.Now().UTC(),
		RelevanceScore: relevance,
	}

	if err != nil {
		r.redacted[src.ContextID] = true
		r.ordered = append(r.ordered, src)
		metrics.SourcesExcluded.WithLabelValues("invalid_url").Inc()
		r.logger.Warn("source redacted: URL failed normalization", map[string]interface{}{
			"contextId": src.ContextID,
			"url":       rawURL,
			"error":     err.Error(),
		})
		return src, true
	}

	key := urlkit.NormalizeForKey(canonical)
	if _, dup := r.byKey[key]; dup {
		return WebResearchSource{}, false
	}

	src.URL = canonical
	r.byKey[key] = src.ContextID
	r.ordered = append(r.ordered, src)
	return src, true
}

// Sources returns every registered source in insertion order, redacted ones
// included (without URL).
func (r *Registry) Sources() []WebResearchSource {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]WebResearchSource, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// PersistableSources returns the sources eligible for the persisted payload:
// everything except redacted entries.
func (r *Registry) PersistableSources() []WebResearchSource {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]WebResearchSource, 0, len(r.ordered))
	for _, src := range r.ordered {
		if r.redacted[src.ContextID] {
			continue
		}
		out = append(out, src)
	}
	return out
}

// Snippet returns the provider snippet recorded for a source, if any.
func (r *Registry) Snippet(contextID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snippets[contextID]
}

// Len reports the number of registered sources, redacted included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ordered)
}
