package search

import (
	"fmt"
	"net/url"
)

// fallbackResults builds the synthetic result set returned when every real
// provider failed or is unconfigured: canned links into public search
// engines carrying the query. The pipeline never returns zero results.
func fallbackResults(query string) []SearchResult {
	escaped := url.QueryEscape(query)

	engines := []struct {
		name string
		url  string
	}{
		{"Google", "https://www.google.com/search?q=" + escaped},
		{"Bing", "https://www.bing.com/search?q=" + escaped},
		{"DuckDuckGo", "https://duckduckgo.com/?q=" + escaped},
	}

	results := make([]SearchResult, 0, len(engines))
	for _, engine := range engines {
		results = append(results, capResult(SearchResult{
			Title:          fmt.Sprintf("Search %s for %q", engine.name, query),
			URL:            engine.url,
			Snippet:        fmt.Sprintf("Live search was unavailable; follow this link to search %s directly.", engine.name),
			RelevanceScore: 0.3,
			Kind:           KindFallback,
		}))
	}
	return results
}
