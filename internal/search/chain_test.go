package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/common/logger"
)

func serpServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-serp-key", r.URL.Query().Get("api_key"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

const serpBody = `{
	"organic_results": [
		{"title": "Anthropic raises funding", "link": "https://news.example.com/anthropic", "snippet": "Anthropic announced a new round.", "position": 1},
		{"title": "Analysis", "link": "https://blog.example.com/take", "snippet": "What the round means.", "position": 2}
	]
}`

func TestChain_ScenarioA_SerpResponsive(t *testing.T) {
	server := serpServer(t, serpBody, http.StatusOK)
	defer server.Close()

	chain := NewChainWithProviders(logger.NewTestLogger(t),
		NewSerpProvider(server.URL, "test-serp-key", 2*time.Second),
	)

	result := chain.Search(context.Background(), "latest Anthropic funding", 8)

	assert.Equal(t, MethodSerp, result.Method)
	assert.True(t, result.HasRealResults)
	require.NotEmpty(t, result.Results)
	assert.Equal(t, "https://news.example.com/anthropic", result.Results[0].URL)
	assert.Greater(t, result.Results[0].RelevanceScore, result.Results[1].RelevanceScore)
}

func TestChain_ScenarioB_NoProvidersConfigured(t *testing.T) {
	// Unconfigured providers: no keys, no base URLs.
	chain := NewChainWithProviders(logger.NewTestLogger(t),
		NewSerpProvider("", "", time.Second),
		NewOpenRouterProvider("", "", "", time.Second),
		NewDuckDuckGoProvider("", time.Second),
	)

	result := chain.Search(context.Background(), "latest Anthropic funding", 8)

	assert.Equal(t, MethodFallback, result.Method)
	assert.False(t, result.HasRealResults)
	require.NotEmpty(t, result.Results, "the pipeline must never return zero results")
	for _, r := range result.Results {
		assert.True(t,
			strings.Contains(r.URL, "google.com") ||
				strings.Contains(r.URL, "bing.com") ||
				strings.Contains(r.URL, "duckduckgo.com"),
			"fallback URL should point at a public search engine: %s", r.URL)
		assert.Contains(t, r.URL, "Anthropic")
	}
}

func TestChain_FailureAdvancesToNextProvider(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"Heading": "Anthropic",
			"Abstract": "Anthropic is an AI safety company.",
			"AbstractURL": "https://en.wikipedia.org/wiki/Anthropic",
			"RelatedTopics": []
		}`))
	}))
	defer ddg.Close()

	chain := NewChainWithProviders(logger.NewTestLogger(t),
		NewSerpProvider(failing.URL, "test-serp-key", 2*time.Second),
		NewDuckDuckGoProvider(ddg.URL, 2*time.Second),
	)

	result := chain.Search(context.Background(), "Anthropic", 5)

	assert.Equal(t, MethodDuckDuckGo, result.Method)
	assert.True(t, result.HasRealResults)
	require.Len(t, result.ProviderErrors, 1)
	assert.Equal(t, "serp", result.ProviderErrors[0].Provider)
}

func TestChain_TimeoutTreatedAsFailure(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(serpBody))
	}))
	defer slow.Close()

	chain := NewChainWithProviders(logger.NewTestLogger(t),
		NewSerpProvider(slow.URL, "test-serp-key", 50*time.Millisecond),
	)
	chain.timeouts[string(MethodSerp)] = 50 * time.Millisecond

	result := chain.Search(context.Background(), "anything", 5)

	assert.Equal(t, MethodFallback, result.Method)
	assert.False(t, result.HasRealResults)
	require.Len(t, result.ProviderErrors, 1)
}

func TestChain_EmptyProviderResponseAdvances(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"organic_results": []}`))
	}))
	defer empty.Close()

	chain := NewChainWithProviders(logger.NewTestLogger(t),
		NewSerpProvider(empty.URL, "test-serp-key", 2*time.Second),
	)

	result := chain.Search(context.Background(), "anything", 5)

	assert.Equal(t, MethodFallback, result.Method)
	require.Len(t, result.ProviderErrors, 1)
	assert.Contains(t, result.ProviderErrors[0].Message, "zero results")
}

func TestChain_InvariantFallbackIffNotReal(t *testing.T) {
	server := serpServer(t, serpBody, http.StatusOK)
	defer server.Close()

	real := NewChainWithProviders(logger.NewTestLogger(t),
		NewSerpProvider(server.URL, "test-serp-key", 2*time.Second),
	).Search(context.Background(), "q", 5)
	synthetic := NewChainWithProviders(logger.NewTestLogger(t)).
		Search(context.Background(), "q", 5)

	assert.Equal(t, real.Method != MethodFallback, real.HasRealResults)
	assert.Equal(t, synthetic.Method != MethodFallback, synthetic.HasRealResults)
}

func TestAdapter_CapsFieldLengths(t *testing.T) {
	longTitle := strings.Repeat("t", MaxTitleLen+50)
	longSnippet := strings.Repeat("s", MaxSnippetLen+50)

	capped := capResult(SearchResult{
		Title:   longTitle,
		URL:     "https://example.com/x",
		Snippet: longSnippet,
	})

	assert.Len(t, capped.Title, MaxTitleLen)
	assert.Len(t, capped.Snippet, MaxSnippetLen)
	assert.Equal(t, DefaultRelevance, capped.RelevanceScore)
}

func TestAdapter_ClampsRelevance(t *testing.T) {
	assert.Equal(t, 1.0, capResult(SearchResult{URL: "https://e.com", RelevanceScore: 3.5}).RelevanceScore)
	assert.Equal(t, 0.0, capResult(SearchResult{URL: "https://e.com", RelevanceScore: -1}).RelevanceScore)
}
