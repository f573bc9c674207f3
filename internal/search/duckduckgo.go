package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DuckDuckGoProvider queries the DuckDuckGo Instant Answer API. It needs no
// API key, which makes it the last real provider before the synthetic
// fallback.
type DuckDuckGoProvider struct {
	baseURL string
	client  *http.Client
}

func NewDuckDuckGoProvider(baseURL string, timeout time.Duration) *DuckDuckGoProvider {
	return &DuckDuckGoProvider{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *DuckDuckGoProvider) Name() string { return string(MethodDuckDuckGo) }

func (p *DuckDuckGoProvider) Available() bool {
	return p.baseURL != ""
}

func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	u := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		p.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "research-agent/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned %d", resp.StatusCode)
	}

	var apiResponse struct {
		Abstract      string `json:"Abstract"`
		AbstractURL   string `json:"AbstractURL"`
		Heading       string `json:"Heading"`
		Answer        string `json:"Answer"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("duckduckgo response decode: %w", err)
	}

	var results []SearchResult

	if apiResponse.AbstractURL != "" {
		snippet := apiResponse.Abstract
		if snippet == "" {
			snippet = apiResponse.Answer
		}
		results = append(results, capResult(SearchResult{
			Title:          apiResponse.Heading,
			URL:            apiResponse.AbstractURL,
			Snippet:        snippet,
			RelevanceScore: 0.9,
			Kind:           KindInstantAnswer,
		}))
	}

	for _, topic := range apiResponse.RelatedTopics {
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		results = append(results, capResult(SearchResult{
			Title:   topic.Text,
			URL:     topic.FirstURL,
			Snippet: topic.Text,
			Kind:    KindOrganic,
		}))
		if len(results) >= maxResults {
			break
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("duckduckgo returned no results for %q", query)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
