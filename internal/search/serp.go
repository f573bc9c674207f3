package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SerpProvider queries a SERP API (serpapi.com-compatible) and maps its
// organic results into the common shape.
type SerpProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSerpProvider(baseURL, apiKey string, timeout time.Duration) *SerpProvider {
	return &SerpProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *SerpProvider) Name() string { return string(MethodSerp) }

func (p *SerpProvider) Available() bool {
	return p.apiKey != "" && p.baseURL != ""
}

func (p *SerpProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("serp base url: %w", err)
	}
	params := url.Values{}
	params.Add("api_key", p.apiKey)
	params.Add("q", query)
	params.Add("num", fmt.Sprintf("%d", maxResults))
	params.Add("engine", "google")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serp API returned %d", resp.StatusCode)
	}

	var apiResponse struct {
		OrganicResults []struct {
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
			Position int    `json:"position"`
		} `json:"organic_results"`
		NewsResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"news_results"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("serp response decode: %w", err)
	}

	results := make([]SearchResult, 0, len(apiResponse.OrganicResults)+len(apiResponse.NewsResults))
	for _, item := range apiResponse.OrganicResults {
		score := positionScore(item.Position)
		results = append(results, capResult(SearchResult{
			Title:          item.Title,
			URL:            item.Link,
			Snippet:        item.Snippet,
			RelevanceScore: score,
			Kind:           KindOrganic,
		}))
	}
	for _, item := range apiResponse.NewsResults {
		results = append(results, capResult(SearchResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
			Kind:    KindNews,
		}))
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// positionScore maps a 1-based SERP position to a relevance in (0,1];
// position 0 (absent) falls back to the default.
func positionScore(position int) float64 {
	if position <= 0 {
		return DefaultRelevance
	}
	score := 1.0 - float64(position-1)*0.08
	if score < 0.2 {
		score = 0.2
	}
	return score
}
