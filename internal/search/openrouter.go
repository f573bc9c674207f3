package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenRouterProvider asks an LLM with web access to return search results as
// JSON. It sits between the SERP API and DuckDuckGo in the chain: slower and
// less precise than a real index, but available whenever an OpenRouter key
// is configured.
type OpenRouterProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenRouterProvider(baseURL, apiKey, model string, timeout time.Duration) *OpenRouterProvider {
	if model == "" {
		model = "openai/gpt-4o-mini:online"
	}
	return &OpenRouterProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *OpenRouterProvider) Name() string { return string(MethodOpenRouter) }

func (p *OpenRouterProvider) Available() bool {
	return p.apiKey != "" && p.baseURL != ""
}

const searchPrompt = `Search the web for: %q
Respond with ONLY a JSON array, no prose. Each element:
{"title": "...", "url": "https://...", "snippet": "...", "relevance": 0.0-1.0}
Return at most %d results, most relevant first.`

func (p *OpenRouterProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	requestBody := map[string]interface{}{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": fmt.Sprintf(searchPrompt, query, maxResults)},
		},
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openrouter returned %d", resp.StatusCode)
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("openrouter response decode: %w", err)
	}
	if len(apiResponse.Choices) == 0 {
		return nil, fmt.Errorf("openrouter returned no choices")
	}

	return p.parseResults(apiResponse.Choices[0].Message.Content, maxResults)
}

// parseResults extracts the JSON array from the model output, tolerating
// surrounding prose and markdown fences.
func (p *OpenRouterProvider) parseResults(content string, maxResults int) ([]SearchResult, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var items []struct {
		Title     string  `json:"title"`
		URL       string  `json:"url"`
		Snippet   string  `json:"snippet"`
		Relevance float64 `json:"relevance"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("model output parse: %w", err)
	}

	results := make([]SearchResult, 0, len(items))
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		results = append(results, capResult(SearchResult{
			Title:          item.Title,
			URL:            item.URL,
			Snippet:        item.Snippet,
			RelevanceScore: item.Relevance,
			Kind:           KindOrganic,
		}))
		if len(results) >= maxResults {
			break
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("model output contained no usable results")
	}
	return results, nil
}
