package workflow

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"research-agent/internal/common/config"
	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
	"research-agent/internal/planner"
)

// ChunkKind separates model thinking from answer text.
type ChunkKind string

const (
	ChunkReasoning ChunkKind = "reasoning"
	ChunkContent   ChunkKind = "content"
)

// Chunk is one streamed piece of generator output. A non-nil Err is
// terminal: the channel closes right after it.
type Chunk struct {
	Kind ChunkKind
	Text string
	Err  error
}

// SourceContext is the per-source material handed to the generator.
type SourceContext struct {
	Title   string
	URL     string
	Snippet string
	Text    string
}

// GenerationRequest carries everything the answer model needs.
type GenerationRequest struct {
	Message string
	History []planner.Message
	Sources []SourceContext
}

// Generator produces the answer stream. The pipeline consumes it opaquely;
// swapping the backing model changes nothing upstream.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (<-chan Chunk, error)
}

// OpenRouterGenerator streams chat completions from an OpenRouter-compatible
// endpoint.
type OpenRouterGenerator struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
	logger  logger.Logger
}

func NewOpenRouterGenerator(cfg config.GenerationConfig, log logger.Logger) *OpenRouterGenerator {
	timeout := config.Millis(cfg.Timeout, 60*time.Second)
	model := cfg.Model
	if model == "" {
		model = "openai/gpt-4o-mini"
	}
	return &OpenRouterGenerator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger: log.With(map[string]interface{}{
			"component": "generator",
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (g *OpenRouterGenerator) Generate(ctx context.Context, req GenerationRequest) (<-chan Chunk, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model":    g.model,
		"messages": g.buildMessages(req),
		"stream":   true,
	})
	if err != nil {
		return nil, apperrors.NewGenerationFailedError(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewGenerationFailedError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.NewGenerationTimeoutError()
		}
		return nil, apperrors.NewGenerationFailedError(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperrors.NewGenerationFailedError(fmt.Errorf("HTTP %d from generation endpoint", resp.StatusCode))
	}

	out := make(chan Chunk, 16)
	go g.drain(ctx, resp, out)
	return out, nil
}

// drain reads SSE frames off the response until [DONE], the context ends or
// the connection drops.
func (g *OpenRouterGenerator) drain(ctx context.Context, resp *http.Response, out chan<- Chunk) {
	defer resp.Body.Close()
	defer close(out)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			g.logger.Warn("skipping malformed stream frame", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		for _, choice := range frame.Choices {
			if choice.Delta.Reasoning != "" {
				if !send(ctx, out, Chunk{Kind: ChunkReasoning, Text: choice.Delta.Reasoning}) {
					return
				}
			}
			if choice.Delta.Content != "" {
				if !send(ctx, out, Chunk{Kind: ChunkContent, Text: choice.Delta.Content}) {
					return
				}
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		send(ctx, out, Chunk{Err: apperrors.NewGenerationFailedError(err)})
	}
}

func send(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// buildMessages assembles the prompt: instructions plus source material as
// the system message, then the rolling conversation, then the user message.
func (g *OpenRouterGenerator) buildMessages(req GenerationRequest) []chatMessage {
	var system strings.Builder
	system.WriteString("You are a research assistant. Answer the user's question using the sources below. Cite sources by title. Say so when the sources do not cover the question.\n")
	for i, src := range req.Sources {
		fmt.Fprintf(&system, "\nSource %d: %s\nURL: %s\n", i+1, src.Title, src.URL)
		if src.Text != "" {
			system.WriteString(src.Text)
			system.WriteString("\n")
		} else if src.Snippet != "" {
			system.WriteString(src.Snippet)
			system.WriteString("\n")
		}
	}

	messages := make([]chatMessage, 0, len(req.History)+2)
	messages = append(messages, chatMessage{Role: "system", Content: system.String()})
	for _, m := range req.History {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Message})
	return messages
}
