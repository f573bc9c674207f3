package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"research-agent/internal/common/config"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/metrics"
)

// Chain tries providers in a fixed priority order: SERP API, the LLM-backed
// provider, then DuckDuckGo. A provider failure of any kind (timeout,
// non-2xx, unparsable body, missing key) advances the chain; it is recorded
// in ProviderErrors but never surfaced to the caller. Total exhaustion
// yields the synthetic fallback result set.
//
// The order is deliberate fallback sequencing, not a parallelism
// opportunity: providers sit in different trust and cost tiers.
type Chain struct {
	providers []Provider
	timeouts  map[string]time.Duration
	logger    logger.Logger
}

func NewChain(cfg config.ProvidersConfig, log logger.Logger) *Chain {
	serpTimeout := config.Millis(cfg.Serp.Timeout, 5*time.Second)
	orTimeout := config.Millis(cfg.OpenRouter.Timeout, 10*time.Second)
	ddgTimeout := config.Millis(cfg.DuckDuckGo.Timeout, 5*time.Second)

	return &Chain{
		providers: []Provider{
			NewSerpProvider(cfg.Serp.BaseURL, cfg.Serp.APIKey, serpTimeout),
			NewOpenRouterProvider(cfg.OpenRouter.BaseURL, cfg.OpenRouter.APIKey, cfg.OpenRouter.Model, orTimeout),
			NewDuckDuckGoProvider(cfg.DuckDuckGo.BaseURL, ddgTimeout),
		},
		timeouts: map[string]time.Duration{
			string(MethodSerp):       serpTimeout,
			string(MethodOpenRouter): orTimeout,
			string(MethodDuckDuckGo): ddgTimeout,
		},
		logger: log.With(map[string]interface{}{
			"component": "search-chain",
		}),
	}
}

// NewChainWithProviders builds a chain over explicit providers, for tests
// and for callers that assemble their own adapters.
func NewChainWithProviders(log logger.Logger, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		timeouts:  map[string]time.Duration{},
		logger: log.With(map[string]interface{}{
			"component": "search-chain",
		}),
	}
}

// Search runs the fallback chain for one query. It never returns an error
// and never returns zero results.
func (c *Chain) Search(ctx context.Context, query string, maxResults int) ProviderResult {
	if maxResults <= 0 {
		maxResults = 8
	}

	effectiveQuery := query
	enrichment := ""
	if aug, ok := Enhance(query); ok {
		effectiveQuery = aug.Query
		enrichment = string(aug.Tag)
		c.logger.Info("query enhanced", map[string]interface{}{
			"strategy": aug.Tag,
			"query":    aug.Query,
		})
	}

	var providerErrors []ProviderError

	for _, provider := range c.providers {
		if !provider.Available() {
			c.logger.Debug("provider unconfigured, skipping", map[string]interface{}{
				"provider": provider.Name(),
			})
			continue
		}

		results, err := c.attempt(ctx, provider, effectiveQuery, maxResults)
		if err != nil {
			providerErrors = append(providerErrors, ProviderError{
				Provider: provider.Name(),
				Message:  err.Error(),
			})
			c.logger.Warn("provider failed, advancing chain", map[string]interface{}{
				"provider": provider.Name(),
				"error":    err.Error(),
			})
			continue
		}

		return ProviderResult{
			Results:        results,
			Method:         SearchMethod(provider.Name()),
			HasRealResults: true,
			Enrichment:     enrichment,
			ProviderErrors: providerErrors,
		}
	}

	c.logger.Warn("all providers failed or unconfigured, using fallback", map[string]interface{}{
		"query":     query,
		"attempted": len(providerErrors),
	})
	metrics.ProviderAttempts.WithLabelValues(string(MethodFallback), "used").Inc()

	return ProviderResult{
		Results:        fallbackResults(query),
		Method:         MethodFallback,
		HasRealResults: false,
		Enrichment:     enrichment,
		ProviderErrors: providerErrors,
	}
}

// attempt runs one provider inside its own timeout and error boundary.
func (c *Chain) attempt(ctx context.Context, provider Provider, query string, maxResults int) (results []SearchResult, err error) {
	timeout := c.timeouts[provider.Name()]
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		// A panicking adapter is a failed adapter, not a dead chain.
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()

	start := time.Now()
	results, err = provider.Search(attemptCtx, query, maxResults)
	metrics.ProviderDuration.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProviderAttempts.WithLabelValues(provider.Name(), "error").Inc()
		return nil, err
	}
	if len(results) == 0 {
		metrics.ProviderAttempts.WithLabelValues(provider.Name(), "empty").Inc()
		return nil, errEmptyResults
	}

	metrics.ProviderAttempts.WithLabelValues(provider.Name(), "success").Inc()
	return results, nil
}

var errEmptyResults = errors.New("provider returned zero results")
