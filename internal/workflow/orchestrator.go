package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"research-agent/internal/common/config"
	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/metrics"
	"research-agent/internal/common/observability"
	"research-agent/internal/planner"
	"research-agent/internal/registry"
	"research-agent/internal/scraper"
	"research-agent/internal/search"
	"research-agent/internal/signer"
)

// Request is one research question with its conversation context.
type Request struct {
	Message   string
	ChatID    string
	SessionID string
	History   []planner.Message
}

// Orchestrator drives one workflow per call to Run: plan, search, scrape,
// synthesize, finalize, sign. It holds only process-wide collaborators;
// all per-workflow state lives in the emitter and registry created per run.
type Orchestrator struct {
	planner    *planner.Planner
	chain      *search.Chain
	scraper    *scraper.Scraper
	generator  Generator
	signer     *signer.Signer
	obs        *observability.Observability
	maxResults int
	topSources int
	scrape     bool
	logger     logger.Logger
}

func NewOrchestrator(
	pl *planner.Planner,
	chain *search.Chain,
	sc *scraper.Scraper,
	gen Generator,
	sg *signer.Signer,
	obs *observability.Observability,
	cfg *config.Config,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		planner:    pl,
		chain:      chain,
		scraper:    sc,
		generator:  gen,
		signer:     sg,
		obs:        obs,
		maxResults: cfg.Providers.MaxResults,
		topSources: cfg.Scraper.TopSources,
		scrape:     cfg.Scraper.Enabled && sc != nil,
		logger:     log.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Run executes the whole workflow, emitting events through em. It always
// leaves the emitter in a terminal state and closes the stream. A client
// disconnect stops further provider and generation calls; no persisted
// event is emitted for a cancelled workflow.
func (o *Orchestrator) Run(ctx context.Context, req Request, em *Emitter) {
	startedAt := time.Now().UTC()
	defer em.Close()

	log := o.logger.With(map[string]interface{}{
		"workflowId": em.WorkflowID(),
		"chatId":     req.ChatID,
	})

	if err := em.Start(ctx); err != nil {
		log.WithError(err).Warn("stream closed before workflow start", nil)
		metrics.WorkflowsFinished.WithLabelValues("cancelled").Inc()
		return
	}

	reg := registry.New(log)

	searchMethod, hasReal, searched, scraped, err := o.research(ctx, req, em, reg, log)
	if err != nil {
		o.finish(ctx, em, err)
		return
	}

	answer, err := o.synthesize(ctx, req, em, reg, scraped, log)
	if err != nil {
		o.finish(ctx, em, err)
		return
	}

	// A search that only produced synthetic fallback links limits how far
	// the answer can be trusted. Skipping search by plan does not.
	hasLimitations := searched && !hasReal
	confidence := 0.9
	if hasLimitations {
		confidence = 0.4
	}
	if err := em.Metadata(ctx, MetadataEvent{
		WebResearchSources: reg.Sources(),
		HasLimitations:     hasLimitations,
		Confidence:         confidence,
		AnswerLength:       len(answer),
	}); err != nil {
		o.finish(ctx, em, err)
		return
	}

	finishedAt := time.Now().UTC()
	if err := em.Complete(ctx, WorkflowSummary{
		Status:         "completed",
		SearchMethod:   searchMethod,
		HasRealResults: hasReal,
		SourceCount:    reg.Len(),
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
	}); err != nil {
		o.finish(ctx, em, err)
		return
	}

	payload := PersistedPayload{
		AssistantMessageID: uuid.Must(uuid.NewV7()).String(),
		WorkflowID:         em.WorkflowID(),
		Answer:             answer,
		WebResearchSources: reg.PersistableSources(),
	}
	signature, err := o.signer.Sign(payload, em.Nonce())
	if err != nil {
		o.finish(ctx, em, apperrors.NewGenerationFailedError(err))
		return
	}
	if !o.signer.Verify(payload, em.Nonce(), signature) {
		// Never forward a payload the consumer cannot trust.
		metrics.SignatureFailures.Inc()
		log.Error("dropping persisted event: signature self-check failed", map[string]interface{}{
			"workflowId": em.WorkflowID(),
		})
		metrics.WorkflowsFinished.WithLabelValues("completed_unsigned").Inc()
		return
	}

	if err := em.Persisted(ctx, payload, signature); err != nil {
		log.WithError(err).Warn("client disconnected before persisted event", nil)
		metrics.WorkflowsFinished.WithLabelValues("cancelled").Inc()
		return
	}

	metrics.WorkflowsFinished.WithLabelValues("completed").Inc()
	o.obs.RecordStageDuration(ctx, "workflow", time.Since(startedAt))
	log.Info("workflow completed", map[string]interface{}{
		"searchMethod":   searchMethod,
		"hasRealResults": hasReal,
		"sources":        reg.Len(),
		"answerLength":   len(answer),
		"durationMs":     time.Since(startedAt).Milliseconds(),
	})
}

// research runs planning, the provider chain per planned query and optional
// scraping. It reports the aggregate search method, whether any provider
// returned real results and whether a search ran at all. A context error
// aborts; provider failures never do.
func (o *Orchestrator) research(ctx context.Context, req Request, em *Emitter, reg *registry.Registry, log logger.Logger) (string, bool, bool, map[string]string, error) {
	if err := em.Progress(ctx, StagePlanning, "Deciding whether web research is needed", "", ""); err != nil {
		return "", false, false, nil, err
	}

	planStart := time.Now()
	plan := o.planner.Plan(ctx, req.ChatID, req.Message, req.History)
	o.obs.RecordStage(ctx, "planning", "ok")
	o.obs.RecordStageDuration(ctx, "planning", time.Since(planStart))

	if !plan.ShouldSearch {
		if err := em.Progress(ctx, StagePlanning, "Answering from conversation context, no search needed", "", ""); err != nil {
			return "", false, false, nil, err
		}
		return "none", false, false, nil, nil
	}

	queries := make([]planner.PlannedQuery, len(plan.Queries))
	copy(queries, plan.Queries)
	sort.SliceStable(queries, func(i, j int) bool { return queries[i].Priority < queries[j].Priority })

	searchMethod := string(search.MethodFallback)
	hasReal := false
	for _, q := range queries {
		if ctx.Err() != nil {
			return "", false, true, nil, apperrors.NewStreamClosedError(em.WorkflowID())
		}
		if err := em.Progress(ctx, StageSearching, fmt.Sprintf("Searching the web for %q", q.Query), q.Reasoning, q.Query); err != nil {
			return "", false, true, nil, err
		}

		result := o.chain.Search(ctx, q.Query, o.maxResults)
		reg.AddSearchResults(result.Results)
		if result.HasRealResults && !hasReal {
			hasReal = true
			searchMethod = string(result.Method)
		}
	}
	o.obs.RecordStage(ctx, "searching", "ok")

	scraped := make(map[string]string)
	if o.scrape && hasReal {
		for _, src := range o.topScrapeTargets(reg) {
			if ctx.Err() != nil {
				return "", false, true, nil, apperrors.NewStreamClosedError(em.WorkflowID())
			}
			if err := em.Progress(ctx, StageScraping, fmt.Sprintf("Reading %s", src.URL), "", ""); err != nil {
				return "", false, true, nil, err
			}
			page, err := o.scraper.Scrape(ctx, src.URL)
			if err != nil {
				// Degrade to the search snippet, never fail the workflow.
				log.WithError(err).Warn("scrape degraded to snippet", map[string]interface{}{
					"contextId": src.ContextID,
					"url":       src.URL,
				})
				continue
			}
			reg.AddScrapedPage(page.URL, page.Title)
			scraped[src.ContextID] = page.Text
		}
		o.obs.RecordStage(ctx, "scraping", "ok")
	}

	return searchMethod, hasReal, true, scraped, nil
}

// topScrapeTargets picks the highest-relevance URL-bearing search results.
func (o *Orchestrator) topScrapeTargets(reg *registry.Registry) []registry.WebResearchSource {
	sources := reg.Sources()
	candidates := make([]registry.WebResearchSource, 0, len(sources))
	for _, src := range sources {
		if src.Type == registry.TypeSearchResult && src.URL != "" {
			candidates = append(candidates, src)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RelevanceScore > candidates[j].RelevanceScore
	})
	if len(candidates) > o.topSources {
		candidates = candidates[:o.topSources]
	}
	return candidates
}

// synthesize drains the generator into reasoning and content events and
// returns the concatenated answer.
func (o *Orchestrator) synthesize(ctx context.Context, req Request, em *Emitter, reg *registry.Registry, scraped map[string]string, log logger.Logger) (string, error) {
	if err := em.Progress(ctx, StageSynthesizing, "Synthesizing an answer from the research", "", ""); err != nil {
		return "", err
	}

	genReq := GenerationRequest{
		Message: req.Message,
		History: req.History,
		Sources: o.sourceContexts(reg, scraped),
	}

	genStart := time.Now()
	chunks, err := o.generator.Generate(ctx, genReq)
	if err != nil {
		o.obs.RecordStage(ctx, "synthesizing", "error")
		if stdErr, ok := err.(*apperrors.StandardError); ok {
			return "", stdErr
		}
		return "", apperrors.NewGenerationFailedError(err)
	}

	var answer []byte
	reasoningChunks := 0
	for chunk := range chunks {
		if chunk.Err != nil {
			o.obs.RecordStage(ctx, "synthesizing", "error")
			if stdErr, ok := chunk.Err.(*apperrors.StandardError); ok {
				return "", stdErr
			}
			return "", apperrors.NewGenerationFailedError(chunk.Err)
		}
		switch chunk.Kind {
		case ChunkReasoning:
			reasoningChunks++
			if err := em.Reasoning(ctx, chunk.Text); err != nil {
				return "", err
			}
		case ChunkContent:
			answer = append(answer, chunk.Text...)
			if err := em.Content(ctx, chunk.Text); err != nil {
				return "", err
			}
		}
	}

	if ctx.Err() != nil {
		return "", apperrors.NewStreamClosedError(em.WorkflowID())
	}
	if len(answer) == 0 {
		o.obs.RecordStage(ctx, "synthesizing", "error")
		return "", apperrors.NewGenerationFailedError(fmt.Errorf("generator produced no answer text"))
	}

	if reg.Len() > 0 {
		reg.AddSummary(summaryTitle(req.Message))
	}

	o.obs.RecordStage(ctx, "synthesizing", "ok")
	o.obs.RecordStageDuration(ctx, "synthesizing", time.Since(genStart))
	log.Debug("generation drained", map[string]interface{}{
		"reasoningChunks": reasoningChunks,
		"answerLength":    len(answer),
	})
	return string(answer), nil
}

// sourceContexts pairs registry sources with their scraped text where
// available.
func (o *Orchestrator) sourceContexts(reg *registry.Registry, scraped map[string]string) []SourceContext {
	sources := reg.PersistableSources()
	out := make([]SourceContext, 0, len(sources))
	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		out = append(out, SourceContext{
			Title:   src.Title,
			URL:     src.URL,
			Snippet: reg.Snippet(src.ContextID),
			Text:    scraped[src.ContextID],
		})
	}
	return out
}

// finish records a terminal outcome. A closed stream means the client is
// gone, so no error event is emitted for it; everything else transitions
// the emitter to Errored with a single error event.
func (o *Orchestrator) finish(ctx context.Context, em *Emitter, err error) {
	stdErr, ok := err.(*apperrors.StandardError)
	if !ok {
		stdErr = apperrors.NewGenerationFailedError(err)
	}
	if stdErr.Code == apperrors.ErrCodeStreamClosed {
		o.logger.WithError(stdErr).Info("workflow cancelled", map[string]interface{}{
			"workflowId": em.WorkflowID(),
		})
		metrics.WorkflowsFinished.WithLabelValues("cancelled").Inc()
		return
	}
	em.Fail(ctx, stdErr)
	metrics.WorkflowsFinished.WithLabelValues("errored").Inc()
}

func summaryTitle(message string) string {
	const max = 80
	if len(message) > max {
		message = message[:max]
	}
	return "Research summary: " + message
}
