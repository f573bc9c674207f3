package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkflowsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "research_workflows_started_total",
			Help: "Total number of research workflows started",
		},
	)

	WorkflowsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_workflows_finished_total",
			Help: "Total number of research workflows finished by outcome",
		},
		[]string{"outcome"},
	)

	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_provider_attempts_total",
			Help: "Total number of search provider attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "search_provider_duration_seconds",
			Help: "Duration of search provider calls in seconds",
		},
		[]string{"provider"},
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_events_emitted_total",
			Help: "Total number of workflow events emitted by type",
		},
		[]string{"type"},
	)

	SourcesExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_sources_excluded_total",
			Help: "Total number of research sources excluded by reason",
		},
		[]string{"reason"},
	)

	PlannerCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_cache_lookups_total",
			Help: "Total number of planner cache lookups by result",
		},
		[]string{"result"},
	)

	SignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persisted_signature_failures_total",
			Help: "Total number of persisted payload signature verification failures",
		},
	)

	RateLimitDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
			Help: "Total number of requests denied by the rate limiter",
		},
		[]string{"endpoint"},
	)
)
