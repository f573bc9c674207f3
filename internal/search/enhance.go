package search

import "strings"

// StrategyTag names one query-enhancement strategy. The set is closed:
// strategies are dispatched from a static ordered list, not registered at
// runtime.
type StrategyTag string

const (
	StrategyCurrentEvents StrategyTag = "current_events"
	StrategyComparison    StrategyTag = "comparison"
	StrategyLocalInfo     StrategyTag = "local_info"
	StrategyHealth        StrategyTag = "health"
	StrategyTechnical     StrategyTag = "technical"
)

// QueryAugmentation is the outcome of applying one strategy to a query.
type QueryAugmentation struct {
	Tag   StrategyTag `json:"tag"`
	Query string      `json:"query"`
	Note  string      `json:"note"`
}

// strategy is a pure function over the query; matched strategies rewrite the
// query to pull better results out of general-purpose providers.
type strategy struct {
	tag     StrategyTag
	match   func(q string) bool
	augment func(q string) QueryAugmentation
}

// strategies is evaluated in order; the first match wins.
var strategies = []strategy{
	{
		tag:   StrategyCurrentEvents,
		match: containsAny("latest", "today", "breaking", "this week", "recent", "news", "announced"),
		augment: func(q string) QueryAugmentation {
			return QueryAugmentation{
				Tag:   StrategyCurrentEvents,
				Query: q + " latest news",
				Note:  "biased toward recent coverage",
			}
		},
	},
	{
		tag:   StrategyComparison,
		match: containsAny(" vs ", "versus", "compare", "difference between", "better than"),
		augment: func(q string) QueryAugmentation {
			return QueryAugmentation{
				Tag:   StrategyComparison,
				Query: q + " comparison review",
				Note:  "biased toward comparison articles",
			}
		},
	},
	{
		tag:   StrategyLocalInfo,
		match: containsAny("near me", "nearby", "local", "in my area", "closest"),
		augment: func(q string) QueryAugmentation {
			return QueryAugmentation{
				Tag:   StrategyLocalInfo,
				Query: q + " location hours",
				Note:  "biased toward local listings",
			}
		},
	},
	{
		tag:   StrategyHealth,
		match: containsAny("symptom", "treatment", "medication", "diagnosis", "side effect"),
		augment: func(q string) QueryAugmentation {
			return QueryAugmentation{
				Tag:   StrategyHealth,
				Query: q + " medical reference",
				Note:  "biased toward clinical sources",
			}
		},
	},
	{
		tag:   StrategyTechnical,
		match: containsAny("error", "stack trace", "documentation", "api reference", "how to configure"),
		augment: func(q string) QueryAugmentation {
			return QueryAugmentation{
				Tag:   StrategyTechnical,
				Query: q + " docs",
				Note:  "biased toward documentation",
			}
		},
	},
}

// Enhance applies the first matching strategy to query. ok is false when no
// strategy matched and the query should be used as-is.
func Enhance(query string) (QueryAugmentation, bool) {
	lowered := strings.ToLower(query)
	for _, s := range strategies {
		if s.match(lowered) {
			return s.augment(query), true
		}
	}
	return QueryAugmentation{}, false
}

func containsAny(needles ...string) func(q string) bool {
	return func(q string) bool {
		for _, n := range needles {
			if strings.Contains(q, n) {
				return true
			}
		}
		return false
	}
}
