package search

import "context"

// Provider is one search backend in the fallback chain. Adapters map their
// own response shape into []SearchResult and apply the field caps before
// returning.
type Provider interface {
	Name() string
	// Available reports whether the provider is configured (API key present,
	// base URL set). Unavailable providers are skipped without counting as
	// failures.
	Available() bool
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}
