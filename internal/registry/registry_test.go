package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/common/logger"
	"research-agent/internal/search"
)

func TestAddSearchResults_DeduplicatesByCanonicalURL(t *testing.T) {
	reg := New(logger.NewTestLogger(t))

	added := reg.AddSearchResults([]search.SearchResult{
		{Title: "Example", URL: "https://EXAMPLE.com/Path/", RelevanceScore: 0.8},
		{Title: "Example dup", URL: "https://www.example.com/path?utm_source=x", RelevanceScore: 0.6},
		{Title: "Other", URL: "https://other.com/a", RelevanceScore: 0.5},
	})

	require.Len(t, added, 2)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, "Example", added[0].Title)
	assert.Equal(t, "Other", added[1].Title)
}

func TestAddSearchResults_MintsUUIDv7ContextIDs(t *testing.T) {
	reg := New(logger.NewTestLogger(t))

	added := reg.AddSearchResults([]search.SearchResult{
		{Title: "A", URL: "https://a.example.com/1"},
		{Title: "B", URL: "https://b.example.com/2"},
	})
	require.Len(t, added, 2)

	seen := map[string]bool{}
	for _, src := range added {
		id, err := uuid.Parse(src.ContextID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
		assert.False(t, seen[src.ContextID], "contextId must be unique")
		seen[src.ContextID] = true
	}
}

func TestAdd_InvalidURLRedactedButResolvable(t *testing.T) {
	reg := New(logger.NewTestLogger(t))

	added := reg.AddSearchResults([]search.SearchResult{
		{Title: "Broken", URL: "javascript:alert(1)"},
		{Title: "Fine", URL: "https://ok.example.com/"},
	})
	require.Len(t, added, 2)

	redacted := added[0]
	assert.NotEmpty(t, redacted.ContextID, "redacted source keeps a resolvable contextId")
	assert.Empty(t, redacted.URL)

	all := reg.Sources()
	assert.Len(t, all, 2)

	persistable := reg.PersistableSources()
	require.Len(t, persistable, 1)
	assert.Equal(t, "Fine", persistable[0].Title)
}

func TestAddScrapedPage_UpgradesExistingSearchResult(t *testing.T) {
	reg := New(logger.NewTestLogger(t))

	added := reg.AddSearchResults([]search.SearchResult{
		{Title: "Landing", URL: "https://docs.example.com/guide", RelevanceScore: 0.7},
	})
	require.Len(t, added, 1)
	original := added[0]

	upgraded, ok := reg.AddScrapedPage("https://www.docs.example.com/guide?utm_medium=cpc", "Guide (full)")
	require.True(t, ok)

	assert.Equal(t, original.ContextID, upgraded.ContextID, "one contextId per logical source")
	assert.Equal(t, TypeScrapedPage, upgraded.Type)
	assert.Equal(t, "Guide (full)", upgraded.Title)
	assert.Equal(t, 1, reg.Len())
}

func TestAddScrapedPage_NewPageMintsFreshSource(t *testing.T) {
	reg := New(logger.NewTestLogger(t))

	src, ok := reg.AddScrapedPage("https://fresh.example.com/article", "Fresh article")
	require.True(t, ok)
	assert.Equal(t, TypeScrapedPage, src.Type)
	assert.NotEmpty(t, src.ContextID)
	assert.Equal(t, "https://fresh.example.com/article", src.URL)
}

func TestAddSummary_NoURL(t *testing.T) {
	reg := New(logger.NewTestLogger(t))

	src := reg.AddSummary("Research summary: quantum networking")
	assert.Equal(t, TypeResearchSummary, src.Type)
	assert.Empty(t, src.URL)
	assert.NotEmpty(t, src.ContextID)

	persistable := reg.PersistableSources()
	require.Len(t, persistable, 1)
	assert.Equal(t, src.ContextID, persistable[0].ContextID)
}

func TestSources_InsertionOrderPreserved(t *testing.T) {
	reg := New(logger.NewTestLogger(t))

	reg.AddSearchResults([]search.SearchResult{
		{Title: "first", URL: "https://one.example.com/"},
		{Title: "second", URL: "https://two.example.com/"},
	})
	reg.AddSummary("third")

	all := reg.Sources()
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Title)
	assert.Equal(t, "second", all[1].Title)
	assert.Equal(t, "third", all[2].Title)
}
