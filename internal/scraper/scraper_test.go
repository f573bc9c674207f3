package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/common/config"
	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
)

func newTestScraper(t *testing.T, development bool) *Scraper {
	t.Helper()
	return New(config.ScraperConfig{
		Enabled:      true,
		TopSources:   2,
		Timeout:      3000,
		MaxBodyBytes: 1 << 20,
		MaxTextChars: 500,
	}, development, logger.NewTestLogger(t))
}

func TestScrape_ExtractsTitleAndVisibleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head>
			<title>Quantum Networking Primer</title>
			<style>body { color: red }</style>
			<script>var tracking = true;</script>
		</head><body>
			<nav>Home | About</nav>
			<h1>Quantum Networking</h1>
			<p>Entanglement distribution over fiber is advancing quickly.</p>
			<footer>Copyright</footer>
		</body></html>`))
	}))
	defer server.Close()

	s := newTestScraper(t, true)
	page, err := s.Scrape(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Quantum Networking Primer", page.Title)
	assert.Contains(t, page.Text, "Entanglement distribution over fiber")
	assert.NotContains(t, page.Text, "tracking", "script content must be dropped")
	assert.NotContains(t, page.Text, "color: red", "style content must be dropped")
	assert.NotContains(t, page.Text, "Home | About", "nav chrome must be dropped")
}

func TestScrape_TruncatesAtWordBoundary(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 200)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>" + long + "</p></body></html>"))
	}))
	defer server.Close()

	s := newTestScraper(t, true)
	page, err := s.Scrape(context.Background(), server.URL)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(page.Text), 500)
	assert.False(t, strings.HasSuffix(page.Text, "lor"), "truncation must not tear words")
}

func TestScrape_BlocksPrivateTargetOutsideDevelopment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>should never be reached</body></html>"))
	}))
	defer server.Close()

	s := newTestScraper(t, false)
	_, err := s.Scrape(context.Background(), server.URL)
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeScrapeBlocked, stdErr.Code)
}

func TestScrape_BlocksMetadataEndpointEvenInDevelopment(t *testing.T) {
	s := newTestScraper(t, true)
	_, err := s.Scrape(context.Background(), "http://169.254.169.254/latest/meta-data/")
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeScrapeBlocked, stdErr.Code)
}

func TestScrape_RejectsNonHTMLContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7"))
	}))
	defer server.Close()

	s := newTestScraper(t, true)
	_, err := s.Scrape(context.Background(), server.URL)
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeScrapeFailed, stdErr.Code)
}

func TestScrape_NonOKStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	s := newTestScraper(t, true)
	_, err := s.Scrape(context.Background(), server.URL)
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Contains(t, stdErr.Details, "HTTP 410")
}
