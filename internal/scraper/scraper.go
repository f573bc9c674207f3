// Package scraper fetches top-ranked result pages and reduces them to plain
// text the synthesis prompt can carry. Every fetch target, including redirect
// hops, passes the SSRF guard first.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"research-agent/internal/common/config"
	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
	"research-agent/internal/urlkit"
)

const userAgent = "research-agent/1.0 (+https://research-agent.dev)"

// Page is the text extracted from one fetched result.
type Page struct {
	URL      string
	Title    string
	Text     string
	Duration time.Duration
}

// Scraper fetches pages over a shared client. The development flag relaxes
// the private-address guard for local testing; metadata endpoints stay
// blocked regardless.
type Scraper struct {
	client       *http.Client
	timeout      time.Duration
	maxBodyBytes int
	maxTextChars int
	development  bool
	logger       logger.Logger
}

func New(cfg config.ScraperConfig, development bool, log logger.Logger) *Scraper {
	timeout := config.Millis(cfg.Timeout, 8*time.Second)

	s := &Scraper{
		timeout:      timeout,
		maxBodyBytes: cfg.MaxBodyBytes,
		maxTextChars: cfg.MaxTextChars,
		development:  development,
		logger: log.With(map[string]interface{}{
			"component": "scraper",
		}),
	}

	s.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			// Redirects can land anywhere, so each hop is re-validated.
			if _, err := urlkit.ValidateScrapeURL(req.URL.String(), development); err != nil {
				return apperrors.NewScrapeBlockedError(req.URL.String(), err.Error())
			}
			return nil
		},
	}
	return s
}

// Scrape fetches one page and extracts its text. The error is always a
// StandardError; callers degrade to the search snippet instead of failing
// the workflow.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	start := time.Now()

	target, err := urlkit.ValidateScrapeURL(rawURL, s.development)
	if err != nil {
		s.logger.Warn("scrape target rejected", map[string]interface{}{
			"url":    rawURL,
			"reason": err.Error(),
		})
		return nil, apperrors.NewScrapeBlockedError(rawURL, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperrors.NewScrapeFailedError(target, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.NewScrapeFailedError(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewScrapeFailedError(target, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		return nil, apperrors.NewScrapeFailedError(target, fmt.Errorf("unsupported content type %q", contentType))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(s.maxBodyBytes)))
	if err != nil {
		return nil, apperrors.NewScrapeFailedError(target, err)
	}

	title, text, err := extractText(body)
	if err != nil {
		return nil, apperrors.NewScrapeFailedError(target, err)
	}
	if len(text) > s.maxTextChars {
		text = truncateClean(text, s.maxTextChars)
	}

	page := &Page{
		URL:      target,
		Title:    title,
		Text:     text,
		Duration: time.Since(start),
	}
	s.logger.Debug("page scraped", map[string]interface{}{
		"url":        target,
		"text_chars": len(text),
		"durationMs": page.Duration.Milliseconds(),
	})
	return page, nil
}

// extractText parses the HTML and flattens visible text, skipping script,
// style and chrome elements.
func extractText(htmlContent []byte) (title, text string, err error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return "", "", fmt.Errorf("parse HTML: %w", err)
	}

	title = findTitle(doc)

	var b strings.Builder
	collectText(doc, &b)
	text = strings.Join(strings.Fields(b.String()), " ")
	return title, text, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(b.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "footer": true, "header": true, "aside": true,
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && skippedTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// truncateClean cuts at the last word boundary before the limit so the
// synthesis prompt never sees a torn word.
func truncateClean(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := text[:max]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}
