// Package urlkit canonicalizes research-source URLs and guards page scraping
// against server-side request forgery.
package urlkit

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrEmptyURL          = errors.New("empty or whitespace URL")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrMalformedURL      = errors.New("malformed URL")
)

// trackingParams are removed when building deduplication keys.
var trackingParams = map[string]bool{
	"gclid":  true,
	"fbclid": true,
	"ref":    true,
}

// Normalize canonicalizes rawURL into an absolute http(s) URL.
//
// Accepted inputs: absolute http(s) URLs, protocol-relative URLs
// ("//host/path", treated as https), and bare domains containing a dot
// (auto-prefixed with "https://"). Any other scheme is rejected.
//
// maxLen truncates the canonical form after canonicalization, never before,
// so truncation cannot corrupt a valid percent-encoding mid-escape. 0 means
// unlimited.
func Normalize(rawURL string, maxLen int) (string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", ErrEmptyURL
	}

	switch {
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case hasScheme(s):
		lower := strings.ToLower(s)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			return "", ErrUnsupportedScheme
		}
	case strings.Contains(hostPart(s), "."):
		s = "https://" + s
	default:
		return "", ErrMalformedURL
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", ErrMalformedURL
	}
	if u.Host == "" {
		return "", ErrMalformedURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	out := u.String()
	if maxLen > 0 && len(out) > maxLen {
		out = truncateClean(out, maxLen)
	}
	return out, nil
}

// NormalizeForKey produces the deduplication/ranking key for a URL: the host
// is lowercased with a leading "www." stripped, tracking parameters
// (utm_*, gclid, fbclid, ref) are deleted, the fragment is dropped, and one
// trailing slash is trimmed from non-root paths.
//
// The function is idempotent: NormalizeForKey(NormalizeForKey(u)) ==
// NormalizeForKey(u).
func NormalizeForKey(rawURL string) string {
	canonical, err := Normalize(rawURL, 0)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}

	u, err := url.Parse(canonical)
	if err != nil {
		return strings.ToLower(canonical)
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	u.Host = host

	q := u.Query()
	for param := range q {
		lower := strings.ToLower(param)
		if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	u.RawFragment = ""

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}

	return strings.ToLower(u.String())
}

// hasScheme reports whether s starts with a URI scheme per RFC 3986.
func hasScheme(s string) bool {
	for i, ch := range s {
		switch {
		case ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z':
		case i > 0 && (ch >= '0' && ch <= '9' || ch == '+' || ch == '-' || ch == '.'):
		case ch == ':':
			return i > 0
		default:
			return false
		}
	}
	return false
}

// hostPart extracts the portion of a schemeless URL up to the first slash.
func hostPart(s string) string {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		return s[:i]
	}
	return s
}

// truncateClean cuts s to at most maxLen bytes without splitting a
// percent-encoding triplet.
func truncateClean(s string, maxLen int) string {
	s = s[:maxLen]
	// A '%' within the last two bytes would leave a dangling escape.
	for i := len(s) - 1; i >= 0 && i >= len(s)-2; i-- {
		if s[i] == '%' {
			return s[:i]
		}
	}
	return s
}
