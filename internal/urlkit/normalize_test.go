package urlkit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_AbsoluteURL(t *testing.T) {
	out, err := Normalize("https://Example.COM/Page", 0)
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/Page", out)
}

func TestNormalize_ProtocolRelative(t *testing.T) {
	out, err := Normalize("//news.example.org/story", 0)
	assert.NoError(t, err)
	assert.Equal(t, "https://news.example.org/story", out)
}

func TestNormalize_BareDomain(t *testing.T) {
	out, err := Normalize("example.com/path", 0)
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/path", out)
}

func TestNormalize_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"javascript scheme", "javascript:alert(1)"},
		{"data scheme", "data:text/html,<h1>x</h1>"},
		{"ftp scheme", "ftp://example.com/file"},
		{"no dot no scheme", "not-a-url"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.input, 0)
			assert.Error(t, err)
		})
	}
}

func TestNormalize_TruncatesAfterCanonicalization(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("a", 100)
	out, err := Normalize(long, 40)
	assert.NoError(t, err)
	assert.LessOrEqual(t, len(out), 40)
}

func TestNormalize_TruncationNeverSplitsEscape(t *testing.T) {
	// Percent-encoding lands exactly on the cut boundary.
	u := "https://example.com/a%20b%20c%20d"
	for maxLen := 20; maxLen < len(u); maxLen++ {
		out, err := Normalize(u, maxLen)
		assert.NoError(t, err)
		assert.LessOrEqual(t, len(out), maxLen)
		// No trailing partial escape like "%" or "%2".
		if i := strings.LastIndex(out, "%"); i >= 0 {
			assert.GreaterOrEqual(t, len(out)-i, 3, "dangling escape in %q", out)
		}
	}
}

func TestNormalizeForKey_ScenarioC(t *testing.T) {
	assert.Equal(t, "https://example.com/path", NormalizeForKey("EXAMPLE.com/Path/"))
}

func TestNormalizeForKey_StripsWWWAndTracking(t *testing.T) {
	key := NormalizeForKey("https://www.example.com/article?utm_source=feed&utm_medium=rss&gclid=abc&id=7#section")
	assert.Equal(t, "https://example.com/article?id=7", key)
}

func TestNormalizeForKey_RootPathKeepsSlash(t *testing.T) {
	assert.Equal(t, "https://example.com/", NormalizeForKey("https://example.com/"))
}

func TestNormalizeForKey_Idempotent(t *testing.T) {
	inputs := []string{
		"EXAMPLE.com/Path/",
		"https://www.example.com/a?utm_campaign=x&ref=nav#top",
		"//cdn.example.net/asset/",
		"http://sub.domain.example.org/deep/path/?fbclid=123",
		"https://example.com/",
	}

	for _, in := range inputs {
		once := NormalizeForKey(in)
		twice := NormalizeForKey(once)
		assert.Equal(t, once, twice, "not idempotent for %q", in)
	}
}

func TestNormalizeForKey_MergesDuplicates(t *testing.T) {
	a := NormalizeForKey("https://www.Example.com/story/?utm_source=x")
	b := NormalizeForKey("example.com/story")
	assert.Equal(t, a, b)
}
