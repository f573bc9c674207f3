package urlkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateScrapeURL_RejectsPrivateTargets(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{"loopback v4", "http://127.0.0.1/"},
		{"loopback range", "http://127.8.8.8/admin"},
		{"localhost", "http://localhost:3000/"},
		{"localhost subdomain", "http://internal.localhost/"},
		{"rfc1918 10/8", "http://10.0.0.5/"},
		{"rfc1918 172.16/12", "http://172.20.1.1/"},
		{"rfc1918 192.168/16", "http://192.168.1.1/router"},
		{"link local", "http://169.254.1.1/"},
		{"cgnat", "http://100.64.0.1/"},
		{"loopback v6", "http://[::1]/"},
		{"unique local v6", "http://[fc00::1]/"},
		{"link local v6", "http://[fe80::1]/"},
		{"v4 mapped v6", "http://[::ffff:10.0.0.5]/"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateScrapeURL(tc.url, false)
			assert.ErrorIs(t, err, ErrPrivateAddress)
		})
	}
}

func TestValidateScrapeURL_MetadataBlockedEverywhere(t *testing.T) {
	targets := []string{
		"http://169.254.169.254/latest/meta-data/",
		"http://metadata.google.internal/computeMetadata/v1/",
		"https://metadata.azure.com/metadata/instance",
	}

	for _, u := range targets {
		_, err := ValidateScrapeURL(u, false)
		assert.ErrorIs(t, err, ErrMetadataEndpoint, u)

		// Development mode does not relax metadata blocking.
		_, err = ValidateScrapeURL(u, true)
		assert.ErrorIs(t, err, ErrMetadataEndpoint, u)
	}
}

func TestValidateScrapeURL_DevelopmentRelaxesPrivate(t *testing.T) {
	allowed := []string{
		"http://127.0.0.1/",
		"http://10.0.0.5/",
		"http://localhost:8080/page",
	}

	for _, u := range allowed {
		out, err := ValidateScrapeURL(u, true)
		assert.NoError(t, err, u)
		assert.NotEmpty(t, out)
	}
}

func TestValidateScrapeURL_MalformedIPv6FailsClosed(t *testing.T) {
	// Zone IDs and garbage v6 literals must be treated as private, not
	// passed through.
	cases := []string{
		"http://[fe80::1%25eth0]/",
		"http://[::zzzz]/",
	}

	for _, u := range cases {
		_, err := ValidateScrapeURL(u, false)
		assert.Error(t, err, u)
	}
}

func TestValidateScrapeURL_AllowsPublicTargets(t *testing.T) {
	out, err := ValidateScrapeURL("https://example.com/article", false)
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/article", out)

	out, err = ValidateScrapeURL("http://93.184.216.34/", false)
	assert.NoError(t, err)
	assert.Equal(t, "http://93.184.216.34/", out)
}
