package urlkit

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

var (
	ErrMetadataEndpoint = errors.New("cloud metadata endpoint is blocked")
	ErrPrivateAddress   = errors.New("private or loopback address is blocked")
)

// metadataHosts are rejected unconditionally, in every environment.
var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"metadata.google.internal": true,
	"metadata.azure.com":       true,
}

// privateV4Blocks covers loopback, RFC 1918, link-local, and CGNAT ranges.
var privateV4Blocks = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"100.64.0.0/10",
)

// privateV6Blocks covers loopback, unique-local, and link-local ranges.
var privateV6Blocks = mustParseCIDRs(
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, block, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, block)
	}
	return out
}

// ValidateScrapeURL decides whether rawURL is a safe scrape target. It
// returns the canonical URL on success.
//
// Cloud metadata hostnames are rejected in all environments. Loopback,
// private, link-local, CGNAT, and unique-local addresses are rejected unless
// development is true. IPv6 addresses that fail to parse are treated as
// private rather than passed through, so unusual address syntax cannot
// bypass the guard.
func ValidateScrapeURL(rawURL string, development bool) (string, error) {
	canonical, err := Normalize(rawURL, 0)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(canonical)
	if err != nil {
		return "", ErrMalformedURL
	}

	host := strings.ToLower(u.Hostname())
	if metadataHosts[host] {
		return "", ErrMetadataEndpoint
	}

	if development {
		return canonical, nil
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return "", ErrPrivateAddress
	}

	if isIPLiteral(host) {
		if isPrivateAddress(host) {
			return "", ErrPrivateAddress
		}
	}

	return canonical, nil
}

// isIPLiteral reports whether host looks like an IP address rather than a
// DNS name.
func isIPLiteral(host string) bool {
	if strings.Contains(host, ":") {
		return true // only IPv6 literals contain colons after Hostname()
	}
	return net.ParseIP(host) != nil
}

// isPrivateAddress reports whether host is a loopback/private/link-local
// address. Unparsable IPv6-looking input is fail-closed.
func isPrivateAddress(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		// Zone IDs, malformed literals: treat as private.
		return strings.Contains(host, ":")
	}

	// IPv4-mapped IPv6 recurses through the IPv4 check via To4.
	if v4 := ip.To4(); v4 != nil {
		for _, block := range privateV4Blocks {
			if block.Contains(v4) {
				return true
			}
		}
		return false
	}

	for _, block := range privateV6Blocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
