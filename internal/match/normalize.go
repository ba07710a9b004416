package match

import (
	"net/url"
	"strings"
)

// Normalize prepares a URL for policy comparison: trims whitespace,
// coerces an https:// scheme when none is present, strips trailing
// slashes. Idempotent, never fails; empty input stays empty.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	// Strip trailing slashes without eating the scheme separator.
	for strings.HasSuffix(s, "/") && !strings.HasSuffix(s, "://") {
		s = s[:len(s)-1]
	}
	return s
}

// hostOf extracts the lowercased host from a normalized URL, with any
// leading www. label removed so www.example.com and example.com compare
// equal under the domain policy. Empty on parse failure.
func hostOf(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
