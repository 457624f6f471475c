package config

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeOrigin turns "example.com", "https://Example.com/" or
// "http://localhost:5173" into a CORS origin (scheme://host[:port]).
// A missing scheme defaults to https. Paths, queries and wildcards are rejected.
func NormalizeOrigin(raw string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", fmt.Errorf("origin cannot be empty")
	}
	if strings.Contains(cleaned, "*") {
		return "", fmt.Errorf("wildcards are not allowed in origins")
	}
	if !strings.Contains(cleaned, "://") {
		cleaned = "https://" + cleaned
	}

	u, err := url.Parse(strings.TrimSuffix(cleaned, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid origin %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("origin scheme must be http or https")
	}
	if u.Host == "" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("origin must not include path, query, or fragment")
	}

	return u.Scheme + "://" + u.Host, nil
}
