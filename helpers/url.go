package helpers

import (
	"net/url"
	"strings"
)

// IsValidURL reports whether raw is an absolute http(s) URL with a host
func IsValidURL(raw string) bool {
	if strings.TrimSpace(raw) != raw || raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" || strings.ContainsAny(host, " _") {
		return false
	}
	return !strings.HasPrefix(host, ".") && !strings.HasSuffix(host, "..")
}

// HostKey returns the lower-cased host of raw, used for per-host cache keys
func HostKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
