package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sjsage522/pricemonitor/logger"
)

// ProxyManager hands out outbound proxies for page fetches
type ProxyManager interface {
	// Next returns the proxy for the next request, nil for a direct connection
	Next() *url.URL
	// MarkFailed records a failed request through the proxy
	MarkFailed(proxyURL *url.URL)
	// MarkHealthy records a successful request through the proxy
	MarkHealthy(proxyURL *url.URL)
	// Stats returns a snapshot of every configured proxy
	Stats() []ProxyInfo
}

// ProxyInfo holds proxy state
type ProxyInfo struct {
	URL      string    `json:"url"`
	Failures int       `json:"failures"`
	LastUsed time.Time `json:"last_used"`
	Working  bool      `json:"working"`
}

type proxyEntry struct {
	url      *url.URL
	failures int
	lastUsed time.Time
}

// RoundRobinManager rotates sequentially over a fixed proxy list,
// skipping proxies that failed maxFailures times in a row.
type RoundRobinManager struct {
	mu          sync.Mutex
	proxies     []*proxyEntry
	index       int
	maxFailures int
}

// ParseList splits a comma separated PROXY_URLS value
func ParseList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewRoundRobinManager validates the proxy URLs and creates a manager
func NewRoundRobinManager(rawURLs []string, maxFailures int) (*RoundRobinManager, error) {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	m := &RoundRobinManager{maxFailures: maxFailures}
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
		}
		switch u.Scheme {
		case "http", "https", "socks5":
		default:
			return nil, fmt.Errorf("invalid proxy url %q: unsupported scheme %q", raw, u.Scheme)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q: missing host", raw)
		}
		m.proxies = append(m.proxies, &proxyEntry{url: u})
	}

	logger.ForFetcher().Info().Int("count", len(m.proxies)).Msg("Proxy manager initialized")
	return m, nil
}

// Next returns the next usable proxy, or nil when none is configured.
// When every proxy is over the failure limit the counters are reset.
func (m *RoundRobinManager) Next() *url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.proxies) == 0 {
		return nil
	}

	for range 2 {
		for i := 0; i < len(m.proxies); i++ {
			entry := m.proxies[m.index]
			m.index = (m.index + 1) % len(m.proxies)
			if entry.failures < m.maxFailures {
				entry.lastUsed = time.Now()
				return entry.url
			}
		}

		logger.ForFetcher().Warn().Msg("All proxies failing, resetting failure counters")
		for _, entry := range m.proxies {
			entry.failures = 0
		}
	}
	return nil
}

// ProxyFunc implements the http.Transport.Proxy hook
func (m *RoundRobinManager) ProxyFunc(_ *http.Request) (*url.URL, error) {
	return m.Next(), nil
}

// MarkFailed increments the failure counter for proxyURL
func (m *RoundRobinManager) MarkFailed(proxyURL *url.URL) {
	if proxyURL == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.proxies {
		if entry.url.String() == proxyURL.String() {
			entry.failures++
			return
		}
	}
}

// MarkHealthy clears the failure counter for proxyURL
func (m *RoundRobinManager) MarkHealthy(proxyURL *url.URL) {
	if proxyURL == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.proxies {
		if entry.url.String() == proxyURL.String() {
			entry.failures = 0
			return
		}
	}
}

// Stats returns a snapshot of every configured proxy
func (m *RoundRobinManager) Stats() []ProxyInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]ProxyInfo, 0, len(m.proxies))
	for _, entry := range m.proxies {
		stats = append(stats, ProxyInfo{
			URL:      entry.url.Redacted(),
			Failures: entry.failures,
			LastUsed: entry.lastUsed,
			Working:  entry.failures < m.maxFailures,
		})
	}
	return stats
}
