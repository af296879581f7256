package internal

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"sjsage522/pricemonitor/helpers"
	"sjsage522/pricemonitor/internal/api"
	"sjsage522/pricemonitor/internal/monitoring"
	"sjsage522/pricemonitor/logger"
	"sjsage522/pricemonitor/services/cache"
	"sjsage522/pricemonitor/services/notifier"
	"sjsage522/pricemonitor/services/proxy"
	"sjsage522/pricemonitor/services/store"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache    cache.CacheService
	Store    store.Store
	Notifier notifier.Notifier
	Proxy    proxy.ProxyManager
	Registry *prometheus.Registry
	Metrics  *monitoring.Metrics
	Failures helpers.LoggerInterface
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecks returns a check for every backing service that can be pinged
func (d *Dependencies) HealthChecks() map[string]api.HealthCheck {
	checks := make(map[string]api.HealthCheck)
	if p, ok := d.Store.(pinger); ok {
		checks["store"] = p.Ping
	}
	if p, ok := d.Notifier.(pinger); ok {
		checks["notifier"] = p.Ping
	}
	if m, ok := d.Cache.(*cache.MemcacheService); ok {
		checks["cache"] = func(context.Context) error { return m.Ping() }
	}
	return checks
}

// Cleanup closes every service that holds a connection
func (d *Dependencies) Cleanup() {
	if d.Notifier != nil {
		if err := d.Notifier.Close(); err != nil {
			logger.LogError("notifier", err, "Failed to close notifier")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			logger.LogError("store", err, "Failed to close store")
		}
	}
}
