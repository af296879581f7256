package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChecksTotal        *prometheus.CounterVec
	FetchAttemptsTotal *prometheus.CounterVec
	CheckDuration      *prometheus.HistogramVec
	AlertsTotal        prometheus.Counter
	ObservedPrice      *prometheus.GaugeVec
}

// NewMetrics registers the metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "price_monitor_checks_total",
			Help: "The total number of price checks by outcome",
		}, []string{"status", "error_type"}), // status: success, failed
		FetchAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "price_monitor_fetch_attempts_total",
			Help: "The total number of HTTP fetch attempts by outcome",
		}, []string{"outcome"}), // e.g. 'ok', 'transient', 'permanent', 'rate_limited'
		CheckDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "price_monitor_check_duration_seconds",
			Help:    "Duration of a single price check",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"platform"}),
		AlertsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "price_monitor_alerts_total",
			Help: "The total number of price drop alerts delivered",
		}),
		ObservedPrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "price_monitor_observed_price",
			Help: "The most recently observed price per product",
		}, []string{"platform", "url"}),
	}
}

func (m *Metrics) IncCheck(status, errorType string) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(status, errorType).Inc()
}

func (m *Metrics) IncFetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.FetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCheckDuration(platform string, d time.Duration) {
	if m == nil {
		return
	}
	m.CheckDuration.WithLabelValues(platform).Observe(d.Seconds())
}

func (m *Metrics) IncAlert() {
	if m == nil {
		return
	}
	m.AlertsTotal.Inc()
}

func (m *Metrics) SetObservedPrice(platform, url string, price float64) {
	if m == nil {
		return
	}
	m.ObservedPrice.WithLabelValues(platform, url).Set(price)
}
