// Package metrics holds the Prometheus collectors of the feed service and
// the read API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/consensus-cli/internal/model"
)

const namespace = "consensus"

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Reconciliations *prometheus.CounterVec
	Anomalies       *prometheus.CounterVec
	Suggestions     prometheus.Counter
	FeedBuilds      *prometheus.CounterVec
	FeedDuration    prometheus.Histogram
	CacheLookups    *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	RateLimited     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Reconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Proposals reconciled, by kind",
		}, []string{"kind"}),
		Anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Data-quality anomalies found while reconciling, by code",
		}, []string{"code"}),
		Suggestions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_total",
			Help:      "Suggestions emitted to viewers",
		}),
		FeedBuilds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_builds_total",
			Help:      "Feed builds, by outcome",
		}, []string{"outcome"}),
		FeedDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_build_duration_seconds",
			Help:      "Time to assemble one viewer feed",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_lookups_total",
			Help:      "Snapshot cache lookups, by entity and result",
		}, []string{"entity", "result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}
}

// NewRegistry returns a registry with the Go and process collectors and a
// Metrics registered on it.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

// ObserveTally records one reconciliation and its anomalies.
func (m *Metrics) ObserveTally(kind model.Kind, res model.AggregateResult) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(kind.String()).Inc()
	for _, a := range res.Anomalies {
		m.Anomalies.WithLabelValues(string(a.Code)).Inc()
	}
}

// ObserveSuggestions records n emitted suggestions.
func (m *Metrics) ObserveSuggestions(n int) {
	if m == nil {
		return
	}
	m.Suggestions.Add(float64(n))
}

// ObserveFeed records one feed build.
func (m *Metrics) ObserveFeed(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.FeedBuilds.WithLabelValues(outcome).Inc()
	m.FeedDuration.Observe(d.Seconds())
}

// CacheLookup records a snapshot cache hit or miss for entity.
func (m *Metrics) CacheLookup(entity string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(entity, result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, statusLabel(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
