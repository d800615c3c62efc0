// Package metrics holds the Prometheus collectors for the ranking engine and
// its data providers. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
	OutcomeDropped = "dropped"
)

// Metrics is a dedicated registry with the engine collectors.
type Metrics struct {
	Registry *prometheus.Registry

	providerFetches *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	candidates      *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	rankDuration    *prometheus.HistogramVec
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		providerFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "breathway",
				Name:      "provider_fetches_total",
				Help:      "External provider lookups by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "breathway",
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache name and result.",
			},
			[]string{"cache", "result"},
		),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "breathway",
				Name:      "route_candidates_total",
				Help:      "Route candidates accepted by generation strategy.",
			},
			[]string{"strategy"},
		),
		recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "breathway",
				Name:      "recommendations_total",
				Help:      "Final recommendations by source (exposure or model).",
			},
			[]string{"source"},
		),
		rankDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "breathway",
				Name:      "rank_duration_seconds",
				Help:      "Time to rank routes between two points.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"result"},
		),
	}

	m.Registry.MustRegister(
		m.providerFetches,
		m.cacheLookups,
		m.candidates,
		m.recommendations,
		m.rankDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ProviderFetch counts one provider lookup.
func (m *Metrics) ProviderFetch(provider, outcome string) {
	if m == nil {
		return
	}
	m.providerFetches.WithLabelValues(provider, outcome).Inc()
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// Candidate counts a candidate accepted from a generation strategy.
func (m *Metrics) Candidate(strategy string) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(strategy).Inc()
}

// Recommendation counts the source of a final recommendation.
func (m *Metrics) Recommendation(source string) {
	if m == nil {
		return
	}
	m.recommendations.WithLabelValues(source).Inc()
}

// RankDuration observes one RankRoutes call.
func (m *Metrics) RankDuration(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.rankDuration.WithLabelValues(result).Observe(d.Seconds())
}
