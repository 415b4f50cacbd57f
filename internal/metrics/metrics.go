// Package metrics defines the Prometheus collectors used by the ranking
// pipeline and writes them out for the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for rank fetches.
const (
	OutcomeKnown   = "known"
	OutcomeUnknown = "unknown"
)

// Metrics holds all Prometheus collectors for the pipeline. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	RankFetchesTotal    *prometheus.CounterVec
	RankFetchDuration   *prometheus.HistogramVec
	SearchRequestsTotal *prometheus.CounterVec
	SearchResultsCount  prometheus.Histogram
	AggregationDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New creates all collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		RankFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rank_fetches_total",
				Help: "Rank lookups by provider and outcome (known, unknown).",
			},
			[]string{"provider", "outcome"},
		),
		RankFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rank_fetch_duration_seconds",
				Help:    "Rank lookup latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),
		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_requests_total",
				Help: "Search requests by provider and result (ok, error).",
			},
			[]string{"provider", "result"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of hits returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50},
			},
		),
		AggregationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rank_aggregation_duration_seconds",
				Help:    "Time to rank every hit with every provider.",
				Buckets: prometheus.DefBuckets,
			},
		),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.RankFetchesTotal,
		m.RankFetchDuration,
		m.SearchRequestsTotal,
		m.SearchResultsCount,
		m.AggregationDuration,
	)
	return m
}

// Gatherer exposes the registry holding the collectors.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

// ObserveRank records one rank lookup.
func (m *Metrics) ObserveRank(provider string, known bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeUnknown
	if known {
		outcome = OutcomeKnown
	}
	m.RankFetchesTotal.WithLabelValues(provider, outcome).Inc()
	m.RankFetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveSearch records one search request.
func (m *Metrics) ObserveSearch(provider string, hits int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SearchRequestsTotal.WithLabelValues(provider, "error").Inc()
		return
	}
	m.SearchRequestsTotal.WithLabelValues(provider, "ok").Inc()
	m.SearchResultsCount.Observe(float64(hits))
}

// ObserveAggregation records the wall time of one aggregation.
func (m *Metrics) ObserveAggregation(d time.Duration) {
	if m == nil {
		return
	}
	m.AggregationDuration.Observe(d.Seconds())
}

// WriteTextfile writes the current values in the text exposition format,
// atomically replacing path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
