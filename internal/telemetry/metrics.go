package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the Atlas orchestrator.
type Metrics struct {
	QueryTotal            *prometheus.CounterVec
	QueryDurationMs       *prometheus.HistogramVec
	CacheLookupTotal      *prometheus.CounterVec
	DedupTotal            *prometheus.CounterVec
	EmbeddingBatchSize    prometheus.Histogram
	FallbackTotal         *prometheus.CounterVec
	CostUSDTotal          *prometheus.CounterVec
	SavedUSDTotal         *prometheus.CounterVec
	AggregationDurationMs prometheus.Histogram
	SubAnalysisFailTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on the
// default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics on reg. Tests pass a fresh
// registry to avoid duplicate-registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueryTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_query_total",
			Help: "Total number of queries processed by the orchestrator.",
		}, []string{"tier", "model", "status"}),

		QueryDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "atlas_query_duration_ms",
			Help:    "Total query duration in milliseconds (including provider latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"tier"}),

		CacheLookupTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_cache_lookup_total",
			Help: "Response cache lookups by outcome (exact, similar, miss).",
		}, []string{"outcome"}),

		DedupTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_dedup_total",
			Help: "Deduplicator passes by outcome (coalesced, partial, recent, executed).",
		}, []string{"outcome"}),

		EmbeddingBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "atlas_embedding_batch_size",
			Help:    "Number of texts per upstream embedding call.",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		}),

		FallbackTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_fallback_total",
			Help: "Tier escalations during routed execution.",
		}, []string{"from", "to"}),

		CostUSDTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_cost_usd_total",
			Help: "Estimated provider spend in USD.",
		}, []string{"tier", "model"}),

		SavedUSDTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_saved_usd_total",
			Help: "Estimated avoided spend in USD by source (cache, dedup, batch, route).",
		}, []string{"source"}),

		AggregationDurationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "atlas_aggregation_duration_ms",
			Help:    "Wall time of the parallel intelligence fan-out in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}),

		SubAnalysisFailTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_sub_analysis_fail_total",
			Help: "Sub-analysis failures inside the aggregator, by source.",
		}, []string{"source"}),
	}
}

// RecordQuery records metrics for a completed single-model query.
func (m *Metrics) RecordQuery(labels QueryLabels) {
	m.QueryTotal.WithLabelValues(labels.Tier, labels.Model, labels.Status).Inc()
	m.QueryDurationMs.WithLabelValues(labels.Tier).Observe(labels.DurationMs)

	if labels.CostUSD > 0 {
		m.CostUSDTotal.WithLabelValues(labels.Tier, labels.Model).Add(labels.CostUSD)
	}
}

// RecordCacheLookup records a response-cache lookup outcome.
func (m *Metrics) RecordCacheLookup(outcome string) {
	m.CacheLookupTotal.WithLabelValues(outcome).Inc()
}

// RecordDedup records a deduplicator outcome.
func (m *Metrics) RecordDedup(outcome string) {
	m.DedupTotal.WithLabelValues(outcome).Inc()
}

// RecordFallback records one tier escalation.
func (m *Metrics) RecordFallback(from, to string) {
	m.FallbackTotal.WithLabelValues(from, to).Inc()
}

// RecordSaving records avoided spend attributed to a source.
func (m *Metrics) RecordSaving(source string, amountUSD float64) {
	if amountUSD > 0 {
		m.SavedUSDTotal.WithLabelValues(source).Add(amountUSD)
	}
}

// RecordAggregation records the fan-out wall time and any failed sources.
func (m *Metrics) RecordAggregation(durationMs float64, failedSources []string) {
	m.AggregationDurationMs.Observe(durationMs)
	for _, src := range failedSources {
		m.SubAnalysisFailTotal.WithLabelValues(src).Inc()
	}
}

// QueryLabels holds the label values for recording a query.
type QueryLabels struct {
	Tier       string
	Model      string
	Status     string
	DurationMs float64
	CostUSD    float64
}
