// ABOUTME: Prometheus sink counting pipeline events and timing each stage
// ABOUTME: Uses a private registry so several instances can coexist in tests
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records events as Prometheus counters and histograms
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inserted prometheus.Counter
	dupes    prometheus.Counter
}

// NewMetrics creates and registers the pipeline collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actes",
			Name:      "pipeline_events_total",
			Help:      "Pipeline stage outcomes by stage and kind.",
		}, []string{"stage", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "actes",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"stage"}),
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "actes",
			Name:      "corpus_entries_inserted_total",
			Help:      "Chunks stored in the corpus.",
		}),
		dupes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "actes",
			Name:      "corpus_duplicates_total",
			Help:      "Chunks rejected as near-duplicates.",
		}),
	}
	m.registry.MustRegister(m.events, m.duration, m.inserted, m.dupes,
		collectors.NewGoCollector())
	return m
}

// Emit records e
func (m *Metrics) Emit(e Event) {
	m.events.WithLabelValues(e.Stage, e.Kind).Inc()
	m.duration.WithLabelValues(e.Stage).Observe(e.Duration.Seconds())

	if e.Stage == StageIngestBatch {
		if n, ok := intField(e.Fields, "inserted"); ok {
			m.inserted.Add(float64(n))
		}
		if n, ok := intField(e.Fields, "duplicates"); ok {
			m.dupes.Add(float64(n))
		}
	}
}

// Registry returns the registry holding the pipeline collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func intField(fields map[string]any, key string) (int, bool) {
	switch v := fields[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
