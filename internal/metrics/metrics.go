// Package metrics defines the Prometheus collectors the cache manager
// and the debug HTTP server update as they run. Collectors are fields on a Metrics
// value registered against a caller-supplied registry, never package
// globals, matching this module's no-global-mutable-state discipline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector this module exposes.
type Metrics struct {
	CacheStale     prometheus.Gauge
	IngestFailures prometheus.Counter
	EventsCached   prometheus.Gauge
}

// New creates and registers a Metrics against reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		CacheStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "calendarbot_cache_stale",
			Help: "1 if the event cache is past its TTL, 0 otherwise.",
		}),
		IngestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calendarbot_ingest_failures_total",
			Help: "Count of ingest batches that failed to write.",
		}),
		EventsCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "calendarbot_events_cached",
			Help: "Number of events currently stored in the cache.",
		}),
	}
	reg.MustRegister(m.CacheStale, m.IngestFailures, m.EventsCached)
	return m
}

// SetStale records the current staleness state as 0 or 1.
func (m *Metrics) SetStale(stale bool) {
	if stale {
		m.CacheStale.Set(1)
		return
	}
	m.CacheStale.Set(0)
}
