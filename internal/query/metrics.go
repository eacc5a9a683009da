package query

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "lcfs_portal"

// Metrics holds the query client collectors.
type Metrics struct {
	Hits         *prometheus.CounterVec
	Fetches      *prometheus.CounterVec
	Deduplicated *prometheus.CounterVec
	Invalidated  *prometheus.CounterVec
	Mutations    *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "query",
			Name:      "cache_hits_total",
			Help:      "Queries answered from a fresh cache entry.",
		}, []string{"resource"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "query",
			Name:      "fetches_total",
			Help:      "Network fetches issued by the query client.",
		}, []string{"resource", "outcome"}),
		Deduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "query",
			Name:      "deduplicated_total",
			Help:      "Queries that joined an in-flight fetch for the same key.",
		}, []string{"resource"}),
		Invalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "query",
			Name:      "invalidated_entries_total",
			Help:      "Cache entries marked stale by invalidation.",
		}, []string{"resource"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "query",
			Name:      "mutations_total",
			Help:      "Mutations triggered, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Fetches, m.Deduplicated, m.Invalidated, m.Mutations)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
