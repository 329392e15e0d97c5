package docserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics counts document operations by collection.
type Metrics struct {
	registry *prometheus.Registry
	ops      *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewMetrics registers the server collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libractl",
			Subsystem: "docserver",
			Name:      "operations_total",
			Help:      "Document operations served, by collection and operation.",
		}, []string{"collection", "op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libractl",
			Subsystem: "docserver",
			Name:      "operation_failures_total",
			Help:      "Document operations that returned an error status.",
		}, []string{"collection", "op", "status"}),
	}
	reg.MustRegister(
		m.ops,
		m.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observe(collection, op string) {
	m.ops.WithLabelValues(collection, op).Inc()
}

func (m *Metrics) fail(collection, op, status string) {
	m.failures.WithLabelValues(collection, op, status).Inc()
}
