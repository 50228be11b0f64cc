// Package metrics instruments the grove for operational observability:
// per-subsystem counters (ops performed), gauges (tree sizes, cache
// occupancy) and histograms (operation latency, proof size). It keeps the
// teacher's Registry-with-get-or-create-semantics shape
// (_teacher/metrics/registry.go) but, unlike the teacher's own hand-rolled
// Prometheus text exporter (_teacher/metrics/prometheus_exporter.go),
// backs every metric with github.com/prometheus/client_golang directly —
// the teacher's go.mod already carries that dependency, and there is no
// reason to hand-roll exposition format when the real library is in the
// stack.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics registered by the grove, keyed by name, with
// get-or-create semantics so callers never need to check for nil
// (_teacher/metrics/registry.go).
type Registry struct {
	reg        *prometheus.Registry
	namespace  string
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// DefaultRegistry is the process-wide registry used by the package-level
// convenience constructors.
var DefaultRegistry = NewRegistry("grovedb")

// NewRegistry creates an empty Registry backed by its own
// prometheus.Registry, namespacing every metric under namespace.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		reg:        prometheus.NewRegistry(),
		namespace:  namespace,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Prometheus returns the underlying prometheus.Registry, e.g. to mount a
// promhttp.Handler in an embedding application.
func (r *Registry) Prometheus() *prometheus.Registry { return r.reg }

// Counter returns the counter registered under name, creating and
// registering it on first use.
func (r *Registry) Counter(name, help string) prometheus.Counter {
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      help,
	})
	r.reg.MustRegister(c)
	r.counters[name] = c
	return c
}

// Gauge returns the gauge registered under name, creating and registering
// it on first use.
func (r *Registry) Gauge(name, help string) prometheus.Gauge {
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      help,
	})
	r.reg.MustRegister(g)
	r.gauges[name] = g
	return g
}

// Histogram returns the histogram registered under name, creating and
// registering it with the given bucket boundaries on first use.
func (r *Registry) Histogram(name, help string, buckets []float64) prometheus.Histogram {
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
	r.reg.MustRegister(h)
	r.histograms[name] = h
	return h
}
