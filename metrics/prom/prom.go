// Package prom exports cache metrics to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/textcache/cache"
)

// Adapter implements cache.Metrics on top of Prometheus collectors.
// Safe for concurrent use.
type Adapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  *prometheus.CounterVec
	rejects *prometheus.CounterVec
	size    prometheus.Gauge
}

// New constructs the adapter and registers its collectors.
//   - reg:         registry (nil => prometheus.DefaultRegisterer)
//   - ns, sub:     namespace and subsystem
//   - constLabels: static labels for every metric (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels}
	}
	a := &Adapter{
		hits:    prometheus.NewCounter(opts("hits_total", "Cache hits")),
		misses:  prometheus.NewCounter(opts("misses_total", "Cache misses")),
		evicts:  prometheus.NewCounterVec(opts("evictions_total", "Entries evicted, by reason"), []string{"reason"}),
		rejects: prometheus.NewCounterVec(opts("rejections_total", "Refused puts, by reason"), []string{"reason"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
	}
	// Pre-create label values so the series exist before the first event.
	for _, r := range []cache.EvictReason{cache.EvictCapacity, cache.EvictMemory, cache.EvictAdmission, cache.EvictManual} {
		a.evicts.WithLabelValues(r.String())
	}
	for _, r := range []cache.RejectReason{cache.RejectInvalid, cache.RejectCapacity, cache.RejectClosed} {
		a.rejects.WithLabelValues(r.String())
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.rejects, a.size)
	return a
}

func (a *Adapter) Hit() { a.hits.Inc() }

func (a *Adapter) Miss() { a.misses.Inc() }

// Evict adds n to the eviction counter of reason.
func (a *Adapter) Evict(r cache.EvictReason, n int) {
	a.evicts.WithLabelValues(r.String()).Add(float64(n))
}

func (a *Adapter) Reject(r cache.RejectReason) {
	a.rejects.WithLabelValues(r.String()).Inc()
}

// Size sets the resident entry gauge.
func (a *Adapter) Size(entries int) { a.size.Set(float64(entries)) }

var _ cache.Metrics = (*Adapter)(nil)
