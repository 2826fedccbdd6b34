package maintenance

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of the maintenance scheduler.
type Metrics struct {
	Passes       *prometheus.CounterVec
	PassDuration prometheus.Histogram
	MemoryUsage  prometheus.Gauge
	Evicted      *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	passes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "maintenance",
		Name:      "passes_total",
		Help:      "Maintenance passes by result (idle, evicted, skipped, failed)",
	}, []string{"result"})

	passDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "maintenance",
		Name:      "pass_duration_seconds",
		Help:      "Duration of maintenance passes",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})

	memoryUsage := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "maintenance",
		Name:      "memory_usage_percent",
		Help:      "Last sampled memory utilization in percent",
	})

	evicted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "maintenance",
		Name:      "evicted_entries_total",
		Help:      "Entries evicted by maintenance passes, by trigger",
	}, []string{"trigger"})

	reg.MustRegister(passes, passDuration, memoryUsage, evicted)

	return &Metrics{
		Passes:       passes,
		PassDuration: passDuration,
		MemoryUsage:  memoryUsage,
		Evicted:      evicted,
	}
}
