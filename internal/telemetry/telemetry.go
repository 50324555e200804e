// Package telemetry exposes Prometheus metrics for the core's own
// operational health, scraped via /metrics on the command surface.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every gauge/counter the core updates.
type Metrics struct {
	RegistryProcesses      *prometheus.GaugeVec
	RingBufferDroppedTotal prometheus.Counter
	PortScanDuration       prometheus.Histogram
	NetSampleErrorsTotal   prometheus.Counter
}

// New registers every metric against a fresh registry and returns both.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		RegistryProcesses: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_registry_processes",
			Help: "Number of supervised processes currently in the registry, by state.",
		}, []string{"state"}),
		RingBufferDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ringbuffer_dropped_total",
			Help: "Cumulative count of log lines evicted from a process ring buffer.",
		}),
		PortScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_portscan_duration_seconds",
			Help:    "Duration of scan_ports calls.",
			Buckets: prometheus.DefBuckets,
		}),
		NetSampleErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_netsample_errors_total",
			Help: "Cumulative count of failed network counter samples.",
		}),
	}
	return m, reg
}

// ObserveRegistry recomputes the per-state process gauges from a
// registry snapshot. Callers pass already-counted state->count pairs so
// this package stays free of a dependency on the registry package.
func (m *Metrics) ObserveRegistry(counts map[string]int) {
	for state, n := range counts {
		m.RegistryProcesses.WithLabelValues(state).Set(float64(n))
	}
}
