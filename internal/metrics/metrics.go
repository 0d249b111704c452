// Package metrics exposes Prometheus instrumentation for lookups, access
// checks, bot instances and broadcasts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector on a dedicated registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	LookupsTotal        *prometheus.CounterVec
	UpstreamDuration    *prometheus.HistogramVec
	AccessChecksTotal   *prometheus.CounterVec
	Instances           *prometheus.GaugeVec
	BroadcastDeliveries *prometheus.CounterVec
	RateLimited         prometheus.Counter
}

// New creates a Metrics instance with all collectors registered, plus the
// standard Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lookupbot_lookups_total",
			Help: "Lookup requests by kind and terminal outcome",
		}, []string{"kind", "outcome"}),
		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lookupbot_upstream_duration_seconds",
			Help:    "Duration of calls to the external lookup services",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"kind", "succeeded"}),
		AccessChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lookupbot_access_checks_total",
			Help: "Channel membership checks by result",
		}, []string{"result"}),
		Instances: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lookupbot_instances",
			Help: "Bot instances by lifecycle state",
		}, []string{"state"}),
		BroadcastDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lookupbot_broadcast_deliveries_total",
			Help: "Broadcast deliveries by result",
		}, []string{"result"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "lookupbot_rate_limited_total",
			Help: "Lookups refused by the per-user rate limit",
		}),
	}
}

// ObserveLookup records a lookup reaching a terminal outcome.
func (m *Metrics) ObserveLookup(kind, outcome string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.LookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveUpstream records the duration of one upstream call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveUpstream(kind string, succeeded bool, start time.Time) {
	if m == nil {
		return
	}
	label := "false"
	if succeeded {
		label = "true"
	}
	m.UpstreamDuration.WithLabelValues(kind, label).Observe(time.Since(start).Seconds())
}

// ObserveAccess records a membership check result.
func (m *Metrics) ObserveAccess(allowed bool) {
	if m == nil {
		return
	}
	if allowed {
		m.AccessChecksTotal.WithLabelValues("member").Inc()
		return
	}
	m.AccessChecksTotal.WithLabelValues("denied").Inc()
}

// SetInstances replaces the per-state instance gauges.
func (m *Metrics) SetInstances(counts map[string]int) {
	if m == nil {
		return
	}
	m.Instances.Reset()
	for state, n := range counts {
		m.Instances.WithLabelValues(state).Set(float64(n))
	}
}

// ObserveBroadcast records the outcome of one broadcast fan-out.
func (m *Metrics) ObserveBroadcast(delivered, failed int) {
	if m == nil {
		return
	}
	m.BroadcastDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	m.BroadcastDeliveries.WithLabelValues("failed").Add(float64(failed))
}

// IncRateLimited records a refused lookup.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
