// Package metrics collects and exposes Prometheus metrics for row mutations
// and remote document store calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is the Prometheus-backed recorder used by the application layer.
type Collector struct {
	mutations       *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
	remoteCalls     *prometheus.CounterVec
	remoteLatency   *prometheus.HistogramVec
	sessionEvents   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policypanel_row_mutations_total",
			Help: "Row mutations by table, operation and outcome.",
		}, []string{"table", "op", "outcome"}),
		mutationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "policypanel_row_mutation_duration_seconds",
			Help:    "End-to-end latency of row mutations, including the remote read and write.",
			Buckets: prometheus.DefBuckets,
		}, []string{"table", "op"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policypanel_remote_calls_total",
			Help: "Remote document store calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "policypanel_remote_call_duration_seconds",
			Help:    "Latency of remote document store calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policypanel_session_events_total",
			Help: "Credential lifecycle transitions by resulting state.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		c.mutations,
		c.mutationLatency,
		c.remoteCalls,
		c.remoteLatency,
		c.sessionEvents,
	)

	return c
}

// ObserveMutation records one append or update attempt. outcome is "ok" or an
// error code.
func (c *Collector) ObserveMutation(table, op, outcome string, d time.Duration) {
	c.mutations.WithLabelValues(table, op, outcome).Inc()
	c.mutationLatency.WithLabelValues(table, op).Observe(d.Seconds())
}

// ObserveRemoteCall records one get or put against the remote store.
func (c *Collector) ObserveRemoteCall(op, outcome string, d time.Duration) {
	c.remoteCalls.WithLabelValues(op, outcome).Inc()
	c.remoteLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveSessionEvent counts a credential state transition.
func (c *Collector) ObserveSessionEvent(state string) {
	c.sessionEvents.WithLabelValues(state).Inc()
}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
