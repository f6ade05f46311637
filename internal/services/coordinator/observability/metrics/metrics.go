// Package metrics registers the coordinator's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assetflow"

// Metrics holds every coordinator collector. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transitions       *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	collaborator      *prometheus.CounterVec
	relayPublished    prometheus.Counter
	relayFailures     prometheus.Counter
	relayBacklog      prometheus.Gauge
}

// New creates collectors on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_transitions_total",
				Help:      "Persisted transaction status transitions.",
			},
			[]string{"from", "to"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Coordinator operation latency by outcome code.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		collaborator: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collaborator_failures_total",
				Help:      "Failed calls to the asset ledger and compliance gate.",
			},
			[]string{"collaborator", "operation"},
		),
		relayPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_relay_published_total",
			Help:      "Audit events published to the broker.",
		}),
		relayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_relay_failures_total",
			Help:      "Audit event publish attempts that failed.",
		}),
		relayBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_relay_batch_size",
			Help:      "Entries claimed by the last relay poll.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions,
		m.operationDuration,
		m.collaborator,
		m.relayPublished,
		m.relayFailures,
		m.relayBacklog,
	)
	return m
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Transition counts one persisted status change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// Operation records the latency of one coordinator operation.
func (m *Metrics) Operation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}

// CollaboratorFailure counts a failed ledger or compliance call.
func (m *Metrics) CollaboratorFailure(collaborator, operation string) {
	if m == nil {
		return
	}
	m.collaborator.WithLabelValues(collaborator, operation).Inc()
}

// RelayPublished counts audit events handed to the broker.
func (m *Metrics) RelayPublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.relayPublished.Add(float64(n))
}

// RelayFailed counts failed publish attempts.
func (m *Metrics) RelayFailed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.relayFailures.Add(float64(n))
}

// RelayBatch records the size of the last claimed batch.
func (m *Metrics) RelayBatch(n int) {
	if m == nil {
		return
	}
	m.relayBacklog.Set(float64(n))
}
