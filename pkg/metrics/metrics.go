// Package metrics exposes Prometheus instrumentation for hub sessions.
//
// A nil *Metrics is valid and records nothing, so sessions can be built
// without a registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hublink"

// Authentication kinds.
const (
	AuthInitial = "initial"
	AuthUpdate  = "update"
	AuthRenewal = "renewal"
)

// Metrics holds the session collectors.
type Metrics struct {
	transitions       *prometheus.CounterVec
	connectAttempts   prometheus.Counter
	authentications   *prometheus.CounterVec
	linkAttaches      *prometheus.CounterVec
	linkInvalidations *prometheus.CounterVec
	deferred          prometheus.Counter
	state             prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg creates
// unregistered collectors, which is useful in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "State transitions by entered state",
		}, []string{"state"}),
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connect_attempts_total",
			Help:      "Transport connect attempts",
		}),
		authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "authentications_total",
			Help:      "CBS token exchanges by trigger and result",
		}, []string{"kind", "result"}),
		linkAttaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "attaches_total",
			Help:      "Successful link attaches by endpoint",
		}, []string{"endpoint"}),
		linkInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "invalidations_total",
			Help:      "Cached links dropped after a link error, by endpoint",
		}, []string{"endpoint"}),
		deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "deferred_commands_total",
			Help:      "Commands queued while the session was in a transient state",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (0=disconnected 1=connecting 2=authenticating 3=authenticated 4=disconnecting)",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.transitions,
			m.connectAttempts,
			m.authentications,
			m.linkAttaches,
			m.linkInvalidations,
			m.deferred,
			m.state,
		)
	}
	return m
}

// Transition records entry into state, whose numeric code is set on the
// state gauge.
func (m *Metrics) Transition(state string, code uint8) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
	m.state.Set(float64(code))
}

// ConnectAttempt records a transport connect attempt.
func (m *Metrics) ConnectAttempt() {
	if m == nil {
		return
	}
	m.connectAttempts.Inc()
}

// Authentication records a token exchange outcome.
func (m *Metrics) Authentication(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.authentications.WithLabelValues(kind, result).Inc()
}

// LinkAttached records a cached link attach.
func (m *Metrics) LinkAttached(endpoint string) {
	if m == nil {
		return
	}
	m.linkAttaches.WithLabelValues(endpoint).Inc()
}

// LinkInvalidated records a cached link dropped after a link error.
func (m *Metrics) LinkInvalidated(endpoint string) {
	if m == nil {
		return
	}
	m.linkInvalidations.WithLabelValues(endpoint).Inc()
}

// Deferred records a command queued during a transient state.
func (m *Metrics) Deferred() {
	if m == nil {
		return
	}
	m.deferred.Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
