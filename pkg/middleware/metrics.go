package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors the interceptors report to.
// A nil *Metrics is valid and records nothing, so callers can leave
// instrumentation off without guarding every call site.
type Metrics struct {
	authFailures       *prometheus.CounterVec
	rateLimitRejected  *prometheus.CounterVec
	breakerRejected    *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
}

// NewMetrics creates the interceptor collectors and registers them with reg.
// Passing prometheus.DefaultRegisterer is the common case.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Requests rejected by the authentication interceptor, by reason.",
		}, []string{"reason"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejected_total",
			Help:      "Requests rejected by the rate limiting interceptor, by bucket.",
		}, []string{"bucket"}),
		breakerRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_rejected_total",
			Help:      "Requests rejected without forwarding because the breaker was open.",
		}, []string{"target"}),
		breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_transitions_total",
			Help:      "Circuit breaker state transitions, by target and edge.",
		}, []string{"target", "from", "to"}),
	}
	reg.MustRegister(m.authFailures, m.rateLimitRejected, m.breakerRejected, m.breakerTransitions)
	return m
}

func (m *Metrics) recordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordRateLimitRejected(bucket string) {
	if m == nil {
		return
	}
	m.rateLimitRejected.WithLabelValues(bucket).Inc()
}

func (m *Metrics) recordBreakerRejected(target string) {
	if m == nil {
		return
	}
	m.breakerRejected.WithLabelValues(target).Inc()
}

// RecordBreakerTransition is exported so it can be wired as a
// circuit.Config.OnStateChange callback.
func (m *Metrics) RecordBreakerTransition(target, from, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.WithLabelValues(target, from, to).Inc()
}
