package middleware

import (
	"net/http"

	"github.com/Suhaibinator/SPipeline/pkg/circuit"
	"github.com/Suhaibinator/SPipeline/pkg/common"
	"go.uber.org/zap"
)

// CircuitBreakerConfig configures the circuit breaking interceptor.
type CircuitBreakerConfig struct {
	// IsFailure classifies the downstream response status. When nil, any
	// status outside 2xx counts as a failure.
	IsFailure func(status int) bool

	// RejectedHandler is invoked instead of the default 503 response when
	// the breaker refuses a request. Optional.
	RejectedHandler http.Handler

	// Metrics, if non-nil, counts rejected requests by target.
	Metrics *Metrics
}

// CircuitBreaker creates a middleware that guards the downstream handler with
// the given breaker. Requests refused by an open breaker are answered with
// 503 without reaching the handler. A handler panic is recorded as a failure
// and re-raised for the pipeline's recovery backstop.
func CircuitBreaker(config *CircuitBreakerConfig, breaker *circuit.Breaker, logger *zap.Logger) common.Middleware {
	if config == nil {
		config = &CircuitBreakerConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guard(config, breaker, logger, next, w, r)
		})
	}
}

// CircuitBreakerPerTarget creates a middleware that resolves a breaker from
// the registry per request, so each downstream target trips independently.
func CircuitBreakerPerTarget(config *CircuitBreakerConfig, registry *circuit.Registry, target func(r *http.Request) string, logger *zap.Logger) common.Middleware {
	if config == nil {
		config = &CircuitBreakerConfig{}
	}
	if target == nil {
		target = func(r *http.Request) string { return r.URL.Path }
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guard(config, registry.Get(target(r)), logger, next, w, r)
		})
	}
}

func guard(config *CircuitBreakerConfig, breaker *circuit.Breaker, logger *zap.Logger, next http.Handler, w http.ResponseWriter, r *http.Request) {
	if !breaker.Allow() {
		logger.Warn("Circuit open, rejecting request",
			zap.String("target", breaker.Name()),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		config.Metrics.recordBreakerRejected(breaker.Name())
		if config.RejectedHandler != nil {
			config.RejectedHandler.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	rw := newStatusResponseWriter(w)
	completed := false
	defer func() {
		// A panic downstream counts as a failure before the recovery
		// backstop turns it into a 500.
		if !completed {
			breaker.RecordFailure()
		}
	}()

	next.ServeHTTP(rw, r)
	completed = true

	if isFailureStatus(config, rw.status) {
		breaker.RecordFailure()
	} else {
		breaker.RecordSuccess()
	}
}

func isFailureStatus(config *CircuitBreakerConfig, status int) bool {
	if config.IsFailure != nil {
		return config.IsFailure(status)
	}
	return status < 200 || status > 299
}
