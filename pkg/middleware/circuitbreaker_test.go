package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Suhaibinator/SPipeline/pkg/circuit"
	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

func newTestBreaker(t *testing.T, threshold int, timeout time.Duration) (*circuit.Breaker, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	br := circuit.NewBreaker("orders", circuit.Config{
		FailureThreshold: threshold,
		RecoveryTimeout:  timeout,
		Clock:            mock,
	})
	return br, mock
}

func statusHandler(status *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(*status)
	})
}

func TestCircuitBreakerTripsOnFailureStatuses(t *testing.T) {
	br, _ := newTestBreaker(t, 3, 30*time.Second)
	status := http.StatusBadGateway
	var handlerCalls int
	handler := CircuitBreaker(nil, br, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalls++
		w.WriteHeader(status)
	}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/orders", nil))
		if rr.Code != http.StatusBadGateway {
			t.Errorf("Expected status 502 on call %d, got %d", i, rr.Code)
		}
	}
	if br.State() != circuit.StateOpen {
		t.Errorf("Expected open breaker after 3 failures, got %v", br.State())
	}

	// Open breaker answers without forwarding.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/orders", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 from open breaker, got %d", rr.Code)
	}
	if handlerCalls != 3 {
		t.Errorf("Expected 3 handler calls, got %d", handlerCalls)
	}
}

func TestCircuitBreakerSuccessKeepsClosed(t *testing.T) {
	br, _ := newTestBreaker(t, 2, 30*time.Second)
	status := http.StatusInternalServerError
	handler := CircuitBreaker(nil, br, zap.NewNop())(statusHandler(&status))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/orders", nil))
	status = http.StatusOK
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/orders", nil))
	status = http.StatusInternalServerError
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/orders", nil))

	if br.State() != circuit.StateClosed {
		t.Errorf("Expected closed breaker after interleaved success, got %v", br.State())
	}
}

func TestCircuitBreakerRecoveryProbe(t *testing.T) {
	br, mock := newTestBreaker(t, 1, 30*time.Second)
	status := http.StatusBadGateway
	handler := CircuitBreaker(nil, br, zap.NewNop())(statusHandler(&status))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/orders", nil))
	if br.State() != circuit.StateOpen {
		t.Fatalf("Expected open breaker, got %v", br.State())
	}

	mock.Add(30 * time.Second)
	status = http.StatusOK
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/orders", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected probe to reach handler, got %d", rr.Code)
	}
	if br.State() != circuit.StateClosed {
		t.Errorf("Expected closed breaker after successful probe, got %v", br.State())
	}
}

func TestCircuitBreakerRejectedHandler(t *testing.T) {
	br, _ := newTestBreaker(t, 1, 30*time.Second)
	status := http.StatusBadGateway
	config := &CircuitBreakerConfig{
		RejectedHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Fallback", "cached")
			w.WriteHeader(http.StatusOK)
		}),
	}
	handler := CircuitBreaker(config, br, zap.NewNop())(statusHandler(&status))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/orders", nil))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/orders", nil))
	if rr.Code != http.StatusOK || rr.Header().Get("X-Fallback") != "cached" {
		t.Errorf("Expected fallback response, got status %d headers %v", rr.Code, rr.Header())
	}
}

func TestCircuitBreakerCustomFailurePredicate(t *testing.T) {
	br, _ := newTestBreaker(t, 1, 30*time.Second)
	config := &CircuitBreakerConfig{
		IsFailure: func(status int) bool { return status >= 500 },
	}
	status := http.StatusNotFound
	handler := CircuitBreaker(config, br, zap.NewNop())(statusHandler(&status))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/orders", nil))

	if br.State() != circuit.StateClosed {
		t.Errorf("Expected 404 to not count as failure, got %v", br.State())
	}
}

func TestCircuitBreakerPanicCountsAsFailure(t *testing.T) {
	br, _ := newTestBreaker(t, 1, 30*time.Second)
	p, err := pipeline.New(pipeline.Config{
		Middlewares: []Middleware{
			CircuitBreaker(nil, br, zap.NewNop()),
		},
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("downstream fault")
		}),
	})
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}

	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, httptest.NewRequest("GET", "/orders", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 from recovery backstop, got %d", rr.Code)
	}
	if br.State() != circuit.StateOpen {
		t.Errorf("Expected panic to trip the breaker, got %v", br.State())
	}
}

func TestCircuitBreakerPerTargetIsolation(t *testing.T) {
	mock := clock.NewMock()
	registry := circuit.NewRegistry(circuit.Config{
		FailureThreshold: 1,
		RecoveryTimeout:  30 * time.Second,
		Clock:            mock,
	})

	handler := CircuitBreakerPerTarget(nil, registry, nil, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/orders" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/orders", nil))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/orders", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected open breaker for /orders, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/inventory", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected /inventory to stay unaffected, got %d", rr.Code)
	}
}
