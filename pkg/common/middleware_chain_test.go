package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func appendingMiddleware(order *[]string, name string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, name+"-before")
			next.ServeHTTP(w, r)
			*order = append(*order, name+"-after")
		})
	}
}

func TestMiddlewareChainOrder(t *testing.T) {
	var order []string

	chain := NewMiddlewareChain(
		appendingMiddleware(&order, "outer"),
		appendingMiddleware(&order, "inner"),
	)

	handler := chain.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "terminal")
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "http://example.com/foo", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	expected := []string{
		"outer-before",
		"inner-before",
		"terminal",
		"inner-after",
		"outer-after",
	}
	if len(order) != len(expected) {
		t.Fatalf("Expected %d phases, got %d: %v", len(expected), len(order), order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected phase %d to be %q, got %q", i, v, order[i])
		}
	}
}

func TestMiddlewareChainShortCircuit(t *testing.T) {
	terminalCalls := 0

	chain := NewMiddlewareChain(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	})

	handler := chain.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		terminalCalls++
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "http://example.com/foo", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status code %d, got %d", http.StatusForbidden, w.Code)
	}
	if terminalCalls != 0 {
		t.Errorf("Expected terminal handler to be skipped, got %d calls", terminalCalls)
	}
}

func TestMiddlewareChainAppendPrepend(t *testing.T) {
	var order []string

	chain := NewMiddlewareChain(appendingMiddleware(&order, "middle"))
	chain = chain.Append(appendingMiddleware(&order, "inner"))
	chain = chain.Prepend(appendingMiddleware(&order, "outer"))

	handler := chain.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "terminal")
	})

	req := httptest.NewRequest("GET", "http://example.com/foo", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	expected := []string{
		"outer-before",
		"middle-before",
		"inner-before",
		"terminal",
		"inner-after",
		"middle-after",
		"outer-after",
	}
	for i, v := range expected {
		if i >= len(order) || order[i] != v {
			t.Fatalf("Expected order %v, got %v", expected, order)
		}
	}
}

func TestEmptyMiddlewareChain(t *testing.T) {
	handler := NewMiddlewareChain().ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	req := httptest.NewRequest("GET", "http://example.com/foo", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body %q, got %q", "OK", w.Body.String())
	}
}
