package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestTraceMiddlewareGeneratesID(t *testing.T) {
	var got string
	handler := TraceMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetTraceID(r)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if got == "" {
		t.Fatal("Expected a trace ID in the request context")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("Expected a UUID trace ID, got %q: %v", got, err)
	}
	if echoed := rr.Header().Get(TraceHeader); echoed != got {
		t.Errorf("Expected response header to echo %q, got %q", got, echoed)
	}
}

func TestTraceMiddlewareReusesIncomingID(t *testing.T) {
	var got string
	handler := TraceMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetTraceID(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TraceHeader, "upstream-trace-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got != "upstream-trace-42" {
		t.Errorf("Expected incoming trace ID to be reused, got %q", got)
	}
	if echoed := rr.Header().Get(TraceHeader); echoed != "upstream-trace-42" {
		t.Errorf("Expected response header upstream-trace-42, got %q", echoed)
	}
}

func TestGetTraceIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := GetTraceID(req); got != "" {
		t.Errorf("Expected empty trace ID without middleware, got %q", got)
	}
}
