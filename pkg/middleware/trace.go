package middleware

import (
	"context"
	"net/http"

	"github.com/Suhaibinator/SPipeline/pkg/common"
	"github.com/google/uuid"
)

// TraceHeader is the header the trace middleware reads and echoes.
const TraceHeader = "X-Request-ID"

// traceIDKey is the context key for the request trace ID.
type traceIDKey struct{}

// TraceMiddleware creates a middleware that assigns each request a trace ID,
// reusing the incoming X-Request-ID header when present and generating a UUID
// otherwise. The ID is stored in the request context and echoed on the
// response so callers can correlate logs across hops.
func TraceMiddleware() common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceHeader)
			if traceID == "" {
				traceID = uuid.New().String()
			}

			w.Header().Set(TraceHeader, traceID)
			ctx := context.WithValue(r.Context(), traceIDKey{}, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTraceID extracts the trace ID from the request context.
// Returns an empty string if no trace ID is found.
func GetTraceID(r *http.Request) string {
	return GetTraceIDFromContext(r.Context())
}

// GetTraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}
