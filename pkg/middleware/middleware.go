package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Suhaibinator/SPipeline/pkg/common"
	"go.uber.org/zap"
)

// Middleware is an alias for the common middleware type.
type Middleware = common.Middleware

// Logging is a middleware that logs requests. Server errors log at Error,
// client errors and slow requests at Warn, everything else at Debug.
func Logging(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newStatusResponseWriter(w)

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.status),
				zap.Duration("duration", duration),
			}
			if traceID := GetTraceID(r); traceID != "" {
				fields = append(fields, zap.String("trace_id", traceID))
			}

			switch {
			case rw.status >= 500:
				logger.Error("Server error", fields...)
			case rw.status >= 400:
				logger.Warn("Client error", fields...)
			case duration > 1*time.Second:
				logger.Warn("Slow request", fields...)
			default:
				logger.Debug("Request", fields...)
			}
		})
	}
}

// Timeout is a middleware that bounds how long the downstream handler may
// take. When the deadline passes first, the client gets a 408 and the
// handler's late writes are discarded.
func Timeout(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutResponseWriter{ResponseWriter: w}
			done := make(chan struct{})
			panicChan := make(chan any, 1)
			go func() {
				// Re-raise handler panics on the serving goroutine so the
				// pipeline's recovery sees them.
				defer func() {
					if p := recover(); p != nil {
						panicChan <- p
					}
				}()
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case p := <-panicChan:
				panic(p)
			case <-done:
			case <-ctx.Done():
				tw.mu.Lock()
				tw.timedOut = true
				tw.mu.Unlock()
				http.Error(w, "Request Timeout", http.StatusRequestTimeout)
			}
		})
	}
}

// timeoutResponseWriter serializes writes between the handler goroutine and
// the timeout path, and drops handler output after the timeout response.
type timeoutResponseWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	timedOut bool
}

func (w *timeoutResponseWriter) WriteHeader(status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *timeoutResponseWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *timeoutResponseWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// CORS is a middleware that adds CORS headers to the response and answers
// preflight requests directly.
func CORS(origins []string, methods []string, headers []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(origins) > 0 {
				w.Header().Set("Access-Control-Allow-Origin", strings.Join(origins, ", "))
			}
			if len(methods) > 0 {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
			}
			if len(headers) > 0 {
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
