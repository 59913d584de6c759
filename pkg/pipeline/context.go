package pipeline

import (
	"context"
	"net/http"
	"sync"
)

// scopeContextKey is the context key for the per-request Scope.
type scopeContextKey struct{}

// Scope is the request-scoped record the pipeline attaches to every request
// context: a monotonically increasing sequence id plus arbitrary key-value
// attachments written by one middleware and read by a later one. A Scope is
// visible to exactly one logical request; it is never shared across requests.
type Scope struct {
	seq uint64

	mu          sync.Mutex
	attachments map[string]any
}

// Sequence returns the pipeline-assigned request sequence id.
func (s *Scope) Sequence() uint64 {
	return s.seq
}

// Set stores an attachment under key. Later writes to the same key replace
// the value wholesale.
func (s *Scope) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attachments == nil {
		s.attachments = make(map[string]any)
	}
	s.attachments[key] = value
}

// Get returns the attachment stored under key.
func (s *Scope) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attachments[key]
	return v, ok
}

func contextWithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, s)
}

// ScopeFromContext returns the request Scope carried by ctx.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeContextKey{}).(*Scope)
	return s, ok
}

// ScopeFromRequest returns the request Scope carried by r's context.
func ScopeFromRequest(r *http.Request) (*Scope, bool) {
	return ScopeFromContext(r.Context())
}
