// Package pipeline composes an ordered sequence of middleware around a
// terminal handler. The composition is fixed at construction; per-request
// dispatch reuses the built chain with no reconstruction cost. Configuration
// changes require building a new Pipeline.
package pipeline

import (
	"errors"
	"net/http"
	"runtime/debug"
	"sync/atomic"

	"github.com/Suhaibinator/SPipeline/pkg/common"
	"go.uber.org/zap"
)

// Config defines a pipeline: the middleware to wrap around the terminal
// handler, outermost first. It is read once by New and never mutated
// afterwards; a Config may be shared read-only across pipelines.
type Config struct {
	// Middlewares is the ordered chain, outermost first. Ordering is the
	// caller's responsibility; the pipeline never reorders or deduplicates.
	Middlewares []common.Middleware

	// Handler is the terminal handler the chain wraps.
	Handler http.Handler

	// Logger is used for recovered faults. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Pipeline is the composed chain. It implements http.Handler; each inbound
// request runs pre-phases outer-to-inner, reaches the terminal handler, then
// post-phases inner-to-outer. Requests execute concurrently, each against its
// own chain invocation and Scope.
type Pipeline struct {
	handler http.Handler
	logger  *zap.Logger
	seq     atomic.Uint64
}

// New builds a pipeline from cfg. The effective call chain is composed
// exactly once here.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Handler == nil {
		return nil, errors.New("pipeline: terminal handler is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		handler: common.MiddlewareChain(cfg.Middlewares).Then(cfg.Handler),
		logger:  logger,
	}, nil
}

// ServeHTTP dispatches one request through the fixed chain. A panic anywhere
// in the chain or the terminal handler is converted into a generic
// internal-fault response; sibling in-flight requests are unaffected.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scope := &Scope{seq: p.seq.Add(1)}
	r = r.WithContext(contextWithScope(r.Context(), scope))

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("request fault recovered",
				zap.Any("panic", rec),
				zap.Uint64("sequence", scope.Sequence()),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("stack", string(debug.Stack())),
			)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}()

	p.handler.ServeHTTP(w, r)
}
