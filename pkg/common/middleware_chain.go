package common

import (
	"net/http"
)

// MiddlewareChain is an ordered sequence of middleware. The chain never
// reorders or deduplicates its entries; ordering is the caller's
// responsibility and is observable in behavior.
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a chain from the given middleware, outermost
// first.
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	return middlewares
}

// Append returns a chain with the given middleware added at the inner end.
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	return append(c, middlewares...)
}

// Prepend returns a chain with the given middleware added at the outer end.
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(middlewares)+len(c))
	copy(result, middlewares)
	copy(result[len(middlewares):], c)
	return result
}

// Then wraps the terminal handler with every middleware in the chain and
// returns the composed handler. The composition is fixed at call time; the
// returned handler carries no per-dispatch construction cost. Pre-phases run
// outer-to-inner in chain order, post-phases inner-to-outer.
func (c MiddlewareChain) Then(h http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		h = c[i](h)
	}
	return h
}

// ThenFunc is Then for a plain handler function.
func (c MiddlewareChain) ThenFunc(fn http.HandlerFunc) http.Handler {
	return c.Then(fn)
}
