// Package ratelimit implements per-key request throttling for the SPipeline
// framework. The primary implementation is a lazily refilled token bucket;
// a paced (leaky bucket) variant is provided for callers that prefer
// smoothing over rejection.
package ratelimit

import (
	"time"
)

// Result is the outcome of a single admission check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the configured steady-state capacity, emitted as response
	// metadata for transport-layer header mapping.
	Limit int

	// Remaining is the whole number of requests still admissible right now.
	Remaining int

	// RetryAfter is how long the caller should wait before the next request
	// can succeed. Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter admits or rejects a request charged against the given key.
// Implementations must serialize the read-modify-write sequence for a single
// key; distinct keys must not contend with each other.
type Limiter interface {
	Allow(key string) Result
}
