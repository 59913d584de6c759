package ratelimit

import (
	"sync"

	"go.uber.org/ratelimit"
)

// PacedLimiter implements Limiter on top of go.uber.org/ratelimit's leaky
// bucket. Instead of rejecting over-budget requests it blocks each caller
// just long enough to hold the per-key rate at the configured requests per
// second, so Allow always admits. Use it where smoothing downstream load
// matters more than fast rejection.
type PacedLimiter struct {
	rps int

	mu       sync.Mutex
	limiters map[string]ratelimit.Limiter
}

// NewPacedLimiter creates a paced limiter admitting rps requests per second
// per key.
func NewPacedLimiter(rps int) *PacedLimiter {
	if rps < 1 {
		rps = 1
	}
	return &PacedLimiter{
		rps:      rps,
		limiters: make(map[string]ratelimit.Limiter),
	}
}

// Allow blocks until the key's next permitted slot and then admits the
// request. Remaining is not meaningful for a pacing limiter and is reported
// as the full limit.
func (p *PacedLimiter) Allow(key string) Result {
	p.limiterFor(key).Take()
	return Result{
		Allowed:   true,
		Limit:     p.rps,
		Remaining: p.rps,
	}
}

func (p *PacedLimiter) limiterFor(key string) ratelimit.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.limiters[key]; ok {
		return l
	}
	l := ratelimit.New(p.rps)
	p.limiters[key] = l
	return l
}

var _ Limiter = (*PacedLimiter)(nil)
