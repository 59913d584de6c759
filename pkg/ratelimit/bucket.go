package ratelimit

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Default idle-key retention settings for the token bucket limiter.
const (
	// DefaultIdleTTL is how long a key may stay inactive before its bucket
	// is evicted. A fresh bucket starts full, so losing burst history on
	// eviction is acceptable.
	DefaultIdleTTL = 10 * time.Minute

	// DefaultSweepInterval is how often idle buckets are swept.
	DefaultSweepInterval = 5 * time.Minute
)

// TokenBucketConfig configures a TokenBucketLimiter. It is immutable after
// NewTokenBucketLimiter returns.
type TokenBucketConfig struct {
	// Capacity is the steady-state maximum number of tokens in a bucket.
	// New buckets start with this many tokens.
	Capacity int

	// RefillRate is the refill speed in tokens per second.
	RefillRate float64

	// Burst is the extra headroom above Capacity a bucket may accumulate.
	Burst int

	// IdleTTL is how long an inactive key is retained. Defaults to
	// DefaultIdleTTL.
	IdleTTL time.Duration

	// SweepInterval is how often idle keys are evicted. Defaults to
	// DefaultSweepInterval.
	SweepInterval time.Duration

	// Clock supplies the current time. Defaults to the real clock.
	Clock clock.Clock

	// Logger is used for eviction debug logging. Defaults to a no-op logger.
	Logger *zap.Logger
}

// bucket is the per-key state. Tokens are real-valued and always within
// [0, capacity+burst]. All mutation happens under mu.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// TokenBucketLimiter implements Limiter with the classic token bucket
// algorithm and lazy refill. Buckets are created on first observation of a
// key and evicted after IdleTTL of inactivity by a background sweeper.
// Implements io.Closer; call Close to stop the sweeper.
type TokenBucketLimiter struct {
	capacity   float64
	refillRate float64
	ceiling    float64 // capacity + burst
	idleTTL    time.Duration
	clock      clock.Clock
	logger     *zap.Logger

	buckets sync.Map // key -> *bucket

	stopSweep chan struct{}
	closeOnce sync.Once
}

var _ io.Closer = (*TokenBucketLimiter)(nil)

// NewTokenBucketLimiter creates a token bucket limiter and starts its idle-key
// sweeper.
func NewTokenBucketLimiter(cfg TokenBucketConfig) *TokenBucketLimiter {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	l := &TokenBucketLimiter{
		capacity:   float64(cfg.Capacity),
		refillRate: cfg.RefillRate,
		ceiling:    float64(cfg.Capacity + cfg.Burst),
		idleTTL:    cfg.IdleTTL,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		stopSweep:  make(chan struct{}),
	}

	go l.sweepLoop(cfg.SweepInterval)

	return l
}

// Allow charges one token against the bucket for key. The whole
// lookup-refill-debit sequence for a key is serialized under the bucket's
// mutex; buckets for distinct keys do not contend.
func (l *TokenBucketLimiter) Allow(key string) Result {
	value, _ := l.buckets.LoadOrStore(key, &bucket{
		tokens: l.capacity,
	})
	b := value.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	// The clock is read under the lock so no request can observe a time
	// older than one a sibling already credited a refill for; lastRefill
	// never moves backwards.
	now := l.clock.Now()
	if b.lastRefill.IsZero() {
		b.lastRefill = now
	}
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.refillRate
		if b.tokens > l.ceiling {
			b.tokens = l.ceiling
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Result{
			Allowed:   true,
			Limit:     int(l.capacity),
			Remaining: int(math.Floor(b.tokens)),
		}
	}

	return Result{
		Allowed:    false,
		Limit:      int(l.capacity),
		Remaining:  0,
		RetryAfter: l.timeToNextToken(b.tokens),
	}
}

// timeToNextToken is how long until the bucket refills to one whole token.
func (l *TokenBucketLimiter) timeToNextToken(tokens float64) time.Duration {
	if l.refillRate <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration((1 - tokens) / l.refillRate * float64(time.Second))
}

// Reset discards the bucket for key. The next request from that key sees a
// fresh, full bucket.
func (l *TokenBucketLimiter) Reset(key string) {
	l.buckets.Delete(key)
}

// Close stops the idle-key sweeper. Safe to call multiple times.
func (l *TokenBucketLimiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopSweep)
	})
	return nil
}

func (l *TokenBucketLimiter) sweepLoop(interval time.Duration) {
	ticker := l.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopSweep:
			return
		}
	}
}

// sweep evicts buckets that have seen no activity within the idle TTL.
func (l *TokenBucketLimiter) sweep() {
	now := l.clock.Now()
	evicted := 0

	l.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := !b.lastRefill.IsZero() && now.Sub(b.lastRefill) > l.idleTTL
		b.mu.Unlock()
		if idle {
			l.buckets.Delete(key)
			evicted++
		}
		return true
	})

	if evicted > 0 {
		l.logger.Debug("evicted idle rate limit buckets", zap.Int("evicted", evicted))
	}
}

var _ Limiter = (*TokenBucketLimiter)(nil)
