// Package circuit implements a three-state circuit breaker (Closed, Open,
// Half-Open) with consecutive-failure tripping and a timed, single-probe
// recovery.
package circuit

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// State is the phase of a breaker's automaton.
type State int

const (
	// StateClosed admits all requests. Initial state.
	StateClosed State = iota

	// StateOpen rejects all requests until the recovery timeout elapses.
	StateOpen

	// StateHalfOpen admits exactly one probe request; everything else is
	// rejected until the probe settles.
	StateHalfOpen
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Execute when the breaker rejects a request without
// invoking the protected call.
var ErrOpen = errors.New("circuit open")

// Default breaker settings.
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 30 * time.Second
)

// Config configures a Breaker. It is immutable after NewBreaker returns.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from Closed to Open. Defaults to DefaultFailureThreshold.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays Open before admitting a
	// recovery probe. Defaults to DefaultRecoveryTimeout.
	RecoveryTimeout time.Duration

	// Clock supplies the current time. Defaults to the real clock.
	Clock clock.Clock

	// Logger is used for state-change logging. Defaults to a no-op logger.
	Logger *zap.Logger

	// OnStateChange, if set, is called after every transition. It runs with
	// the breaker's lock held and must not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// Breaker is the per-target automaton. It is shared by all concurrent
// requests to the target; every state read-modify-write happens under a
// single mutex. The probe claim is tracked separately from the phase so that
// concurrent requests observing Half-Open cannot all proceed.
type Breaker struct {
	name          string
	threshold     int
	timeout       time.Duration
	clock         clock.Clock
	logger        *zap.Logger
	onStateChange func(name string, from, to State)

	mu             sync.Mutex
	state          State
	failures       int
	lastTransition time.Time
	probeInFlight  bool
}

// NewBreaker creates a breaker for the named target, starting Closed.
func NewBreaker(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Breaker{
		name:           name,
		threshold:      cfg.FailureThreshold,
		timeout:        cfg.RecoveryTimeout,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		onStateChange:  cfg.OnStateChange,
		state:          StateClosed,
		lastTransition: cfg.Clock.Now(),
	}
}

// Allow reports whether a request may proceed to the protected target. A true
// return obligates the caller to report the outcome via RecordSuccess or
// RecordFailure. In Half-Open, true is returned for exactly one caller (the
// probe) until that probe settles.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if b.clock.Now().Sub(b.lastTransition) >= b.timeout {
			b.transitionTo(StateHalfOpen)
			b.probeInFlight = true
			return true
		}
		return false

	case StateHalfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess reports that an admitted request succeeded. In Closed it
// resets the consecutive-failure counter; in Half-Open it closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.failures = 0
		b.probeInFlight = false
		b.transitionTo(StateClosed)
	}
}

// RecordFailure reports that an admitted request failed. In Closed it
// increments the consecutive-failure counter and trips the breaker at the
// threshold; in Half-Open the failed probe reopens the circuit and restarts
// the recovery timer.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		b.probeInFlight = false
		b.transitionTo(StateOpen)
	}
}

// Execute runs fn under breaker protection: ErrOpen without invoking fn when
// the breaker rejects, otherwise fn's own error with the outcome recorded.
func (b *Breaker) Execute(fn func() error) error {
	if !b.Allow() {
		return ErrOpen
	}

	err := fn()
	if err != nil {
		b.RecordFailure()
	} else {
		b.RecordSuccess()
	}
	return err
}

// transitionTo moves the automaton to next. Caller must hold b.mu.
func (b *Breaker) transitionTo(next State) {
	prev := b.state
	b.state = next
	b.lastTransition = b.clock.Now()

	b.logger.Info("circuit breaker state changed",
		zap.String("target", b.name),
		zap.String("from", prev.String()),
		zap.String("to", next.String()),
	)

	if b.onStateChange != nil {
		b.onStateChange(b.name, prev, next)
	}
}

// State returns the current phase.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Name returns the protected target's name.
func (b *Breaker) Name() string {
	return b.name
}
