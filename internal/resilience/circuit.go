// Package resilience classifies model call failures and guards each tier
// with retries and a circuit breaker.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState is the state of one tier's breaker.
type CircuitState int

const (
	// CircuitClosed lets every call through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset timeout passes.
	CircuitOpen
	// CircuitHalfOpen lets a single trial call through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the backend when a tier's
// breaker is open, or half-open with a trial call already in flight.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls the per-tier breakers.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive tripping failures that
	// opens the circuit. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long an open circuit waits before a trial call. Default: 30s.
	ResetTimeout time.Duration

	// ShouldTrip decides which failures count. Default: IsTransient, so a
	// schema rejection or unsupported document never opens a tier.
	ShouldTrip func(err error) bool

	// OnStateChange is called with the tier name on every transition. It runs
	// under the breaker's lock and must not call back into it.
	OnStateChange func(tier string, from, to CircuitState)

	// Now is the breaker clock. Default: time.Now.
	Now func() time.Time
}

// DefaultCircuitBreakerConfig returns the defaults used when no circuit
// settings are configured.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.ShouldTrip == nil {
		c.ShouldTrip = IsTransient
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// CircuitBreaker guards one tier.
type CircuitBreaker struct {
	tier string
	cfg  CircuitBreakerConfig

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	inTrial  bool
}

// NewCircuitBreaker returns a closed breaker for tier.
func NewCircuitBreaker(tier string, cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{tier: tier, cfg: cfg.withDefaults()}
}

// ExecuteVal runs fn unless the circuit rejects the call, and records the
// outcome. Context cancellation is never counted against the tier.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.admit(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	cb.record(ctx, err)
	return val, err
}

// State returns the current state. An open circuit past its reset timeout
// reports half-open even before the next call arrives.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		cb.transition(CircuitHalfOpen)
		cb.inTrial = true
	case CircuitHalfOpen:
		if cb.inTrial {
			return ErrCircuitOpen
		}
		cb.inTrial = true
	}
	return nil
}

// record counts a tripping failure, or treats any answer from the tier,
// including a permanent rejection, as proof it is healthy. A call the
// caller cancelled proves nothing either way.
func (cb *CircuitBreaker) record(ctx context.Context, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	trial := cb.state == CircuitHalfOpen
	cb.inTrial = false

	switch {
	case err != nil && ctx.Err() != nil:
		return
	case err != nil && cb.cfg.ShouldTrip(err):
		cb.failures++
		if trial || cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = cb.cfg.Now()
			cb.transition(CircuitOpen)
		}
	default:
		cb.failures = 0
		if trial {
			cb.transition(CircuitClosed)
		}
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if to == CircuitClosed {
		cb.failures = 0
	}
	if cb.cfg.OnStateChange != nil && from != to {
		cb.cfg.OnStateChange(cb.tier, from, to)
	}
}

// TierBreakers holds one breaker per tier name, created on first use.
type TierBreakers struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewTierBreakers returns an empty set sharing cfg.
func NewTierBreakers(cfg CircuitBreakerConfig) *TierBreakers {
	return &TierBreakers{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for tier.
func (tb *TierBreakers) Get(tier string) *CircuitBreaker {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	cb, ok := tb.breakers[tier]
	if !ok {
		cb = NewCircuitBreaker(tier, tb.cfg)
		tb.breakers[tier] = cb
	}
	return cb
}

// States snapshots every tier that has been called.
func (tb *TierBreakers) States() map[string]CircuitState {
	tb.mu.Lock()
	list := make(map[string]*CircuitBreaker, len(tb.breakers))
	for name, cb := range tb.breakers {
		list[name] = cb
	}
	tb.mu.Unlock()

	out := make(map[string]CircuitState, len(list))
	for name, cb := range list {
		out[name] = cb.State()
	}
	return out
}
