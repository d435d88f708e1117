package provider

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState is the state of a backend circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
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

// CircuitBreaker stops sending jobs to a backend after consecutive failures.
// Safe for concurrent use.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time

	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewCircuitBreaker opens after failureThreshold consecutive failures, lets a
// probe through after recoveryTimeout and closes after successThreshold
// successful probes. Non-positive values fall back to 5, 1 and 30s.
func NewCircuitBreaker(failureThreshold, successThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// WithClock replaces the time source and returns cb.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if now != nil {
		cb.now = now
	}
	return cb
}

// Allow reports whether a job may be sent. An open circuit turns half-open
// once the recovery timeout has passed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.recoveryTimeout {
			cb.state = CircuitHalfOpen
			cb.successes = 0
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = CircuitClosed
			cb.failures = 0
			cb.successes = 0
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = CircuitOpen
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.successes = 0
	}
}

// State returns the state Allow would act on.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailure) >= cb.recoveryTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Guard wraps a client with a circuit breaker. Submit is refused with
// ProviderUnavailable while the circuit is open. Only unavailability and
// timeouts count as failures; a rejected request says nothing about the backend.
func Guard(c Client, cb *CircuitBreaker) Client {
	if cb == nil {
		return c
	}
	return &guarded{Client: c, cb: cb}
}

type guarded struct {
	Client
	cb *CircuitBreaker
}

func (g *guarded) Submit(ctx context.Context, job Job) (Handle, error) {
	if !g.cb.Allow() {
		return Handle{}, Unavailable(g.Backend(), ErrCircuitOpen)
	}
	h, err := g.Client.Submit(ctx, job)
	if err != nil {
		if pe := AsError(g.Backend(), err); pe.Kind != SubmitError {
			g.cb.RecordFailure()
		}
		return h, err
	}
	return h, nil
}

func (g *guarded) Poll(ctx context.Context, h Handle, deadline time.Time) Outcome {
	out := g.Client.Poll(ctx, h, deadline)
	switch {
	case out.Succeeded():
		g.cb.RecordSuccess()
	case errors.Is(ctx.Err(), context.Canceled):
		// caller gave up, not the backend
	case out.Err != nil && out.Err.Kind != SubmitError:
		g.cb.RecordFailure()
	}
	return out
}
