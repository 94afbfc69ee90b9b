package router

import (
	"sync"
	"time"
)

// CircuitState is the admission state of a tier breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// CircuitBreaker gates requests to a single model tier. Consecutive
// failures trip it open; after the probe interval a single request is
// let through and its outcome decides whether the tier comes back.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold      int
	recoveryProbeInterval time.Duration

	consecutiveFailures int
	openedAt            time.Time
	tripped             bool
}

// NewCircuitBreaker creates a closed breaker with the given thresholds.
func NewCircuitBreaker(failureThreshold int, recoveryProbeInterval time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold:      failureThreshold,
		recoveryProbeInterval: recoveryProbeInterval,
	}
}

// state must be called with mu held.
func (cb *CircuitBreaker) state() CircuitState {
	if !cb.tripped {
		return StateClosed
	}
	if time.Since(cb.openedAt) >= cb.recoveryProbeInterval {
		return StateHalfOpen
	}
	return StateOpen
}

// State reports the breaker's current admission state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state()
}

// Allow reports whether a request may go to this tier. Half-open
// breakers admit probes.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state() != StateOpen
}

// RecordSuccess clears the failure streak and closes a tripped breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.tripped = false
}

// RecordFailure extends the failure streak; at the threshold the breaker
// trips open. A failed probe re-arms the full probe interval.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	if cb.tripped || cb.consecutiveFailures >= cb.failureThreshold {
		cb.tripped = true
		cb.openedAt = time.Now()
	}
}
