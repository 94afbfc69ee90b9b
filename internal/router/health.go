package router

import (
	"sync"
	"time"

	"github.com/rentora-labs/atlas/internal/types"
)

// HealthTracker manages circuit breakers for all model tiers.
type HealthTracker struct {
	mu       sync.RWMutex
	breakers map[types.ModelTier]*CircuitBreaker

	failureThreshold      int
	recoveryProbeInterval time.Duration
}

// NewHealthTracker creates a health tracker with the given circuit breaker config.
func NewHealthTracker(failureThreshold int, recoveryProbeInterval time.Duration) *HealthTracker {
	return &HealthTracker{
		breakers:              make(map[types.ModelTier]*CircuitBreaker),
		failureThreshold:      failureThreshold,
		recoveryProbeInterval: recoveryProbeInterval,
	}
}

// GetBreaker returns (or lazily creates) the circuit breaker for a tier.
func (ht *HealthTracker) GetBreaker(tier types.ModelTier) *CircuitBreaker {
	ht.mu.RLock()
	cb, ok := ht.breakers[tier]
	ht.mu.RUnlock()
	if ok {
		return cb
	}

	ht.mu.Lock()
	defer ht.mu.Unlock()
	// Double-check after acquiring write lock
	if cb, ok := ht.breakers[tier]; ok {
		return cb
	}
	cb = NewCircuitBreaker(ht.failureThreshold, ht.recoveryProbeInterval)
	ht.breakers[tier] = cb
	return cb
}

// IsAvailable returns true if the tier's circuit breaker allows requests.
func (ht *HealthTracker) IsAvailable(tier types.ModelTier) bool {
	return ht.GetBreaker(tier).Allow()
}

// RecordSuccess records a successful request for the tier.
func (ht *HealthTracker) RecordSuccess(tier types.ModelTier) {
	ht.GetBreaker(tier).RecordSuccess()
}

// RecordFailure records a failed request for the tier.
func (ht *HealthTracker) RecordFailure(tier types.ModelTier) {
	ht.GetBreaker(tier).RecordFailure()
}
