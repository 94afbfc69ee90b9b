package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/types"
)

// ErrServiceDegraded marks upstream unavailability after every fallback
// tier has been exhausted. Callers match it with errors.Is to offer retry
// affordances instead of surfacing a raw provider error.
var ErrServiceDegraded = errors.New("service degraded")

// DegradedError wraps the final provider error once fallback is exhausted.
type DegradedError struct {
	Attempts int
	Last     error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("service degraded: model fallback exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *DegradedError) Unwrap() error { return e.Last }

func (e *DegradedError) Is(target error) bool { return target == ErrServiceDegraded }

// CallFunc performs one model invocation on a concrete tier/model pair.
type CallFunc func(ctx context.Context, tier types.ModelTier, model string) (string, error)

// escalationChain is the fixed cheap-to-capable tier order.
var escalationChain = []types.ModelTier{types.TierEconomy, types.TierLongContext, types.TierTop}

// Router owns tier selection and fallback execution.
type Router struct {
	selector *Selector
	health   *HealthTracker
	cfg      func() config.RoutingConfig
	logger   *slog.Logger

	mu         sync.Mutex
	fallbacks  int64
	executions int64
}

func New(cfg func() config.RoutingConfig, health *HealthTracker, logger *slog.Logger) *Router {
	return &Router{
		selector: NewSelector(cfg),
		health:   health,
		cfg:      cfg,
		logger:   logger,
	}
}

// Selector exposes the tier selection policy.
func (r *Router) Selector() *Selector { return r.selector }

// Route classifies a query and selects its tier in one step.
func (r *Router) Route(query string, qctx types.QueryContext) types.QueryClassification {
	return r.selector.Select(query, Classify(query, qctx), qctx)
}

// ExecuteWithFallback runs the routed tier and, on failure, escalates to the
// next more capable tier, retrying up to maxRetries additional attempts
// (the top tier is retried in place once reached). Tiers whose circuit
// breaker is open are skipped without consuming a retry. Exhausting retries
// surfaces a DegradedError wrapping the final error.
func (r *Router) ExecuteWithFallback(ctx context.Context, startTier types.ModelTier, call CallFunc, maxRetries int) (string, types.ModelTier, error) {
	chain := chainFrom(startTier)
	idx := 0
	attempts := 0
	var lastErr error

	r.mu.Lock()
	r.executions++
	r.mu.Unlock()

	for attempts <= maxRetries {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		tier := chain[idx]
		if r.health != nil && !r.health.IsAvailable(tier) {
			r.logger.Warn("tier circuit open, skipping", "tier", tier)
			if idx < len(chain)-1 {
				idx++
				continue
			}
			break
		}

		model := r.selector.ModelFor(tier)
		payload, err := call(ctx, tier, model)
		if err == nil {
			if r.health != nil {
				r.health.RecordSuccess(tier)
			}
			if attempts > 0 {
				r.mu.Lock()
				r.fallbacks++
				r.mu.Unlock()
			}
			return payload, tier, nil
		}

		if r.health != nil {
			r.health.RecordFailure(tier)
		}
		r.logger.Warn("model call failed, escalating",
			"tier", tier, "model", model, "attempt", attempts+1, "error", err)
		lastErr = err
		attempts++
		if idx < len(chain)-1 {
			idx++
		}
	}

	if attempts > 0 {
		r.mu.Lock()
		r.fallbacks++
		r.mu.Unlock()
	}
	if lastErr == nil {
		lastErr = errors.New("no model tier available")
	}
	return "", "", &DegradedError{Attempts: attempts, Last: lastErr}
}

// FallbackRate is the fraction of executions that needed escalation.
func (r *Router) FallbackRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.executions == 0 {
		return 0
	}
	return float64(r.fallbacks) / float64(r.executions)
}

func chainFrom(start types.ModelTier) []types.ModelTier {
	// escalationChain is ordered by capability level, so the level doubles
	// as the starting index.
	if lvl := start.Level(); lvl >= 0 {
		return escalationChain[lvl:]
	}
	// Unknown start tier: safest chain is top only.
	return []types.ModelTier{types.TierTop}
}
