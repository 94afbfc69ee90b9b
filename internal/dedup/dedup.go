// Package dedup coalesces concurrent identical or near-identical in-flight
// operations so no logical request is ever executed twice concurrently.
// The first request registered for a key is authoritative: every duplicate
// observes exactly that result, success or failure.
package dedup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/similarity"
	"github.com/rentora-labs/atlas/internal/types"
)

// Executor performs the actual upstream operation. It returns the payload
// and the upstream cost in USD, used to credit duplicates.
type Executor func(ctx context.Context) (payload string, costUSD float64, err error)

// pendingOp exists only while an operation is in flight. It is created on
// the first unique request and removed in a deferred block regardless of
// outcome, so a failed call never blocks future retries.
type pendingOp struct {
	key           string
	originalQuery string
	createdAt     time.Time
	done          chan struct{}

	// set before done is closed
	payload string
	costUSD float64
	err     error
}

type recentResult struct {
	payload   string
	costUSD   float64
	createdAt time.Time
}

// Deduplicator guarantees at most one outstanding upstream operation per
// logical key. Safe for concurrent use.
type Deduplicator struct {
	mu      sync.Mutex
	pending map[string]*pendingOp
	recent  map[string]*recentResult

	cfg    func() config.DedupConfig
	now    func() time.Time
	logger *slog.Logger

	executions int64
	coalesced  int64
	partials   int64
}

func New(cfg func() config.DedupConfig, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{
		pending: make(map[string]*pendingOp),
		recent:  make(map[string]*recentResult),
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// Do routes an operation through the deduplicator. Lookup order: a pending
// operation for the key within the coalescing window, then an unexpired
// recent result, then a pending operation whose originating text is
// near-identical (Jaccard at or above the configured threshold, with
// partial cost credit), and finally a fresh execution.
func (d *Deduplicator) Do(ctx context.Context, key, originalQuery string, exec Executor) (types.DedupeResult, error) {
	cfg := d.cfg()
	now := d.now()

	d.mu.Lock()

	if p, ok := d.pending[key]; ok && now.Sub(p.createdAt) < cfg.CoalescingWindow {
		d.coalesced++
		d.mu.Unlock()
		return d.await(ctx, p, 1.0)
	}

	if r, ok := d.recent[key]; ok && now.Sub(r.createdAt) < cfg.CoalescingWindow {
		d.coalesced++
		d.mu.Unlock()
		return types.DedupeResult{
			Payload:      r.payload,
			WasDuplicate: true,
			CostSavedUSD: r.costUSD,
		}, nil
	}

	for _, p := range d.pending {
		if now.Sub(p.createdAt) >= cfg.CoalescingWindow {
			continue
		}
		if similarity.Jaccard(originalQuery, p.originalQuery) >= cfg.SimilarityThreshold {
			d.coalesced++
			d.partials++
			d.mu.Unlock()
			return d.await(ctx, p, cfg.PartialCredit)
		}
	}

	if len(d.pending) >= cfg.MaxPending {
		// Over capacity: execute without registering rather than refuse.
		d.executions++
		d.mu.Unlock()
		d.logger.Warn("dedup pending map at capacity, executing uncoalesced", "key", key)
		payload, _, err := exec(ctx)
		if err != nil {
			return types.DedupeResult{}, err
		}
		return types.DedupeResult{Payload: payload}, nil
	}

	p := &pendingOp{
		key:           key,
		originalQuery: originalQuery,
		createdAt:     now,
		done:          make(chan struct{}),
	}
	d.pending[key] = p
	d.executions++
	d.mu.Unlock()

	payload, costUSD, err := exec(ctx)

	d.mu.Lock()
	p.payload = payload
	p.costUSD = costUSD
	p.err = err
	close(p.done)
	delete(d.pending, key)
	if err == nil {
		d.recent[key] = &recentResult{payload: payload, costUSD: costUSD, createdAt: d.now()}
	}
	d.sweepLocked(cfg)
	d.mu.Unlock()

	if err != nil {
		return types.DedupeResult{}, err
	}
	return types.DedupeResult{Payload: payload}, nil
}

// await blocks until the authoritative operation settles, then returns its
// result with the given fraction of its cost claimed as saved.
func (d *Deduplicator) await(ctx context.Context, p *pendingOp, credit float64) (types.DedupeResult, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		return types.DedupeResult{}, ctx.Err()
	}

	if p.err != nil {
		return types.DedupeResult{}, p.err
	}
	return types.DedupeResult{
		Payload:      p.payload,
		WasDuplicate: true,
		CostSavedUSD: p.costUSD * credit,
	}, nil
}

// sweepLocked drops recent results and stale pending entries older than
// twice the coalescing window. Must be called with mu held.
func (d *Deduplicator) sweepLocked(cfg config.DedupConfig) {
	now := d.now()
	horizon := 2 * cfg.CoalescingWindow

	for key, r := range d.recent {
		if now.Sub(r.createdAt) >= horizon {
			delete(d.recent, key)
		}
	}
	for key, p := range d.pending {
		if now.Sub(p.createdAt) >= horizon {
			delete(d.pending, key)
		}
	}
}

// Stats reports executions, coalesced duplicates and partial-credit matches.
func (d *Deduplicator) Stats() (executions, coalesced, partials int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executions, d.coalesced, d.partials
}

// Rate returns the fraction of all calls that were coalesced.
func (d *Deduplicator) Rate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	total := d.executions + d.coalesced
	if total == 0 {
		return 0
	}
	return float64(d.coalesced) / float64(total)
}
