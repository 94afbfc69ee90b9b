// Package analytics accumulates cost-optimization outcomes across the
// cache, deduplicator and router, and exposes a snapshot for dashboards.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rentora-labs/atlas/internal/types"
)

// Saving sources, used as the Redis counter suffix.
const (
	SourceCache = "cache"
	SourceDedup = "dedup"
	SourceBatch = "batch"
	SourceRoute = "route"
)

// Tracker accumulates savings and hit/miss counts. In-memory totals are
// authoritative for the snapshot; Redis daily counters are best-effort
// so a restart does not zero external dashboards mid-day.
type Tracker struct {
	rdb *redis.Client

	mu            sync.Mutex
	totalSavedUSD float64
	cacheLookups  int64
	cacheHits     int64
	dedupCalls    int64
	dedupHits     int64
	routes        int64
	fallbacks     int64
}

// NewTracker creates a tracker. If rdb is nil, daily counters are skipped.
func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb}
}

func dailySavingsKey(source string) string {
	day := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("atlas:savings:daily:%s:%s", source, day)
}

// RecordSaving adds an avoided-spend amount attributed to source.
// Non-positive amounts are ignored so the running total never decreases.
func (t *Tracker) RecordSaving(ctx context.Context, source string, amountUSD float64) {
	if amountUSD <= 0 || math.IsNaN(amountUSD) {
		return
	}

	t.mu.Lock()
	t.totalSavedUSD += amountUSD
	t.mu.Unlock()

	if t.rdb == nil {
		return
	}
	key := dailySavingsKey(source)
	microUSD := int64(amountUSD * 1e6)
	pipe := t.rdb.Pipeline()
	pipe.IncrBy(ctx, key, microUSD)
	// Expire at end of day UTC + 1 hour buffer
	now := time.Now().UTC()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	pipe.Expire(ctx, key, endOfDay.Sub(now)+time.Hour)
	pipe.Exec(ctx)
}

// RecordCacheLookup tallies one response-cache lookup.
func (t *Tracker) RecordCacheLookup(hit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cacheLookups++
	if hit {
		t.cacheHits++
	}
}

// RecordDedup tallies one deduplicator pass.
func (t *Tracker) RecordDedup(coalesced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dedupCalls++
	if coalesced {
		t.dedupHits++
	}
}

// RecordRoute tallies one routed execution and whether it escalated.
func (t *Tracker) RecordRoute(fellBack bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes++
	if fellBack {
		t.fallbacks++
	}
}

// Snapshot returns current totals plus tuning recommendations.
func (t *Tracker) Snapshot() types.AnalyticsSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := types.AnalyticsSnapshot{
		TotalSavedUSD: t.totalSavedUSD,
		CacheHitRate:  rate(t.cacheHits, t.cacheLookups),
		DedupRate:     rate(t.dedupHits, t.dedupCalls),
		FallbackRate:  rate(t.fallbacks, t.routes),
	}
	snap.Recommendations = recommendations(snap, t.cacheLookups, t.routes)
	return snap
}

func rate(hits, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// recommendations derives tuning hints from observed rates. Thresholds
// only fire once enough traffic has accumulated to mean anything.
func recommendations(snap types.AnalyticsSnapshot, cacheLookups, routes int64) []string {
	var recs []string
	if cacheLookups >= 100 && snap.CacheHitRate < 0.2 {
		recs = append(recs, "cache hit rate below 20%: consider lowering the similarity threshold or raising TTLs for stable content")
	}
	if cacheLookups >= 100 && snap.DedupRate > 0.5 {
		recs = append(recs, "over half of requests coalesced: clients may be retrying aggressively")
	}
	if routes >= 100 && snap.FallbackRate > 0.3 {
		recs = append(recs, "fallback rate above 30%: the economy tier may be unhealthy or misconfigured")
	}
	return recs
}
