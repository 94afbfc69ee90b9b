// Package cache implements the response cache: prior LLM answers keyed by
// request fingerprint, with content-aware TTLs and a similarity fallback so
// near-repeated prompts still hit. Cache problems never fail the request
// path; every error degrades to a miss.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/similarity"
)

// Entry is one cached response. Valid only while now-CreatedAt < TTL.
// HitCount and SavedUSD are monotonically non-decreasing. Scope
// partitions the similarity fallback: entries only ever similarity-match
// lookups carrying the same scope, so payloads from different pipelines
// (chat answers vs aggregated-insight JSON) never cross.
type Entry struct {
	Key          string
	Prompt       string
	Scope        string
	Payload      string
	ContentClass string
	CreatedAt    time.Time
	TTL          time.Duration
	HitCount     int
	SavedUSD     float64
}

func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) >= e.TTL
}

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	Hits           int64
	SimilarityHits int64
	Misses         int64
	Evictions      int64
	Entries        int
	SavedUSD       float64
}

// ResponseCache is a process-wide, capacity-bounded response store.
// Safe for concurrent use.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	cfg     func() config.CacheConfig
	now     func() time.Time

	hits           int64
	similarityHits int64
	misses         int64
	evictions      int64
}

func New(cfg func() config.CacheConfig) *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]*Entry),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Lookup returns the cached payload for the fingerprint, or falls back to a
// similarity scan (strictly above the configured threshold) against the
// originating prompts of live entries in the same scope. Either form of hit
// increments the entry's hit count and estimated savings.
func (c *ResponseCache) Lookup(fingerprint, prompt, scope string, costUSD float64) (string, bool) {
	cfg := c.cfg()
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[fingerprint]; ok {
		if e.expired(now) {
			delete(c.entries, fingerprint)
		} else {
			e.HitCount++
			e.SavedUSD += costUSD
			c.hits++
			return e.Payload, true
		}
	}

	// Similarity fallback: first live same-scope entry strictly above the
	// threshold.
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			continue
		}
		if e.Scope != scope {
			continue
		}
		if similarity.Jaccard(prompt, e.Prompt) > cfg.SimilarityThreshold {
			e.HitCount++
			e.SavedUSD += costUSD
			c.similarityHits++
			return e.Payload, true
		}
	}

	c.misses++
	return "", false
}

// Store caches a payload under the fingerprint with a TTL chosen from the
// content class. Storing over an existing key replaces it. At capacity,
// expired entries are swept before any live entry is evicted.
func (c *ResponseCache) Store(fingerprint, prompt, scope, payload, contentClass string) {
	cfg := c.cfg()
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= cfg.MaxEntries {
		c.sweepExpired(now)
	}
	if len(c.entries) >= cfg.MaxEntries {
		c.evictOldest()
	}

	c.entries[fingerprint] = &Entry{
		Key:          fingerprint,
		Prompt:       prompt,
		Scope:        scope,
		Payload:      payload,
		ContentClass: contentClass,
		CreatedAt:    now,
		TTL:          TTLFor(cfg, prompt, contentClass),
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *ResponseCache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.CreatedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

// Stats returns current effectiveness counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var saved float64
	for _, e := range c.entries {
		saved += e.SavedUSD
	}
	return Stats{
		Hits:           c.hits,
		SimilarityHits: c.similarityHits,
		Misses:         c.misses,
		Evictions:      c.evictions,
		Entries:        len(c.entries),
		SavedUSD:       saved,
	}
}

// HitRate returns hits (exact + similarity) over total lookups.
func (c *ResponseCache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.similarityHits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits+c.similarityHits) / float64(total)
}

// Sweep drops expired entries. Store runs the same sweep when the cache
// fills up; sweeping reclaims memory and is never required for correctness
// since Lookup checks expiry itself.
func (c *ResponseCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepExpired(c.now())
}

// sweepExpired removes expired entries. Must be called with mu held.
func (c *ResponseCache) sweepExpired(now time.Time) {
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// TTLFor picks the TTL for a payload from its content signals. Dataset
// classes take precedence over prompt keywords.
func TTLFor(cfg config.CacheConfig, prompt, contentClass string) time.Duration {
	if ttl, ok := cfg.DatasetTTLs[contentClass]; ok {
		return ttl
	}

	norm := similarity.Normalize(prompt)
	switch {
	case containsAny(norm, "market", "rent"):
		return cfg.MarketTTL
	case containsAny(norm, "negotiation", "strategy"):
		return cfg.NegotiationTTL
	default:
		return cfg.DefaultTTL
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
