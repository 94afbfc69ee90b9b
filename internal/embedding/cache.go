// Package embedding deduplicates and batches vector-embedding requests.
// A bounded FIFO cache guarantees text already embedded is never sent
// upstream again; the batcher merges concurrent requests into one call.
package embedding

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/similarity"
)

// entry is one cached vector keyed by the hash of its normalized text.
type entry struct {
	normalized string
	hash       string
	vector     []float32
	createdAt  time.Time
}

// Cache is a capacity-bounded, FIFO-evicted vector store. A false miss
// costs money, not correctness, so simple eviction is acceptable.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // of hash strings, oldest at back
	cfg     func() config.EmbeddingConfig

	hits   int64
	misses int64
}

func NewCache(cfg func() config.EmbeddingConfig) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		cfg:     cfg,
	}
}

func textHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached vector for text: exact normalized-hash match
// first, then a linear scan for similarity strictly above the threshold.
func (c *Cache) Lookup(text string) ([]float32, bool) {
	cfg := c.cfg()
	norm := similarity.Normalize(text)
	hash := textHash(norm)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[hash]; ok {
		c.hits++
		return e.vector, true
	}

	for _, e := range c.entries {
		if similarity.Jaccard(norm, e.normalized) > cfg.SimilarityThreshold {
			c.hits++
			return e.vector, true
		}
	}

	c.misses++
	return nil, false
}

// Put stores a vector under the text's normalized hash, evicting the oldest
// entry when at capacity.
func (c *Cache) Put(text string, vector []float32) {
	cfg := c.cfg()
	norm := similarity.Normalize(text)
	hash := textHash(norm)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[hash]; ok {
		return
	}

	for len(c.entries) >= cfg.MaxEntries && c.order.Len() > 0 {
		back := c.order.Back()
		c.order.Remove(back)
		delete(c.entries, back.Value.(string))
	}

	c.entries[hash] = &entry{
		normalized: norm,
		hash:       hash,
		vector:     vector,
		createdAt:  time.Now(),
	}
	c.order.PushFront(hash)
}

// Stats returns hit/miss counters and the current size.
func (c *Cache) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries)
}
