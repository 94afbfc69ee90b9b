package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/similarity"
)

// EmbedFunc issues one upstream embedding call for a batch of texts and
// returns vectors in the same order.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

const flushTimeout = 30 * time.Second

type waiter struct {
	ch chan result
}

type result struct {
	vector []float32
	err    error
}

// pendingText is one unique normalized text awaiting the next flush, with
// every caller that asked for it.
type pendingText struct {
	text    string // original text of the first caller
	waiters []*waiter
}

// Batcher collects embedding requests arriving within a short window and
// merges them into a single upstream call. Results are distributed back to
// callers by index and written to the cache.
type Batcher struct {
	mu      sync.Mutex
	pending map[string]*pendingText // keyed by normalized text
	order   []string
	timer   *time.Timer

	cfg    func() config.EmbeddingConfig
	embed  EmbedFunc
	cache  *Cache
	logger *slog.Logger

	upstreamCalls int64
}

func NewBatcher(cfg func() config.EmbeddingConfig, embed EmbedFunc, cache *Cache, logger *slog.Logger) *Batcher {
	return &Batcher{
		pending: make(map[string]*pendingText),
		cfg:     cfg,
		embed:   embed,
		cache:   cache,
		logger:  logger,
	}
}

// Embed returns the vector for text, served from cache when possible and
// otherwise batched with concurrent requests. A batch failure propagates to
// every caller in that batch.
func (b *Batcher) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := b.cache.Lookup(text); ok {
		return vec, nil
	}

	cfg := b.cfg()
	norm := similarity.Normalize(text)
	w := &waiter{ch: make(chan result, 1)}

	b.mu.Lock()
	if p, ok := b.pending[norm]; ok {
		p.waiters = append(p.waiters, w)
	} else {
		b.pending[norm] = &pendingText{text: text, waiters: []*waiter{w}}
		b.order = append(b.order, norm)
	}
	full := len(b.order) >= cfg.MaxBatchSize
	if full {
		b.flushLocked()
	} else if b.timer == nil {
		b.timer = time.AfterFunc(cfg.BatchWindow, b.Flush)
	}
	b.mu.Unlock()

	select {
	case res := <-w.ch:
		return res.vector, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Flush sends the current batch upstream immediately.
func (b *Batcher) Flush() {
	b.mu.Lock()
	b.flushLocked()
	b.mu.Unlock()
}

// flushLocked snapshots and clears the pending batch, then settles it on a
// separate goroutine so callers are never blocked on the lock during the
// upstream call. Must be called with mu held.
func (b *Batcher) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.order) == 0 {
		return
	}

	batch := make([]*pendingText, 0, len(b.order))
	texts := make([]string, 0, len(b.order))
	for _, norm := range b.order {
		p := b.pending[norm]
		batch = append(batch, p)
		texts = append(texts, p.text)
	}
	b.pending = make(map[string]*pendingText)
	b.order = nil
	b.upstreamCalls++

	go b.settle(batch, texts)
}

func (b *Batcher) settle(batch []*pendingText, texts []string) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	vectors, err := b.embed(ctx, texts)
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vectors), len(texts))
	}

	for i, p := range batch {
		res := result{err: err}
		if err == nil {
			res.vector = vectors[i]
			b.cache.Put(p.text, vectors[i])
		}
		for _, w := range p.waiters {
			w.ch <- res
		}
	}

	if err != nil {
		b.logger.Warn("embedding batch failed", "texts", len(texts), "error", err)
	}
}

// UpstreamCalls reports how many batched upstream calls have been issued.
func (b *Batcher) UpstreamCalls() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.upstreamCalls
}
