package cache

import (
	"testing"
	"time"

	"github.com/rentora-labs/atlas/internal/config"
)

func testConfig() config.CacheConfig {
	return config.DefaultConfig().Cache
}

func newTestCache(cfg config.CacheConfig) (*ResponseCache, *time.Time) {
	c := New(func() config.CacheConfig { return cfg })
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLookup_ExactHit(t *testing.T) {
	c, _ := newTestCache(testConfig())
	c.Store("fp1", "what is the average rent in austin", "", "Around $1,800.", "")

	payload, hit := c.Lookup("fp1", "what is the average rent in austin", "", 0.01)
	if !hit {
		t.Fatal("expected exact hit")
	}
	if payload != "Around $1,800." {
		t.Errorf("unexpected payload %q", payload)
	}
}

func TestLookup_MissOnUnknownKey(t *testing.T) {
	c, _ := newTestCache(testConfig())
	if _, hit := c.Lookup("nope", "completely unrelated legal question", "", 0.01); hit {
		t.Error("expected miss on empty cache")
	}
}

func TestLookup_TTLBoundary(t *testing.T) {
	cfg := testConfig()
	c, now := newTestCache(cfg)
	c.Store("fp1", "negotiation strategy for my lease", "", "Open with comps.", "")

	// negotiation/strategy prompts get the 30m TTL
	*now = now.Add(29 * time.Minute)
	if _, hit := c.Lookup("fp1", "negotiation strategy for my lease", "", 0.01); !hit {
		t.Error("expected hit at TTL-1m")
	}

	*now = now.Add(2 * time.Minute) // t=31m
	if _, hit := c.Lookup("fp1", "negotiation strategy for my lease", "", 0.01); hit {
		t.Error("expected miss at TTL+1m")
	}
}

func TestLookup_SimilarityFallback(t *testing.T) {
	c, _ := newTestCache(testConfig())
	c.Store("fp1", "what is the average rent in downtown austin today", "", "About $2,100.", "")

	// Different fingerprint, near-identical token set.
	payload, hit := c.Lookup("fp2", "what is the average rent in downtown austin", "", 0.01)
	if !hit {
		t.Fatal("expected similarity hit above 0.8")
	}
	if payload != "About $2,100." {
		t.Errorf("unexpected payload %q", payload)
	}
}

func TestLookup_SimilarityThresholdIsExclusive(t *testing.T) {
	cfg := testConfig()
	cfg.SimilarityThreshold = 0.5
	c, _ := newTestCache(cfg)
	c.Store("fp1", "a b c d", "", "payload", "")

	// Jaccard("a b c d", "a b c d e") = 4/5 = 0.8 > 0.5 -> hit
	if _, hit := c.Lookup("x", "a b c d e", "", 0.0); !hit {
		t.Error("expected hit strictly above threshold")
	}

	c2, _ := newTestCache(cfg)
	c2.Store("fp1", "a b", "", "payload", "")
	// Jaccard("a b", "b") = 1/2, exactly at the threshold: strict > means miss.
	if _, hit := c2.Lookup("x", "b", "", 0.0); hit {
		t.Error("similarity exactly at threshold must not hit (strict >)")
	}
}

func TestLookup_SimilarityConfinedToScope(t *testing.T) {
	c, _ := newTestCache(testConfig())
	insight := `{"primary_insight":{"source":"strategy","content":"Offer 3% below asking."}}`
	c.Store("fp1", "what should my offer be for this renewal", "intelligence", insight, "")

	// A near-identical chat lookup must not surface the JSON blob.
	if payload, hit := c.Lookup("fp2", "what should my offer be for this renewal please", "", 0.01); hit {
		t.Fatalf("cross-scope similarity hit leaked payload %q", payload)
	}

	// The same lookup inside the intelligence scope still hits.
	payload, hit := c.Lookup("fp2", "what should my offer be for this renewal please", "intelligence", 0.01)
	if !hit {
		t.Fatal("expected same-scope similarity hit")
	}
	if payload != insight {
		t.Errorf("unexpected payload %q", payload)
	}
}

func TestStore_ContentClassTTLs(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name         string
		prompt       string
		contentClass string
		want         time.Duration
	}{
		{"market keyword", "current market conditions in dallas", "", 2 * time.Hour},
		{"rent keyword", "average rent near the station", "", 2 * time.Hour},
		{"negotiation keyword", "negotiation approach for renewal", "", 30 * time.Minute},
		{"strategy keyword", "give me a strategy", "", 30 * time.Minute},
		{"default", "tell me about this building", "", 15 * time.Minute},
		{"predictions dataset", "anything", "predictions", 24 * time.Hour},
		{"authoritative dataset", "anything", "authoritative_baseline", 7 * 24 * time.Hour},
		{"commercial index dataset", "anything", "commercial_index", 6 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TTLFor(cfg, tt.prompt, tt.contentClass); got != tt.want {
				t.Errorf("TTLFor(%q, %q) = %v, want %v", tt.prompt, tt.contentClass, got, tt.want)
			}
		})
	}
}

func TestStore_EvictsOldestAtCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEntries = 2
	c, now := newTestCache(cfg)

	c.Store("fp1", "unrelated query one", "", "p1", "")
	*now = now.Add(time.Second)
	c.Store("fp2", "second thing entirely", "", "p2", "")
	*now = now.Add(time.Second)
	c.Store("fp3", "third distinct topic", "", "p3", "")

	if _, hit := c.Lookup("fp1", "unrelated query one", "", 0); hit {
		t.Error("oldest entry should have been evicted")
	}
	if _, hit := c.Lookup("fp3", "third distinct topic", "", 0); !hit {
		t.Error("newest entry should survive eviction")
	}
}

func TestStore_AtCapacitySweepsExpiredBeforeEvicting(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEntries = 2
	c, now := newTestCache(cfg)

	c.Store("fp1", "current market conditions in dallas", "", "p1", "") // 2h TTL
	*now = now.Add(time.Second)
	c.Store("fp2", "tell me about this building", "", "p2", "") // 15m TTL

	// fp2 is expired but fp1, though older, is still live. Storing at
	// capacity must reclaim fp2 rather than evict the live fp1.
	*now = now.Add(16 * time.Minute)
	c.Store("fp3", "third distinct topic", "", "p3", "")

	if _, hit := c.Lookup("fp1", "current market conditions in dallas", "", 0); !hit {
		t.Error("live entry evicted while an expired entry was reclaimable")
	}
	if _, hit := c.Lookup("fp2", "tell me about this building", "", 0); hit {
		t.Error("expired entry should have been swept")
	}
	if _, hit := c.Lookup("fp3", "third distinct topic", "", 0); !hit {
		t.Error("new entry should be present")
	}
}

func TestHitCountAndSavingsMonotonic(t *testing.T) {
	c, _ := newTestCache(testConfig())
	c.Store("fp1", "what is the average rent in austin", "", "p", "")

	c.Lookup("fp1", "what is the average rent in austin", "", 0.02)
	c.Lookup("fp1", "what is the average rent in austin", "", 0.02)
	c.Lookup("missing", "no such entry anywhere here", "", 0.02)

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
	if stats.SavedUSD < 0.0399 || stats.SavedUSD > 0.0401 {
		t.Errorf("savings = %v, want ~0.04", stats.SavedUSD)
	}
}

func TestHitRate(t *testing.T) {
	c, _ := newTestCache(testConfig())
	if c.HitRate() != 0 {
		t.Error("empty cache hit rate should be 0")
	}

	c.Store("fp1", "what is the average rent in austin", "", "p", "")
	c.Lookup("fp1", "what is the average rent in austin", "", 0)
	c.Lookup("fpX", "entirely different legal topic", "", 0)

	if got := c.HitRate(); got != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", got)
	}
}

func TestSweep_RemovesExpired(t *testing.T) {
	c, now := newTestCache(testConfig())
	c.Store("fp1", "tell me about this building", "", "p", "") // 15m default TTL

	*now = now.Add(16 * time.Minute)
	c.Sweep()

	if got := c.Stats().Entries; got != 0 {
		t.Errorf("entries after sweep = %d, want 0", got)
	}
}
