package dedup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rentora-labs/atlas/internal/config"
)

func testCfg() config.DedupConfig {
	return config.DefaultConfig().Dedup
}

func newTestDedup(cfg config.DedupConfig) *Deduplicator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(func() config.DedupConfig { return cfg }, logger)
}

func slowExecutor(calls *int32, payload string, delay time.Duration) Executor {
	return func(ctx context.Context) (string, float64, error) {
		atomic.AddInt32(calls, 1)
		time.Sleep(delay)
		return payload, 0.05, nil
	}
}

func TestDo_ExecutesOnceForConcurrentSameKey(t *testing.T) {
	for _, n := range []int{2, 5, 17, 50} {
		d := newTestDedup(testCfg())
		var calls int32
		exec := slowExecutor(&calls, "answer", 30*time.Millisecond)

		var wg sync.WaitGroup
		duplicates := int32(0)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				// Random interleaving within the executor's runtime.
				time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
				res, err := d.Do(context.Background(), "k1", "average rent in austin", exec)
				if err != nil {
					t.Errorf("Do failed: %v", err)
					return
				}
				if res.Payload != "answer" {
					t.Errorf("payload = %q", res.Payload)
				}
				if res.WasDuplicate {
					atomic.AddInt32(&duplicates, 1)
				}
			}()
		}
		wg.Wait()

		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Errorf("n=%d: executor invoked %d times, want 1", n, got)
		}
		if got := atomic.LoadInt32(&duplicates); got != int32(n-1) {
			t.Errorf("n=%d: duplicates = %d, want %d", n, got, n-1)
		}
	}
}

func TestDo_RecentResultReused(t *testing.T) {
	d := newTestDedup(testCfg())
	var calls int32
	exec := slowExecutor(&calls, "answer", 0)

	if _, err := d.Do(context.Background(), "k1", "average rent in austin", exec); err != nil {
		t.Fatal(err)
	}
	// 100ms later the first result is still inside the coalescing window.
	time.Sleep(100 * time.Millisecond)
	res, err := d.Do(context.Background(), "k1", "average rent in austin", exec)
	if err != nil {
		t.Fatal(err)
	}

	if !res.WasDuplicate {
		t.Error("second call should be marked duplicate")
	}
	if res.CostSavedUSD != 0.05 {
		t.Errorf("cost saved = %v, want full credit 0.05", res.CostSavedUSD)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("executor invoked %d times, want 1", got)
	}
}

func TestDo_SimilarPendingGetsPartialCredit(t *testing.T) {
	d := newTestDedup(testCfg())
	var calls int32
	exec := slowExecutor(&calls, "answer", 50*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Do(context.Background(), "k1", "what is the average rent for a one bedroom in downtown austin today", exec)
	}()
	time.Sleep(10 * time.Millisecond)

	// Different key, near-identical token set: 12 of 13 tokens shared,
	// Jaccard ~0.923, at or above the inclusive 0.9 threshold.
	res, err := d.Do(context.Background(), "k2", "what is the average rent for a one bedroom in downtown austin", exec)
	wg.Wait()
	if err != nil {
		t.Fatal(err)
	}

	if !res.WasDuplicate {
		t.Error("similar pending request should be coalesced")
	}
	if want := 0.05 * 0.70; res.CostSavedUSD < want-1e-9 || res.CostSavedUSD > want+1e-9 {
		t.Errorf("cost saved = %v, want partial credit %v", res.CostSavedUSD, want)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("executor invoked %d times, want 1", got)
	}
}

func TestDo_DissimilarQueriesBothExecute(t *testing.T) {
	d := newTestDedup(testCfg())
	var calls int32
	exec := slowExecutor(&calls, "answer", 30*time.Millisecond)

	var wg sync.WaitGroup
	for _, q := range []struct{ key, query string }{
		{"k1", "average rent in austin"},
		{"k2", "lease termination law chicago"},
	} {
		wg.Add(1)
		go func(key, query string) {
			defer wg.Done()
			if _, err := d.Do(context.Background(), key, query, exec); err != nil {
				t.Errorf("Do(%s) failed: %v", key, err)
			}
		}(q.key, q.query)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("executor invoked %d times, want 2", got)
	}
}

func TestDo_FailurePropagatesToAllWaiters(t *testing.T) {
	d := newTestDedup(testCfg())
	wantErr := errors.New("provider exploded")
	var calls int32
	exec := func(ctx context.Context) (string, float64, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(30 * time.Millisecond)
		return "", 0, wantErr
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Do(context.Background(), "k1", "same query text", exec); !errors.Is(err, wantErr) {
				t.Errorf("expected authoritative error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("executor invoked %d times, want 1", got)
	}
}

func TestDo_FailedCallDoesNotBlockRetry(t *testing.T) {
	d := newTestDedup(testCfg())
	var calls int32
	exec := func(ctx context.Context) (string, float64, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", 0, errors.New("transient")
		}
		return "answer", 0.05, nil
	}

	if _, err := d.Do(context.Background(), "k1", "q", exec); err == nil {
		t.Fatal("first call should fail")
	}
	res, err := d.Do(context.Background(), "k1", "q", exec)
	if err != nil {
		t.Fatalf("retry after failure should execute fresh: %v", err)
	}
	if res.WasDuplicate {
		t.Error("retry must not be served the failed result")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("executor invoked %d times, want 2", got)
	}
}

func TestDo_ContextCancelledWaiter(t *testing.T) {
	d := newTestDedup(testCfg())
	var calls int32
	exec := slowExecutor(&calls, "answer", 200*time.Millisecond)

	go d.Do(context.Background(), "k1", "q", exec)
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := d.Do(ctx, "k1", "q", exec); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cancelled waiter should see its context error, got %v", err)
	}
}

func TestRate(t *testing.T) {
	d := newTestDedup(testCfg())
	var calls int32
	exec := slowExecutor(&calls, "answer", 0)

	d.Do(context.Background(), "k1", "q one", exec)
	time.Sleep(5 * time.Millisecond)
	d.Do(context.Background(), "k1", "q one", exec) // recent-result duplicate

	if got := d.Rate(); got != 0.5 {
		t.Errorf("dedup rate = %v, want 0.5", got)
	}
}
