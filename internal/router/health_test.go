package router

import (
	"testing"
	"time"

	"github.com/rentora-labs/atlas/internal/types"
)

func TestHealthTracker_LazyCreation(t *testing.T) {
	ht := NewHealthTracker(3, 5*time.Second)
	if !ht.IsAvailable(types.TierEconomy) {
		t.Error("expected new tier to be available")
	}
}

func TestHealthTracker_RecordFailureOpensCircuit(t *testing.T) {
	ht := NewHealthTracker(2, 5*time.Second)

	ht.RecordFailure(types.TierEconomy)
	ht.RecordFailure(types.TierEconomy)

	if ht.IsAvailable(types.TierEconomy) {
		t.Error("expected economy tier to be unavailable after 2 failures")
	}
}

func TestHealthTracker_RecordSuccessCloses(t *testing.T) {
	ht := NewHealthTracker(1, 10*time.Millisecond)

	ht.RecordFailure(types.TierTop)
	if ht.IsAvailable(types.TierTop) {
		t.Error("expected top tier to be unavailable")
	}

	time.Sleep(15 * time.Millisecond)

	// After probe interval, should be half-open and allow one
	if !ht.IsAvailable(types.TierTop) {
		t.Error("expected top tier to be available (half-open probe)")
	}

	ht.RecordSuccess(types.TierTop)
	if !ht.IsAvailable(types.TierTop) {
		t.Error("expected top tier to be available after success")
	}
}

func TestHealthTracker_IndependentTiers(t *testing.T) {
	ht := NewHealthTracker(1, 5*time.Second)

	ht.RecordFailure(types.TierEconomy)

	if ht.IsAvailable(types.TierEconomy) {
		t.Error("expected economy tier to be unavailable")
	}
	if !ht.IsAvailable(types.TierTop) {
		t.Error("expected top tier to be available (independent)")
	}
}
