package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func newTestSlowTier(t *testing.T, budget int64) (*SlowTier, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	tier, err := NewSlowTier(dbPath, budget, nil)
	if err != nil {
		t.Fatalf("NewSlowTier: %v", err)
	}
	t.Cleanup(func() { tier.Close() })
	return tier, dbPath
}

func TestSlowTier_RoundTrip(t *testing.T) {
	tier, _ := newTestSlowTier(t, 1<<20)
	ctx := context.Background()

	e := entry("k1", 64)
	e.Payload[5] = 7
	e.Importance = 0.4
	if !tier.Put(ctx, e) {
		t.Fatal("Put rejected an entry within budget")
	}

	got, ok := tier.Get(ctx, "k1")
	if !ok {
		t.Fatal("Get missed immediately after Put")
	}
	if got.Payload[5] != 7 {
		t.Error("payload corrupted across round trip")
	}
	if got.Importance != 0.4 {
		t.Errorf("importance: got %v, want 0.4", got.Importance)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount after one Get: got %d, want 1", got.AccessCount)
	}

	if _, ok := tier.Get(ctx, "absent"); ok {
		t.Error("Get returned a hit for an absent key")
	}
}

func TestSlowTier_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	tier, err := NewSlowTier(dbPath, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewSlowTier: %v", err)
	}
	if !tier.Put(ctx, entry("persist", 32)) {
		t.Fatal("Put failed")
	}
	if err := tier.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSlowTier(dbPath, 1<<20, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, ok := reopened.Get(ctx, "persist"); !ok {
		t.Error("entry lost across reopen")
	}
}

func TestSlowTier_BudgetEviction(t *testing.T) {
	tier, _ := newTestSlowTier(t, 300)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if !tier.Put(ctx, entry(fmt.Sprintf("k%d", i), 100)) {
			t.Fatalf("Put k%d rejected", i)
		}
		if b := tier.Stats().Bytes; b > 300 {
			t.Fatalf("resident bytes %d exceed budget after put %d", b, i)
		}
	}

	// The newest entries survive; the oldest were evicted.
	if _, ok := tier.Get(ctx, "k9"); !ok {
		t.Error("most recent entry missing")
	}
	if _, ok := tier.Get(ctx, "k0"); ok {
		t.Error("oldest entry should have been evicted")
	}
}

func TestSlowTier_OversizedEntryRefused(t *testing.T) {
	tier, _ := newTestSlowTier(t, 100)

	if tier.Put(context.Background(), entry("huge", 200)) {
		t.Error("entry larger than the whole budget must be refused")
	}
}

func TestSlowTier_CorruptDatabaseIsMissThenRebuilds(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	if err := os.WriteFile(dbPath, []byte("this is not a sqlite database at all"), 0644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	tier, err := NewSlowTier(dbPath, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewSlowTier over corrupt file must not fail: %v", err)
	}
	defer tier.Close()

	ctx := context.Background()
	if _, ok := tier.Get(ctx, "anything"); ok {
		t.Error("corrupt tier must behave as a full miss")
	}

	// The next write recreates the database from scratch.
	if !tier.Put(ctx, entry("fresh", 32)) {
		t.Fatal("Put should rebuild the corrupt tier")
	}
	if _, ok := tier.Get(ctx, "fresh"); !ok {
		t.Error("entry missing after rebuild")
	}
}
