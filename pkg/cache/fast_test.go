package cache

import (
	"fmt"
	"testing"
	"time"
)

func entry(key string, size int64) *Entry {
	return &Entry{
		Key:      key,
		Payload:  make([]byte, size),
		Kind:     KindPaths,
		ByteSize: size,
	}
}

func TestFastTier_RoundTrip(t *testing.T) {
	tier := NewFastTier(1024)

	e := entry("k1", 100)
	e.Payload[0] = 42
	if !tier.Put(e) {
		t.Fatal("Put rejected an entry within budget")
	}

	got, ok := tier.Get("k1")
	if !ok {
		t.Fatal("Get missed immediately after Put")
	}
	if got.Payload[0] != 42 {
		t.Error("payload mutated across round trip")
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount: got %d, want 1", got.AccessCount)
	}

	if _, ok := tier.Get("absent"); ok {
		t.Error("Get returned a hit for an absent key")
	}
}

func TestFastTier_BudgetInvariant(t *testing.T) {
	const budget = 500
	tier := NewFastTier(budget)

	for i := 0; i < 50; i++ {
		tier.Put(entry(fmt.Sprintf("k%d", i), int64(37+i%3*41)))
		if b := tier.Bytes(); b > budget {
			t.Fatalf("resident bytes %d exceed budget %d after put %d", b, budget, i)
		}
	}
}

func TestFastTier_EvictsLeastRecentlyUsed(t *testing.T) {
	tier := NewFastTier(300)

	tier.Put(entry("old", 100))
	tier.Put(entry("mid", 100))
	tier.Put(entry("new", 100))

	// Touch "old" so "mid" becomes the LRU victim.
	if _, ok := tier.Get("old"); !ok {
		t.Fatal("expected old to be resident")
	}

	tier.Put(entry("extra", 100))

	if _, ok := tier.Get("mid"); ok {
		t.Error("expected mid to be evicted as least recently used")
	}
	if !tier.Contains("old") || !tier.Contains("new") || !tier.Contains("extra") {
		t.Error("unexpected eviction victim")
	}
}

func TestFastTier_OversizedEntryRefused(t *testing.T) {
	tier := NewFastTier(100)

	if tier.Put(entry("huge", 101)) {
		t.Error("entry larger than the whole budget must be refused")
	}
	if tier.Len() != 0 {
		t.Errorf("tier should be empty, has %d entries", tier.Len())
	}
	if tier.Stats().Rejected != 1 {
		t.Errorf("Rejected counter: got %d, want 1", tier.Stats().Rejected)
	}
}

func TestFastTier_ReplaceKeepsAccessHistory(t *testing.T) {
	tier := NewFastTier(1024)

	tier.Put(entry("k", 50))
	tier.Get("k")
	tier.Get("k")

	tier.Put(entry("k", 60))
	got, ok := tier.Get("k")
	if !ok {
		t.Fatal("entry missing after replace")
	}
	if got.AccessCount < 3 {
		t.Errorf("access history lost on replace: got %d", got.AccessCount)
	}
	if tier.Bytes() != 60 {
		t.Errorf("Bytes after replace: got %d, want 60", tier.Bytes())
	}
}

func TestFastTier_EvictionTieBreaksOnAccessCount(t *testing.T) {
	tier := NewFastTier(200)

	now := time.Now()
	rare := entry("rare", 100)
	rare.LastAccessedAt = now
	rare.AccessCount = 1
	popular := entry("popular", 100)
	popular.LastAccessedAt = now
	popular.AccessCount = 9
	tier.Put(popular)
	tier.Put(rare)

	tier.Put(entry("next", 100))

	if tier.Contains("rare") {
		t.Error("expected the low-access entry to lose the tie")
	}
	if !tier.Contains("popular") {
		t.Error("popular entry should survive the tie-break")
	}
}
