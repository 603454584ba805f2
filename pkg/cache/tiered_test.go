package cache

import (
	"context"
	"testing"
	"time"
)

// fixedScorer always returns the same importance, which makes tier
// placement deterministic in tests.
type fixedScorer struct {
	score float64
}

func (f fixedScorer) Score(Signals) float64 { return f.score }

func newTestTiered(t *testing.T, scorer ImportanceScorer) *TieredCache {
	t.Helper()
	tc, err := NewTiered(Config{}, scorer, nil)
	if err != nil {
		t.Fatalf("NewTiered: %v", err)
	}
	t.Cleanup(func() { tc.Close() })
	return tc
}

func ptr(f float64) *float64 { return &f }

// stubRecorder counts cache events by tier and kind.
type stubRecorder struct {
	events map[string]int
}

func (r *stubRecorder) RecordCacheEvent(_ context.Context, tier, event string) {
	if r.events == nil {
		r.events = make(map[string]int)
	}
	r.events[tier+"/"+event]++
}

func TestTieredCache_RoundTrip(t *testing.T) {
	tc := newTestTiered(t, fixedScorer{score: 0.2})
	ctx := context.Background()

	if !tc.Put(ctx, "k1", []byte("payload"), KindText, PutOptions{}) {
		t.Fatal("Put rejected")
	}

	e, tier, ok := tc.Get(ctx, "k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if tier != TierSlow {
		t.Fatalf("low-importance entry should be served from slow tier, got %q", tier)
	}
	if string(e.Payload) != "payload" || e.Kind != KindText {
		t.Fatalf("got payload %q kind %q", e.Payload, e.Kind)
	}

	if _, _, ok := tc.Get(ctx, "absent"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestTieredCache_HighImportanceLandsInFastTier(t *testing.T) {
	tc := newTestTiered(t, fixedScorer{score: 0.9})
	ctx := context.Background()

	if !tc.Put(ctx, "hot", []byte("x"), KindText, PutOptions{}) {
		t.Fatal("Put rejected")
	}

	_, tier, ok := tc.Get(ctx, "hot")
	if !ok || tier != TierFast {
		t.Fatalf("expected fast-tier hit, got ok=%v tier=%q", ok, tier)
	}

	// Durability: the entry must also survive in the slow tier.
	if _, ok := tc.slow.Get(ctx, "hot"); !ok {
		t.Fatal("high-importance entry missing from slow tier")
	}
}

func TestTieredCache_ExplicitImportanceOverridesScorer(t *testing.T) {
	// Scorer says hot, explicit option says cold.
	tc := newTestTiered(t, fixedScorer{score: 0.95})
	ctx := context.Background()

	if !tc.Put(ctx, "cold", []byte("x"), KindEmpty, PutOptions{Importance: ptr(0.1)}) {
		t.Fatal("Put rejected")
	}
	if _, tier, ok := tc.Get(ctx, "cold"); !ok || tier != TierSlow {
		t.Fatalf("expected slow-tier hit, got ok=%v tier=%q", ok, tier)
	}
}

func TestTieredCache_PromotionAfterRepeatedAccess(t *testing.T) {
	tc := newTestTiered(t, fixedScorer{score: 0.2})
	ctx := context.Background()

	if !tc.Put(ctx, "warm", []byte("x"), KindText, PutOptions{}) {
		t.Fatal("Put rejected")
	}

	// The default threshold promotes once the access count exceeds 5.
	// Each Get below bumps the slow tier's counter.
	for i := 0; i < 5; i++ {
		_, tier, ok := tc.Get(ctx, "warm")
		if !ok {
			t.Fatalf("Get %d missed", i)
		}
		if tier != TierSlow {
			t.Fatalf("Get %d: promoted too early (tier %q)", i, tier)
		}
	}

	// Sixth access observes AccessCount 6 > 5 and promotes.
	if _, tier, ok := tc.Get(ctx, "warm"); !ok || tier != TierSlow {
		t.Fatalf("promoting access should still report slow tier, got ok=%v tier=%q", ok, tier)
	}
	if _, tier, ok := tc.Get(ctx, "warm"); !ok || tier != TierFast {
		t.Fatalf("expected fast-tier hit after promotion, got ok=%v tier=%q", ok, tier)
	}
}

func TestTieredCache_PromotionIsIdempotent(t *testing.T) {
	tc := newTestTiered(t, fixedScorer{score: 0.2})
	ctx := context.Background()

	if !tc.Put(ctx, "warm", []byte("x"), KindText, PutOptions{}) {
		t.Fatal("Put rejected")
	}
	for i := 0; i < 10; i++ {
		if _, _, ok := tc.Get(ctx, "warm"); !ok {
			t.Fatalf("Get %d missed", i)
		}
	}
	if got := tc.FastStats().Entries; got != 1 {
		t.Fatalf("fast tier should hold exactly one copy, got %d entries", got)
	}
}

func TestTieredCache_NilPayloadCachesEmptyResult(t *testing.T) {
	tc := newTestTiered(t, fixedScorer{score: 0.2})
	ctx := context.Background()

	if !tc.Put(ctx, "empty", nil, KindEmpty, PutOptions{Importance: ptr(0.1)}) {
		t.Fatal("Put rejected for empty result")
	}
	e, _, ok := tc.Get(ctx, "empty")
	if !ok {
		t.Fatal("expected hit for cached empty result")
	}
	if e.Kind != KindEmpty || len(e.Payload) != 0 {
		t.Fatalf("got kind %q payload %q", e.Kind, e.Payload)
	}
}

func TestTieredCache_PromotionEmitsEvent(t *testing.T) {
	tc := newTestTiered(t, fixedScorer{score: 0.2})
	rec := &stubRecorder{}
	tc.SetEventRecorder(rec)
	ctx := context.Background()

	if !tc.Put(ctx, "warm", []byte("x"), KindText, PutOptions{}) {
		t.Fatal("Put rejected")
	}
	for i := 0; i < 10; i++ {
		if _, _, ok := tc.Get(ctx, "warm"); !ok {
			t.Fatalf("Get %d missed", i)
		}
	}

	if got := rec.events[TierFast+"/"+EventPromote]; got != 1 {
		t.Fatalf("promote events = %d, want exactly 1", got)
	}
}

func TestTieredCache_EvictionsEmitEvents(t *testing.T) {
	tc, err := NewTiered(Config{FastBytes: 64, SlowBytes: 64}, fixedScorer{score: 0.9}, nil)
	if err != nil {
		t.Fatalf("NewTiered: %v", err)
	}
	defer tc.Close()
	rec := &stubRecorder{}
	tc.SetEventRecorder(rec)
	ctx := context.Background()

	payload := make([]byte, 48)
	if !tc.Put(ctx, "first", payload, KindText, PutOptions{}) {
		t.Fatal("first Put rejected")
	}
	if !tc.Put(ctx, "second", payload, KindText, PutOptions{}) {
		t.Fatal("second Put rejected")
	}

	if got := rec.events[TierFast+"/"+EventEvict]; got != 1 {
		t.Errorf("fast evict events = %d, want 1", got)
	}
	if got := rec.events[TierSlow+"/"+EventEvict]; got != 1 {
		t.Errorf("slow evict events = %d, want 1", got)
	}
}

func TestTieredCache_ExplicitEmptyWindowSkipsFallback(t *testing.T) {
	tc := newTestTiered(t, nil)
	ctx := context.Background()

	tc.RecordQuery("alpha")

	// A non-nil empty window is a deliberate "nothing relevant"; only a nil
	// window falls back to the cache's own.
	now := time.Now()
	if !tc.Put(ctx, "k1", []byte("x"), KindText, PutOptions{Signals: Signals{
		CreatedAt:     now,
		Query:         "alpha",
		RecentQueries: []string{},
	}}) {
		t.Fatal("Put rejected")
	}
	e1, _, _ := tc.Get(ctx, "k1")

	if !tc.Put(ctx, "k2", []byte("x"), KindText, PutOptions{Signals: Signals{
		CreatedAt: now,
		Query:     "alpha",
	}}) {
		t.Fatal("Put rejected")
	}
	e2, _, _ := tc.Get(ctx, "k2")

	if e1.Importance >= e2.Importance {
		t.Fatalf("explicit empty window %v should score below fallback window %v",
			e1.Importance, e2.Importance)
	}
}

func TestTieredCache_RecordAndRecentQueries(t *testing.T) {
	tc := newTestTiered(t, nil)

	tc.RecordQuery("alpha")
	tc.RecordQuery("beta")
	tc.RecordQuery("alpha cluster")

	got := tc.RecentQueries()
	if len(got) != 3 || got[0] != "alpha" || got[2] != "alpha cluster" {
		t.Fatalf("RecentQueries() = %v", got)
	}

	// Window is bounded by the configured size.
	tc2, err := NewTiered(Config{QueryWindow: 2}, nil, nil)
	if err != nil {
		t.Fatalf("NewTiered: %v", err)
	}
	defer tc2.Close()
	for _, q := range []string{"a", "b", "c"} {
		tc2.RecordQuery(q)
	}
	got = tc2.RecentQueries()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("bounded window = %v", got)
	}
}
