package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecordsOperations(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	c.RecordOperation(ctx, "answer_context", "success", 12)
	c.RecordOperation(ctx, "answer_context", "success", 7)
	c.RecordOperation(ctx, "answer_context", "error", 3)

	if got := testutil.ToFloat64(c.operationsTotal.WithLabelValues("answer_context", "success")); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.operationsTotal.WithLabelValues("answer_context", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestCollectorRecordsErrors(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	c.RecordError(ctx, "answer_context", "timeout")
	c.RecordError(ctx, "answer_context", "timeout")
	c.RecordError(ctx, "answer_context", "upstream")

	if got := testutil.ToFloat64(c.errorsTotal.WithLabelValues("answer_context", "timeout")); got != 2 {
		t.Errorf("timeout errors = %v, want 2", got)
	}
}

func TestCollectorRecordsCacheEvents(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	c.RecordCacheEvent(ctx, "fast", CacheHit)
	c.RecordCacheEvent(ctx, "fast", CacheHit)
	c.RecordCacheEvent(ctx, "slow", CacheMiss)
	c.RecordCacheEvent(ctx, "slow", CachePromote)

	if got := testutil.ToFloat64(c.cacheEventsTotal.WithLabelValues("fast", CacheHit)); got != 2 {
		t.Errorf("fast hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.cacheEventsTotal.WithLabelValues("slow", CachePromote)); got != 1 {
		t.Errorf("slow promotes = %v, want 1", got)
	}
}

func TestCollectorResidentBytesGauge(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	c.SetResidentBytes(ctx, "fast", 4096)
	c.SetResidentBytes(ctx, "fast", 2048)

	if got := testutil.ToFloat64(c.residentBytes.WithLabelValues("fast")); got != 2048 {
		t.Errorf("resident bytes = %v, want latest value 2048", got)
	}
}

func TestCollectorRegistryGathers(t *testing.T) {
	c := NewCollector()
	c.RecordOperation(context.Background(), "answer_context", "success", 1)

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "knograph_operations_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("registry should expose knograph_operations_total")
	}
}
