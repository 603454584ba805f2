package metrics

import "context"

// Collector is the interface for metrics collection.
// Implementations include the Prometheus-backed collector (when built with
// -tags metrics) and the no-op collector (default build without the tag).
type Collector interface {
	RecordOperation(ctx context.Context, operation string, status string, durationMs int64)
	RecordStage(ctx context.Context, operation string, stage string, durationMs int64)
	RecordError(ctx context.Context, operation string, errorType string)
	RecordCacheEvent(ctx context.Context, tier string, event string)
	SetResidentBytes(ctx context.Context, tier string, bytes int64)
}

// Cache event labels recorded via RecordCacheEvent.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheEvict   = "evict"
	CachePromote = "promote"
	CacheReject  = "reject"
)
