package cache

import (
	"context"
	"log/slog"
	"time"
)

// Tier names reported by TieredCache.Get.
const (
	TierFast = "fast"
	TierSlow = "slow"
)

// Cache lifecycle events emitted through an EventRecorder. The values match
// the engine's metric labels.
const (
	EventEvict   = "evict"
	EventPromote = "promote"
)

// EventRecorder receives promotion and eviction events for metrics. The
// engine's metrics collector satisfies it.
type EventRecorder interface {
	RecordCacheEvent(ctx context.Context, tier string, event string)
}

// Config holds tiered cache tunables.
type Config struct {
	// FastBytes is the fast tier's byte budget (default 32 MiB).
	FastBytes int64

	// SlowBytes is the slow tier's byte budget (default 256 MiB).
	SlowBytes int64

	// SlowPath is the SQLite path for the slow tier (default ":memory:").
	SlowPath string

	// PromoteAfter is the historical access count a slow-tier entry must
	// exceed to be promoted to the fast tier (default 5).
	PromoteAfter int64

	// HighImportance is the importance threshold above which a fresh entry
	// is placed directly in the fast tier (default 0.6).
	HighImportance float64

	// QueryWindow is how many recent queries the relevance signal sees
	// (default 10).
	QueryWindow int
}

func (c *Config) applyDefaults() {
	if c.FastBytes <= 0 {
		c.FastBytes = 32 << 20
	}
	if c.SlowBytes <= 0 {
		c.SlowBytes = 256 << 20
	}
	if c.SlowPath == "" {
		c.SlowPath = ":memory:"
	}
	if c.PromoteAfter <= 0 {
		c.PromoteAfter = 5
	}
	if c.HighImportance <= 0 {
		c.HighImportance = 0.6
	}
	if c.QueryWindow <= 0 {
		c.QueryWindow = 10
	}
}

// TieredCache coordinates lookups and placement across the fast and slow
// tiers. Reads check the fast tier first; slow-tier hits whose access count
// exceeds the promotion threshold are copied into the fast tier. Writes
// always persist to the slow tier for durability and additionally land in
// the fast tier when important enough.
type TieredCache struct {
	cfg    Config
	fast   *FastTier
	slow   *SlowTier
	scorer ImportanceScorer
	window *queryWindow
	logger *slog.Logger
	events EventRecorder
}

// NewTiered creates a tiered cache. A nil scorer falls back to the default
// heuristic; a nil logger disables cache logging.
func NewTiered(cfg Config, scorer ImportanceScorer, logger *slog.Logger) (*TieredCache, error) {
	cfg.applyDefaults()
	if scorer == nil {
		scorer = NewHeuristicScorer()
	}

	slow, err := NewSlowTier(cfg.SlowPath, cfg.SlowBytes, logger)
	if err != nil {
		return nil, err
	}

	c := &TieredCache{
		cfg:    cfg,
		fast:   NewFastTier(cfg.FastBytes),
		slow:   slow,
		scorer: scorer,
		window: newQueryWindow(cfg.QueryWindow),
		logger: logger,
	}
	c.fast.onEvict = func() { c.recordEvent(TierFast, EventEvict) }
	c.slow.onEvict = func(n int64) {
		for i := int64(0); i < n; i++ {
			c.recordEvent(TierSlow, EventEvict)
		}
	}
	return c, nil
}

// SetEventRecorder wires a recorder for promotion and eviction events.
// Call before the cache sees traffic; a nil recorder disables events.
func (c *TieredCache) SetEventRecorder(r EventRecorder) {
	c.events = r
}

func (c *TieredCache) recordEvent(tier, event string) {
	if c.events != nil {
		c.events.RecordCacheEvent(context.Background(), tier, event)
	}
}

// Get looks the key up fast tier first, then slow. Returns the entry, the
// tier that served it, and whether it was found. Promotion from slow to
// fast happens here, atomically for the key: the fast tier insert holds
// that tier's lock and is idempotent, so no other operation observes an
// intermediate state.
func (c *TieredCache) Get(ctx context.Context, key string) (*Entry, string, bool) {
	if e, ok := c.fast.Get(key); ok {
		return e, TierFast, true
	}

	e, ok := c.slow.Get(ctx, key)
	if !ok {
		return nil, "", false
	}

	if e.AccessCount > c.cfg.PromoteAfter && !c.fast.Contains(key) {
		if c.fast.Put(e) {
			c.recordEvent(TierFast, EventPromote)
			if c.logger != nil {
				c.logger.Debug("promoted cache entry to fast tier",
					slog.String("key", key),
					slog.Int64("access_count", e.AccessCount))
			}
		}
	}
	return e, TierSlow, true
}

// PutOptions configures a single Put. When Importance is nil the configured
// scorer derives it from Signals.
type PutOptions struct {
	Importance *float64
	Signals    Signals
}

// Put caches a payload under key. The entry always goes to the slow tier
// for durability; entries at or above the high-importance threshold also go
// to the fast tier. Caching is best-effort: the return value reports
// whether any tier accepted the entry, and a rejection is not an error.
func (c *TieredCache) Put(ctx context.Context, key string, payload []byte, kind PayloadKind, opts PutOptions) bool {
	importance := 0.0
	if opts.Importance != nil {
		importance = *opts.Importance
	} else {
		sig := opts.Signals
		// A nil window falls back to the cache's own; an empty non-nil
		// window is taken at face value, which lets callers snapshot the
		// window before recording the current query.
		if sig.RecentQueries == nil {
			sig.RecentQueries = c.window.snapshot()
		}
		importance = c.scorer.Score(sig)
	}

	if payload == nil {
		payload = []byte{}
	}
	now := time.Now()
	e := &Entry{
		Key:            key,
		Payload:        payload,
		Kind:           kind,
		ByteSize:       int64(len(payload)),
		Importance:     importance,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	stored := c.slow.Put(ctx, e)
	if !stored && c.logger != nil {
		c.logger.Warn("slow tier rejected cache write", slog.String("key", key))
	}

	if importance >= c.cfg.HighImportance {
		if c.fast.Put(e) {
			stored = true
		} else if c.logger != nil {
			c.logger.Warn("fast tier rejected cache write",
				slog.String("key", key),
				slog.Int64("byte_size", e.ByteSize))
		}
	}
	return stored
}

// RecordQuery feeds the rolling query window used by the relevance signal.
func (c *TieredCache) RecordQuery(query string) {
	c.window.record(query)
}

// RecentQueries returns a snapshot of the rolling query window.
func (c *TieredCache) RecentQueries() []string {
	return c.window.snapshot()
}

// FastStats returns fast-tier counters.
func (c *TieredCache) FastStats() Stats {
	return c.fast.Stats()
}

// SlowStats returns slow-tier counters.
func (c *TieredCache) SlowStats() Stats {
	return c.slow.Stats()
}

// Close releases the slow tier's database handle.
func (c *TieredCache) Close() error {
	return c.slow.Close()
}
