// Package knograph ties path retrieval, flow-based pruning, tiered caching,
// and bounded-context assembly together behind a single entry point for
// augmenting a language model with structured knowledge.
package knograph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/knograph/knograph/pkg/assemble"
	"github.com/knograph/knograph/pkg/cache"
	"github.com/knograph/knograph/pkg/graph"
	"github.com/knograph/knograph/pkg/metrics"
	"github.com/knograph/knograph/pkg/retrieve"
	"github.com/knograph/knograph/pkg/trace"
)

// Config holds configuration for the retrieval engine.
// All tunables live here; nothing is reached through ambient singletons.
type Config struct {
	// DecayRate is the per-hop decay for path scoring (default 0.85).
	DecayRate float64

	// PruningThreshold is the minimum reliability to survive pruning
	// (default 0.01).
	PruningThreshold float64

	// MaxPaths caps the ranked result set (default 5).
	MaxPaths int

	// MaxDepth is the default traversal depth when a request leaves it
	// unset (default 3, clamped to 1..7).
	MaxDepth int

	// UpstreamTimeout bounds a single graph-store traversal (default 10s).
	UpstreamTimeout time.Duration

	// Cache configures the tiered cache.
	Cache cache.Config

	// MaxTokens and ReservedTokens bound context assembly
	// (defaults 4096 and 512).
	MaxTokens      int
	ReservedTokens int
}

func (c *Config) applyDefaults() {
	if c.DecayRate <= 0 || c.DecayRate > 1 {
		c.DecayRate = 0.85
	}
	if c.PruningThreshold <= 0 {
		c.PruningThreshold = 0.01
	}
	if c.MaxPaths <= 0 {
		c.MaxPaths = 5
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 3
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = 10 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.ReservedTokens <= 0 {
		c.ReservedTokens = 512
	}
}

// ContextRequest are the caller-facing parameters of AnswerContext.
type ContextRequest struct {
	// Anchor is the query anchor node identifier. Required.
	Anchor string `json:"anchor"`

	// MaxPaths overrides the configured cap when positive.
	MaxPaths int `json:"max_paths,omitempty"`

	// MaxDepth overrides the configured traversal depth when positive.
	MaxDepth int `json:"max_depth,omitempty"`

	// DomainFilter restricts traversal to nodes of one domain.
	DomainFilter string `json:"domain_filter,omitempty"`

	// VersionConstraint is an opaque token passed through to the graph
	// store, unvalidated by the core.
	VersionConstraint string `json:"version_constraint,omitempty"`

	// FormatForOutput routes the ranked paths through the context
	// assembler and returns a single formatted string.
	FormatForOutput bool `json:"format_for_output,omitempty"`
}

// RankedPath is one retrieval result: the rendered path and its reliability.
type RankedPath struct {
	PathText    string  `json:"path_text"`
	Reliability float64 `json:"reliability"`
}

// Answer is the result of AnswerContext.
type Answer struct {
	// Paths is the ranked path set, highest reliability first.
	Paths []RankedPath `json:"paths"`

	// Context is the assembled prompt context, set only when the request
	// asked for formatted output.
	Context string `json:"context,omitempty"`

	// Empty marks a successful retrieval that found zero paths.
	Empty bool `json:"empty,omitempty"`

	// FromCache reports whether the answer was served from the cache.
	FromCache bool `json:"from_cache,omitempty"`
}

// nopTracer is the default exporter when none is injected. Unlike
// trace.NoopExporter it exists under every build tag combination.
type nopTracer struct{}

func (nopTracer) Export(context.Context, *trace.TraceRecord) error { return nil }
func (nopTracer) Close() error                                     { return nil }

// Engine is the retrieval orchestrator. It owns the tiered cache and the
// retriever, and is safe for concurrent use.
type Engine struct {
	cfg       Config
	store     graph.GraphStore
	retriever *retrieve.Retriever
	cache     *cache.TieredCache
	logger    *slog.Logger
	metrics   metrics.Collector
	tracer    trace.Exporter
	counter   assemble.TokenCounter
	placement assemble.PlacementPolicy
	scorer    cache.ImportanceScorer
	group     singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Nil is safe and disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(e *Engine) {
		if c != nil {
			e.metrics = c
		}
	}
}

// WithTraceExporter sets the trace exporter.
func WithTraceExporter(t trace.Exporter) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithImportanceScorer replaces the default cache importance heuristic.
func WithImportanceScorer(s cache.ImportanceScorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithTokenCounter replaces the default token counter used for assembly.
func WithTokenCounter(c assemble.TokenCounter) Option {
	return func(e *Engine) {
		if c != nil {
			e.counter = c
		}
	}
}

// WithPlacementPolicy replaces the default edge placement policy.
func WithPlacementPolicy(p assemble.PlacementPolicy) Option {
	return func(e *Engine) {
		if p != nil {
			e.placement = p
		}
	}
}

// New creates an Engine over the given graph store.
func New(store graph.GraphStore, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("graph store is required")
	}
	cfg.applyDefaults()

	e := &Engine{
		cfg:       cfg,
		store:     store,
		metrics:   metrics.NewDefault(),
		tracer:    nopTracer{},
		counter:   assemble.WordTokenCounter,
		placement: assemble.EdgePlacement{},
	}
	for _, opt := range opts {
		opt(e)
	}

	tiered, err := cache.NewTiered(cfg.Cache, e.scorer, e.logger)
	if err != nil {
		return nil, fmt.Errorf("init tiered cache: %w", err)
	}
	tiered.SetEventRecorder(e.metrics)
	e.cache = tiered

	e.retriever = retrieve.New(store, retrieve.Config{
		DecayRate:        cfg.DecayRate,
		PruningThreshold: cfg.PruningThreshold,
		MaxPaths:         cfg.MaxPaths,
	}, e.logger)

	return e, nil
}

// Cache exposes the engine's tiered cache, mainly for stats endpoints.
func (e *Engine) Cache() *cache.TieredCache {
	return e.cache
}

// Close releases the cache's persistent tier and the trace exporter.
func (e *Engine) Close() error {
	cacheErr := e.cache.Close()
	traceErr := e.tracer.Close()
	if cacheErr != nil {
		return cacheErr
	}
	return traceErr
}

// AnswerContext resolves a query anchor to ranked paths or a formatted
// context. Lookup is cache-first; at most one underlying retrieval runs per
// cache key at a time, and concurrent callers that miss on the same key wait
// for the first caller's retrieval and share its result.
func (e *Engine) AnswerContext(ctx context.Context, req ContextRequest) (*Answer, error) {
	started := time.Now()
	rec := &trace.TraceRecord{
		Timestamp:   started,
		OperationID: uuid.New().String(),
		Operation:   "answer_context",
		Counters:    make(map[string]int64),
	}

	answer, err := e.answerContext(ctx, req, rec)

	rec.DurationMs = time.Since(started).Milliseconds()
	if err != nil {
		rec.Status = "error"
		rec.ErrorType = ClassifyError(err)
		e.metrics.RecordError(ctx, "answer_context", rec.ErrorType)
		e.metrics.RecordOperation(ctx, "answer_context", "error", rec.DurationMs)
	} else {
		if answer.FromCache {
			rec.Status = "cache_hit"
		} else {
			rec.Status = "success"
		}
		e.metrics.RecordOperation(ctx, "answer_context", rec.Status, rec.DurationMs)
	}
	if exportErr := e.tracer.Export(ctx, rec); exportErr != nil && e.logger != nil {
		e.logger.Warn("trace export failed", slog.String("error", exportErr.Error()))
	}

	return answer, err
}

func (e *Engine) answerContext(ctx context.Context, req ContextRequest, rec *trace.TraceRecord) (*Answer, error) {
	if req.Anchor == "" {
		return nil, errors.New("anchor is required")
	}
	if req.MaxPaths <= 0 {
		req.MaxPaths = e.cfg.MaxPaths
	}
	if req.MaxDepth <= 0 {
		req.MaxDepth = e.cfg.MaxDepth
	}

	key := CacheKey(req)
	// Snapshot the window before recording this query, so an entry's
	// relevance signal never matches against its own anchor.
	recent := e.cache.RecentQueries()
	e.cache.RecordQuery(req.Anchor)

	lookupStart := time.Now()
	entry, tier, ok := e.cache.Get(ctx, key)
	rec.Spans = append(rec.Spans, trace.SpanRecord{
		Name:       "cache-lookup",
		DurationMs: time.Since(lookupStart).Milliseconds(),
		OK:         true,
	})
	if ok {
		if tier == cache.TierSlow {
			e.metrics.RecordCacheEvent(ctx, cache.TierFast, metrics.CacheMiss)
		}
		e.metrics.RecordCacheEvent(ctx, tier, metrics.CacheHit)
		answer, err := decodeEntry(entry)
		if err == nil {
			answer.FromCache = true
			return answer, nil
		}
		// Undecodable payload: fall through to a fresh retrieval.
		if e.logger != nil {
			e.logger.Warn("discarding undecodable cache entry",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	} else {
		e.metrics.RecordCacheEvent(ctx, cache.TierFast, metrics.CacheMiss)
		e.metrics.RecordCacheEvent(ctx, cache.TierSlow, metrics.CacheMiss)
	}

	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		return e.retrieveAndCache(ctx, req, key, recent, rec)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Answer), nil
}

// retrieveAndCache performs the underlying retrieval, prunes, caches the
// result, and optionally assembles the formatted context. Runs at most once
// per key across concurrent callers.
func (e *Engine) retrieveAndCache(ctx context.Context, req ContextRequest, key string, recent []string, rec *trace.TraceRecord) (*Answer, error) {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.UpstreamTimeout)
	defer cancel()

	traverseStart := time.Now()
	candidates, err := e.retriever.RetrieveCandidates(tctx, req.Anchor, req.MaxDepth, req.DomainFilter, req.VersionConstraint)
	traverseSpan := trace.SpanRecord{
		Name:       "traverse",
		DurationMs: time.Since(traverseStart).Milliseconds(),
		OK:         err == nil,
	}
	if err != nil {
		// An unknown anchor is a valid empty result, not an upstream fault.
		if errors.Is(err, graph.ErrNodeNotFound) {
			traverseSpan.OK = true
			rec.Spans = append(rec.Spans, traverseSpan)
			return e.cacheEmpty(ctx, req, key)
		}
		kind := KindUpstreamUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		traverseSpan.ErrorType = ClassifyError(err)
		rec.Spans = append(rec.Spans, traverseSpan)
		// No partial cache writes on failure.
		return nil, &RetrievalError{Kind: kind, Op: "answer_context", Err: err}
	}
	rec.Spans = append(rec.Spans, traverseSpan)
	rec.Counters["candidates"] = int64(len(candidates))

	pruneStart := time.Now()
	scored := e.prune(candidates, req.MaxPaths)
	rec.Spans = append(rec.Spans, trace.SpanRecord{
		Name:       "prune",
		DurationMs: time.Since(pruneStart).Milliseconds(),
		OK:         true,
	})
	rec.Counters["pruned"] = int64(len(scored))

	if len(scored) == 0 {
		return e.cacheEmpty(ctx, req, key)
	}

	answer := &Answer{Paths: make([]RankedPath, len(scored))}
	for i, sp := range scored {
		answer.Paths[i] = RankedPath{PathText: sp.Text(), Reliability: sp.Reliability}
	}

	if req.FormatForOutput {
		assembleStart := time.Now()
		answer.Context = e.assembleContext(req.Anchor, scored)
		rec.Spans = append(rec.Spans, trace.SpanRecord{
			Name:       "assemble",
			DurationMs: time.Since(assembleStart).Milliseconds(),
			OK:         true,
		})
		rec.Counters["context_tokens"] = int64(e.counter(answer.Context))
	}

	e.cacheAnswer(ctx, req, key, answer, scored, recent)
	return answer, nil
}

// prune scores and prunes with the request's path cap, which may exceed the
// engine-level default.
func (e *Engine) prune(candidates []*graph.Path, maxPaths int) []*retrieve.ScoredPath {
	return e.retriever.PruneTo(candidates, e.cfg.PruningThreshold, maxPaths)
}

// cacheAnswer writes a successful non-empty result to the tiered cache.
// Importance grows with the number and richness of surviving paths and the
// reliability of the best one. The recent query window is the snapshot taken
// before this request's anchor was recorded.
func (e *Engine) cacheAnswer(ctx context.Context, req ContextRequest, key string, answer *Answer, scored []*retrieve.ScoredPath, recent []string) {
	var vertices, edges int
	for _, sp := range scored {
		vertices += len(sp.Path.Nodes)
		edges += len(sp.Path.Edges)
	}

	kind := cache.KindPaths
	var payload []byte
	var err error
	if req.FormatForOutput {
		kind = cache.KindText
		payload = []byte(answer.Context)
	} else {
		payload, err = json.Marshal(answer.Paths)
		if err != nil {
			return
		}
	}

	stored := e.cache.Put(ctx, key, payload, kind, cache.PutOptions{
		Signals: cache.Signals{
			CreatedAt:     time.Now(),
			Confidence:    scored[0].Reliability,
			HasConfidence: true,
			VertexCount:   vertices,
			EdgeCount:     edges,
			Query:         req.Anchor,
			RecentQueries: recent,
		},
	})
	if !stored {
		e.metrics.RecordCacheEvent(ctx, cache.TierSlow, metrics.CacheReject)
	}
	e.publishResidency(ctx)
}

// cacheEmpty records a successful zero-path retrieval with low importance so
// repeated misses don't re-hit the upstream store.
func (e *Engine) cacheEmpty(ctx context.Context, req ContextRequest, key string) (*Answer, error) {
	low := 0.1
	e.cache.Put(ctx, key, nil, cache.KindEmpty, cache.PutOptions{Importance: &low})
	e.publishResidency(ctx)
	return &Answer{Paths: []RankedPath{}, Empty: true}, nil
}

func (e *Engine) publishResidency(ctx context.Context) {
	e.metrics.SetResidentBytes(ctx, cache.TierFast, e.cache.FastStats().Bytes)
	e.metrics.SetResidentBytes(ctx, cache.TierSlow, e.cache.SlowStats().Bytes)
}

// assembleContext renders the scored paths into a token-bounded context.
// The query precedes all fragments; the placement policy puts the single
// most reliable path in the final position. Priority is assigned by rank:
// the best path is high, the next two medium, the rest low.
func (e *Engine) assembleContext(anchor string, scored []*retrieve.ScoredPath) string {
	asm := assemble.New(e.cfg.MaxTokens, e.cfg.ReservedTokens,
		assemble.WithTokenCounter(e.counter),
		assemble.WithPlacementPolicy(e.placement))
	asm.SetQuery("Query: " + anchor)

	for i, sp := range scored {
		priority := assemble.PriorityLow
		switch {
		case i == 0:
			priority = assemble.PriorityHigh
		case i <= 2:
			priority = assemble.PriorityMedium
		}
		if !asm.Add(sp.Text(), sp.Reliability, priority) && e.logger != nil {
			e.logger.Debug("context budget exhausted, dropping path",
				slog.Int("rank", i),
				slog.Float64("reliability", sp.Reliability))
		}
	}
	return asm.Finalize()
}

// decodeEntry reconstructs an Answer from a cached entry.
func decodeEntry(entry *cache.Entry) (*Answer, error) {
	switch entry.Kind {
	case cache.KindEmpty:
		return &Answer{Paths: []RankedPath{}, Empty: true}, nil
	case cache.KindText:
		return &Answer{Context: string(entry.Payload)}, nil
	case cache.KindPaths:
		var paths []RankedPath
		if err := json.Unmarshal(entry.Payload, &paths); err != nil {
			return nil, fmt.Errorf("decode cached paths: %w", err)
		}
		return &Answer{Paths: paths}, nil
	default:
		return nil, fmt.Errorf("unknown payload kind %q", entry.Kind)
	}
}
