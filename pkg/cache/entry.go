// Package cache provides the two-tier retrieval cache: a byte-budgeted
// in-memory LRU fast tier and a persistent SQLite slow tier, coordinated by
// a TieredCache manager with importance-driven placement and promotion.
package cache

import "time"

// PayloadKind tags what a cached payload contains.
type PayloadKind string

const (
	// KindPaths marks a JSON-encoded ranked path set.
	KindPaths PayloadKind = "paths"

	// KindText marks an assembled context string.
	KindText PayloadKind = "text"

	// KindEmpty marks a successful retrieval that found zero paths.
	// Cached so repeated misses don't re-hit the upstream store.
	KindEmpty PayloadKind = "empty"
)

// Entry is a single cached retrieval result.
type Entry struct {
	Key            string      // Deterministic key derived from query + retrieval parameters
	Payload        []byte      // Encoded result
	Kind           PayloadKind // Payload interpretation
	ByteSize       int64       // Size estimate used for budget accounting
	Importance     float64     // Placement/eviction heuristic in [0, 1]
	CreatedAt      time.Time   // When the entry was cached
	LastAccessedAt time.Time   // Recency, updated on every hit
	AccessCount    int64       // Hit counter, drives promotion
}

// clone returns a copy safe to hand to callers while the tier keeps mutating
// its own bookkeeping fields.
func (e *Entry) clone() *Entry {
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	return &c
}

// Stats summarizes a tier's state and activity.
type Stats struct {
	Entries   int
	Bytes     int64
	Hits      int64
	Misses    int64
	Evictions int64
	Rejected  int64
}
