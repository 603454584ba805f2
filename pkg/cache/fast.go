package cache

import (
	"container/list"
	"sync"
	"time"
)

// FastTier is a byte-budgeted in-memory LRU cache.
// Eviction removes least-recently-used entries first, breaking ties by
// lowest access count. An entry larger than the whole budget is refused;
// caching is best-effort, so refusal is not an error.
type FastTier struct {
	mu      sync.Mutex
	budget  int64
	bytes   int64
	order   *list.List // front = most recently used
	index   map[string]*list.Element
	hits    int64
	misses  int64
	evicted int64
	refused int64

	// onEvict, when set, is invoked once per evicted entry.
	onEvict func()
}

// NewFastTier creates a fast tier with the given byte budget.
func NewFastTier(budgetBytes int64) *FastTier {
	return &FastTier{
		budget: budgetBytes,
		order:  list.New(),
		index:  make(map[string]*list.Element),
	}
}

// Get returns a copy of the entry for key and updates recency, or (nil,
// false) on a miss.
func (t *FastTier) Get(key string) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	el, ok := t.index[key]
	if !ok {
		t.misses++
		return nil, false
	}
	e := el.Value.(*Entry)
	e.LastAccessedAt = time.Now()
	e.AccessCount++
	t.order.MoveToFront(el)
	t.hits++
	return e.clone(), true
}

// Contains reports whether key is resident without touching recency.
func (t *FastTier) Contains(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.index[key]
	return ok
}

// Put inserts or replaces an entry, evicting until the budget holds.
// Returns false when the entry alone exceeds the budget and cannot be
// cached in this tier.
func (t *FastTier) Put(e *Entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.ByteSize > t.budget {
		t.refused++
		return false
	}

	if el, ok := t.index[e.Key]; ok {
		old := el.Value.(*Entry)
		t.bytes -= old.ByteSize
		// Keep hit history across payload refreshes.
		if e.AccessCount < old.AccessCount {
			e.AccessCount = old.AccessCount
		}
		t.order.Remove(el)
		delete(t.index, e.Key)
	}

	for t.bytes+e.ByteSize > t.budget {
		if !t.evictOne() {
			break
		}
	}

	stored := e.clone()
	if stored.LastAccessedAt.IsZero() {
		stored.LastAccessedAt = time.Now()
	}
	t.index[stored.Key] = t.order.PushFront(stored)
	t.bytes += stored.ByteSize
	return true
}

// Remove deletes an entry if present.
func (t *FastTier) Remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.index[key]; ok {
		t.bytes -= el.Value.(*Entry).ByteSize
		t.order.Remove(el)
		delete(t.index, key)
	}
}

// evictOne removes the eviction victim: the least-recently-used entry,
// preferring the lower access count among entries that share the same
// last-access time. Must be called with the lock held.
func (t *FastTier) evictOne() bool {
	victim := t.order.Back()
	if victim == nil {
		return false
	}

	ve := victim.Value.(*Entry)
	for el := victim.Prev(); el != nil; el = el.Prev() {
		e := el.Value.(*Entry)
		if !e.LastAccessedAt.Equal(ve.LastAccessedAt) {
			break
		}
		if e.AccessCount < ve.AccessCount {
			victim, ve = el, e
		}
	}

	t.bytes -= ve.ByteSize
	t.order.Remove(victim)
	delete(t.index, ve.Key)
	t.evicted++
	if t.onEvict != nil {
		t.onEvict()
	}
	return true
}

// Bytes returns the currently resident byte total.
func (t *FastTier) Bytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytes
}

// Len returns the number of resident entries.
func (t *FastTier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.index)
}

// Stats returns a snapshot of tier counters.
func (t *FastTier) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Entries:   len(t.index),
		Bytes:     t.bytes,
		Hits:      t.hits,
		Misses:    t.misses,
		Evictions: t.evicted,
		Rejected:  t.refused,
	}
}
