// Package assemble builds a token-bounded prompt context from ranked path
// fragments, ordering output so the most reliable evidence sits at the
// positions a downstream model attends to most strongly.
package assemble

import (
	"math"
	"sort"
	"strings"
)

// TokenCounter estimates the token cost of a text. Exactness is not
// required, only consistency; the counter is pluggable per deployment.
type TokenCounter func(text string) int

// WordTokenCounter approximates tokens as whitespace-delimited words scaled
// by 4/3, a common rough ratio for English prompt text.
func WordTokenCounter(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 4.0 / 3.0))
}

// Priority orders fragments into budget buckets.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

// Fragment is one piece of assembled context with its token cost and the
// reliability it carried out of pruning.
type Fragment struct {
	Text        string
	Reliability float64
	Tokens      int
	Priority    Priority
}

// PlacementPolicy decides the final ordering of fragments at render time.
// Fragments arrive in bucket order (high, medium, low). This is a placement
// decision only, never a re-derivation of reliability; the ideal policy may
// depend on the downstream model, hence the interface.
type PlacementPolicy interface {
	Order(fragments []Fragment) []Fragment
}

// EdgePlacement moves the single most reliable fragment to the end of the
// context, immediately preceding the model-response boundary, on the
// rationale that attention is strongest near the start and end of a long
// prompt and decays toward the middle.
type EdgePlacement struct{}

// Order implements PlacementPolicy.
func (EdgePlacement) Order(fragments []Fragment) []Fragment {
	if len(fragments) < 2 {
		return fragments
	}
	best := 0
	for i, f := range fragments {
		if f.Reliability > fragments[best].Reliability {
			best = i
		}
	}
	out := make([]Fragment, 0, len(fragments))
	out = append(out, fragments[:best]...)
	out = append(out, fragments[best+1:]...)
	return append(out, fragments[best])
}

// BucketPlacement keeps fragments in plain bucket order.
type BucketPlacement struct{}

// Order implements PlacementPolicy.
func (BucketPlacement) Order(fragments []Fragment) []Fragment {
	return fragments
}

// Assembler accumulates fragments under a token budget of
// MaxTokens - ReservedTokens, evicting low-priority, low-reliability
// fragments to make room for new ones.
type Assembler struct {
	maxTokens      int
	reservedTokens int
	counter        TokenCounter
	placement      PlacementPolicy
	query          string
	queryTokens    int
	buckets        [3][]Fragment
	used           int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithTokenCounter replaces the default word-based counter.
func WithTokenCounter(c TokenCounter) Option {
	return func(a *Assembler) {
		if c != nil {
			a.counter = c
		}
	}
}

// WithPlacementPolicy replaces the default EdgePlacement policy.
func WithPlacementPolicy(p PlacementPolicy) Option {
	return func(a *Assembler) {
		if p != nil {
			a.placement = p
		}
	}
}

// New creates an Assembler with the given budget. reservedTokens covers
// prompt scaffolding and the model's response.
func New(maxTokens, reservedTokens int, opts ...Option) *Assembler {
	a := &Assembler{
		maxTokens:      maxTokens,
		reservedTokens: reservedTokens,
		counter:        WordTokenCounter,
		placement:      EdgePlacement{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetQuery records the query text, which Finalize emits before all
// fragments. The query's own cost counts against the budget.
func (a *Assembler) SetQuery(query string) {
	a.used -= a.queryTokens
	a.query = query
	a.queryTokens = a.counter(query)
	a.used += a.queryTokens
}

// Budget returns the usable token budget (MaxTokens - ReservedTokens).
func (a *Assembler) Budget() int {
	return a.maxTokens - a.reservedTokens
}

// UsedTokens returns the running token total including the query.
func (a *Assembler) UsedTokens() int {
	return a.used
}

// Add appends a fragment to the given priority bucket. When the fragment
// would exceed the budget, space is reclaimed from the low bucket first
// (dropping least-reliable fragments), then medium, then high as a last
// resort. Returns false and drops the fragment when no sequence of
// evictions frees enough room.
func (a *Assembler) Add(text string, reliability float64, p Priority) bool {
	cost := a.counter(text)
	budget := a.Budget()
	if cost > budget {
		return false
	}

	if a.used+cost > budget {
		a.reclaim(a.used + cost - budget)
	}
	if a.used+cost > budget {
		return false
	}

	a.buckets[p] = append(a.buckets[p], Fragment{
		Text:        text,
		Reliability: reliability,
		Tokens:      cost,
		Priority:    p,
	})
	a.used += cost
	return true
}

// reclaim evicts fragments until at least needed tokens are freed or every
// bucket is exhausted. Buckets drain low to high; within a bucket, the
// least reliable fragments go first.
func (a *Assembler) reclaim(needed int) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh} {
		bucket := a.buckets[p]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Reliability < bucket[j].Reliability
		})

		kept := bucket[:0]
		for i, f := range bucket {
			if needed > 0 {
				needed -= f.Tokens
				a.used -= f.Tokens
				continue
			}
			kept = append(kept, bucket[i])
		}
		a.buckets[p] = kept
		if needed <= 0 {
			return
		}
	}
}

// Finalize renders the context: the query first, then the fragments in
// bucket order (high, medium, low) as reordered by the placement policy.
func (a *Assembler) Finalize() string {
	ordered := make([]Fragment, 0, len(a.buckets[0])+len(a.buckets[1])+len(a.buckets[2]))
	for _, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		ordered = append(ordered, a.buckets[p]...)
	}
	ordered = a.placement.Order(ordered)

	var sb strings.Builder
	if a.query != "" {
		sb.WriteString(a.query)
	}
	for _, f := range ordered {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.Text)
	}
	return sb.String()
}
