package cache

import (
	"math"
	"strings"
	"sync"
	"time"
)

// Signals carries the inputs an ImportanceScorer may weigh when deciding
// placement and eviction priority for a cache entry.
type Signals struct {
	// CreatedAt is the creation time of the underlying data (more recent
	// scores higher).
	CreatedAt time.Time

	// Confidence is the reliability of the best path in the result, if any.
	Confidence float64

	// HasConfidence distinguishes a genuine zero confidence from absence.
	HasConfidence bool

	// VertexCount and EdgeCount measure path richness.
	VertexCount int
	EdgeCount   int

	// Query is the query that produced the entry; RecentQueries is a short
	// rolling window of prior queries for relevance matching.
	Query         string
	RecentQueries []string
}

// ImportanceScorer maps signals to an importance score in [0, 1].
// The default heuristic mixes hand-tuned weights; keeping it behind an
// interface lets deployments swap in a learned or configuration-driven
// scorer without touching cache mechanics.
type ImportanceScorer interface {
	Score(sig Signals) float64
}

// HeuristicScorer is the default weighted importance heuristic.
type HeuristicScorer struct {
	RecencyWeight    float64 // default 0.3
	ConfidenceWeight float64 // default 0.3
	RichnessWeight   float64 // default 0.2
	RelevanceWeight  float64 // default 0.2

	// RecencyHalfLifeDays controls how fast the recency component decays
	// (default 7).
	RecencyHalfLifeDays int

	// RichnessCap is the vertex+edge count at which richness saturates
	// (default 20).
	RichnessCap int
}

// NewHeuristicScorer returns the default scorer configuration.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{
		RecencyWeight:       0.3,
		ConfidenceWeight:    0.3,
		RichnessWeight:      0.2,
		RelevanceWeight:     0.2,
		RecencyHalfLifeDays: 7,
		RichnessCap:         20,
	}
}

// Compile-time interface check
var _ ImportanceScorer = (*HeuristicScorer)(nil)

// Score computes the weighted importance in [0, 1].
func (h *HeuristicScorer) Score(sig Signals) float64 {
	total := h.RecencyWeight*h.recency(sig.CreatedAt) +
		h.ConfidenceWeight*h.confidence(sig) +
		h.RichnessWeight*h.richness(sig) +
		h.RelevanceWeight*h.relevance(sig)

	weightSum := h.RecencyWeight + h.ConfidenceWeight + h.RichnessWeight + h.RelevanceWeight
	if weightSum <= 0 {
		return 0
	}
	score := total / weightSum
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// recency decays exponentially with age: 0.5^(ageDays / halfLifeDays).
func (h *HeuristicScorer) recency(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0.5
	}
	age := time.Since(createdAt)
	if age < 0 {
		return 1.0
	}
	halfLife := h.RecencyHalfLifeDays
	if halfLife <= 0 {
		return 1.0
	}
	ageDays := age.Hours() / 24.0
	return math.Pow(0.5, ageDays/float64(halfLife))
}

func (h *HeuristicScorer) confidence(sig Signals) float64 {
	if !sig.HasConfidence {
		return 0.5 // neutral when the payload carries no reliability field
	}
	return sig.Confidence
}

// richness grows with path size, capped.
func (h *HeuristicScorer) richness(sig Signals) float64 {
	cap := h.RichnessCap
	if cap <= 0 {
		cap = 20
	}
	size := sig.VertexCount + sig.EdgeCount
	if size >= cap {
		return 1.0
	}
	return float64(size) / float64(cap)
}

// relevance is the fraction of recent queries related to this one by
// case-insensitive substring containment in either direction.
func (h *HeuristicScorer) relevance(sig Signals) float64 {
	if len(sig.RecentQueries) == 0 || sig.Query == "" {
		return 0
	}
	q := strings.ToLower(sig.Query)
	matched := 0
	for _, recent := range sig.RecentQueries {
		r := strings.ToLower(recent)
		if r == "" {
			continue
		}
		if strings.Contains(r, q) || strings.Contains(q, r) {
			matched++
		}
	}
	return float64(matched) / float64(len(sig.RecentQueries))
}

// queryWindow is a fixed-size rolling window of recent query anchors used
// for the relevance signal.
type queryWindow struct {
	mu      sync.Mutex
	queries []string
	size    int
}

func newQueryWindow(size int) *queryWindow {
	if size <= 0 {
		size = 10
	}
	return &queryWindow{size: size}
}

func (w *queryWindow) record(query string) {
	if query == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries = append(w.queries, query)
	if len(w.queries) > w.size {
		w.queries = w.queries[len(w.queries)-w.size:]
	}
}

func (w *queryWindow) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.queries))
	copy(out, w.queries)
	return out
}
