// Package retrieve issues bounded-depth traversals against a graph store and
// prunes the resulting candidate paths by resource-flow reliability.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/knograph/knograph/pkg/graph"
	"github.com/knograph/knograph/pkg/score"
)

// Depth bounds for a single traversal request.
const (
	MinDepth = 1
	MaxDepth = 7
)

// ScoredPath is a path together with the reliability assigned to it and the
// decay rate that produced that reliability.
type ScoredPath struct {
	Path        *graph.Path
	Reliability float64
	DecayRate   float64
}

// Text renders the scored path as a single prompt-context line.
func (sp *ScoredPath) Text() string {
	return sp.Path.Text()
}

// Config holds retriever tunables.
type Config struct {
	// DecayRate is the per-hop decay passed to the scorer (default 0.85).
	DecayRate float64

	// PruningThreshold is the minimum reliability a path must reach to
	// survive pruning (default 0.01). Paths scoring below it are discarded.
	PruningThreshold float64

	// MaxPaths caps the pruned result set (default 5).
	MaxPaths int
}

func (c *Config) applyDefaults() {
	if c.DecayRate <= 0 || c.DecayRate > 1 {
		c.DecayRate = score.DefaultDecayRate
	}
	if c.PruningThreshold <= 0 {
		c.PruningThreshold = 0.01
	}
	if c.MaxPaths <= 0 {
		c.MaxPaths = 5
	}
}

// Retriever retrieves and prunes candidate paths.
type Retriever struct {
	store  graph.GraphStore
	cfg    Config
	logger *slog.Logger
}

// New creates a Retriever over the given store. A nil logger disables
// retriever logging.
func New(store graph.GraphStore, cfg Config, logger *slog.Logger) *Retriever {
	cfg.applyDefaults()
	return &Retriever{store: store, cfg: cfg, logger: logger}
}

// Config returns the effective (defaulted) configuration.
func (r *Retriever) Config() Config {
	return r.cfg
}

// RetrieveCandidates issues one bounded-depth traversal against the graph
// store. Depth is clamped to [MinDepth, MaxDepth]. An empty result is a
// valid, successful outcome distinct from a failed retrieval, which is
// surfaced as an error.
func (r *Retriever) RetrieveCandidates(ctx context.Context, anchor string, maxDepth int, domainFilter, versionConstraint string) ([]*graph.Path, error) {
	if maxDepth < MinDepth {
		maxDepth = MinDepth
	}
	if maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}

	paths, err := r.store.TraversePaths(ctx, graph.TraversalRequest{
		AnchorID:          anchor,
		MaxDepth:          maxDepth,
		DomainFilter:      domainFilter,
		VersionConstraint: versionConstraint,
	})
	if err != nil {
		return nil, fmt.Errorf("traverse from %q: %w", anchor, err)
	}
	return paths, nil
}

// Prune scores, filters, and sorts candidates, truncating to the configured
// MaxPaths. See PruneTo.
func (r *Retriever) Prune(candidates []*graph.Path, threshold float64) []*ScoredPath {
	return r.PruneTo(candidates, threshold, r.cfg.MaxPaths)
}

// PruneTo scores every candidate, discards paths below the threshold, and
// returns the survivors sorted descending by reliability, truncated to
// maxPaths (non-positive values fall back to the configured MaxPaths). Ties
// are broken by shorter path, then lexicographic order on the joined
// node-name string. Malformed paths are dropped with a warning rather than
// failing the whole set.
func (r *Retriever) PruneTo(candidates []*graph.Path, threshold float64, maxPaths int) []*ScoredPath {
	if maxPaths <= 0 {
		maxPaths = r.cfg.MaxPaths
	}
	scored := make([]*ScoredPath, 0, len(candidates))

	for _, p := range candidates {
		if err := p.Validate(); err != nil {
			if r.logger != nil {
				r.logger.Warn("dropping malformed path",
					slog.Int("vertices", len(p.Nodes)),
					slog.Int("edges", len(p.Edges)),
					slog.String("error", err.Error()))
			}
			continue
		}

		reliability := score.Score(p, r.cfg.DecayRate)
		if reliability < threshold {
			continue
		}
		scored = append(scored, &ScoredPath{
			Path:        p,
			Reliability: reliability,
			DecayRate:   r.cfg.DecayRate,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Reliability != scored[j].Reliability {
			return scored[i].Reliability > scored[j].Reliability
		}
		if scored[i].Path.Len() != scored[j].Path.Len() {
			return scored[i].Path.Len() < scored[j].Path.Len()
		}
		return scored[i].Path.JoinedNames() < scored[j].Path.JoinedNames()
	})

	if len(scored) > maxPaths {
		scored = scored[:maxPaths]
	}
	return scored
}
