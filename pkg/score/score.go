// Package score computes path reliability via resource-flow propagation.
//
// A unit of resource starts at the path's source node and flows along each
// edge, attenuated by the edge weight and a geometric per-hop decay. The
// accumulated flow, normalized by edge count, is the path's reliability.
package score

import (
	"math"

	"github.com/knograph/knograph/pkg/graph"
)

// SingleNodeScore is the fixed reliability assigned to a path with no edges.
// A lone node carries minimal evidence but is not worthless.
const SingleNodeScore = 0.1

// DefaultDecayRate is the per-hop decay applied when callers pass a value
// outside (0, 1].
const DefaultDecayRate = 0.85

// Score computes the reliability of a path in [0, 1].
//
// decayRate is the per-hop multiplicative penalty in (0, 1]: values near 1
// favor long paths, values near 0 heavily penalize depth. Out-of-range
// values fall back to DefaultDecayRate.
//
// Edge cases: a single-node path returns SingleNodeScore; a path with
// vertices but no edge data is scored by a length-only heuristic
// (0.3 / max(1, vertexCount-1)).
func Score(path *graph.Path, decayRate float64) float64 {
	if path == nil || len(path.Nodes) == 0 {
		return 0
	}
	if decayRate <= 0 || decayRate > 1 {
		decayRate = DefaultDecayRate
	}

	if len(path.Nodes) == 1 {
		return SingleNodeScore
	}
	if len(path.Edges) == 0 {
		// Edge data missing: length-only fallback.
		return 0.3 / math.Max(1, float64(len(path.Nodes)-1))
	}

	resources := map[string]float64{path.Nodes[0].ID: 1.0}
	pathScore := 0.0

	for i, edge := range path.Edges {
		r, ok := resources[edge.SourceID]
		if !ok || r == 0 {
			// Disconnected or malformed hop contributes nothing.
			continue
		}
		flow := r * edge.Weight * math.Pow(decayRate, float64(i))
		resources[edge.TargetID] += flow
		pathScore += flow
	}

	reliability := pathScore / math.Max(1, float64(len(path.Edges)))
	return clamp01(reliability)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
