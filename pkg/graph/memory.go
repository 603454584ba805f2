package graph

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryGraphStore is an in-memory GraphStore implementation.
// Intended for tests and small embedded deployments; production setups use
// SQLiteGraphStore or an external store behind the same interface.
type MemoryGraphStore struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	outgoing map[string][]*Edge // source node ID -> edges
}

// NewMemoryGraphStore creates an empty in-memory graph store.
func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]*Edge),
	}
}

// Compile-time interface check
var _ GraphStore = (*MemoryGraphStore)(nil)

// AddNode adds or updates a node (upsert by ID).
func (m *MemoryGraphStore) AddNode(ctx context.Context, node *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}
	m.nodes[node.ID] = node
	return nil
}

// GetNode retrieves a node by ID. Returns (nil, nil) when not found.
func (m *MemoryGraphStore) GetNode(ctx context.Context, id string) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes[id], nil
}

// AddEdge adds or updates an edge (upsert by ID).
func (m *MemoryGraphStore) AddEdge(ctx context.Context, edge *Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now()
	}
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}

	// Upsert: replace an existing edge with the same ID
	edges := m.outgoing[edge.SourceID]
	for i, existing := range edges {
		if existing.ID == edge.ID {
			edges[i] = edge
			return nil
		}
	}
	m.outgoing[edge.SourceID] = append(edges, edge)
	return nil
}

// GetEdges retrieves all outgoing edges of a node.
func (m *MemoryGraphStore) GetEdges(ctx context.Context, nodeID string) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	edges := m.outgoing[nodeID]
	out := make([]*Edge, len(edges))
	copy(out, edges)
	return out, nil
}

// TraversePaths enumerates simple directed paths from the anchor with
// 1..MaxDepth hops via depth-first expansion. Nodes failing the domain
// filter or the version cutoff are not entered; the anchor itself is exempt
// from the domain filter so that cross-domain anchors can still seed a
// traversal.
func (m *MemoryGraphStore) TraversePaths(ctx context.Context, req TraversalRequest) ([]*Path, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	anchor, ok := m.nodes[req.AnchorID]
	if !ok {
		return nil, ErrNodeNotFound
	}

	maxDepth := req.MaxDepth
	if maxDepth < 1 {
		maxDepth = 1
	}
	cutoff := parseVersionCutoff(req.VersionConstraint)

	var paths []*Path
	onPath := map[string]bool{anchor.ID: true}

	var walk func(nodes []*Node, edges []*Edge) error
	walk = func(nodes []*Node, edges []*Edge) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(edges) >= maxDepth {
			return nil
		}
		tail := nodes[len(nodes)-1]
		for _, e := range m.outgoing[tail.ID] {
			if cutoff != nil && e.CreatedAt.After(*cutoff) {
				continue
			}
			next, ok := m.nodes[e.TargetID]
			if !ok || onPath[next.ID] {
				continue
			}
			if req.DomainFilter != "" && next.Domain != req.DomainFilter {
				continue
			}
			if cutoff != nil && next.CreatedAt.After(*cutoff) {
				continue
			}

			extNodes := append(append([]*Node{}, nodes...), next)
			extEdges := append(append([]*Edge{}, edges...), e)
			paths = append(paths, &Path{Nodes: extNodes, Edges: extEdges})

			onPath[next.ID] = true
			if err := walk(extNodes, extEdges); err != nil {
				return err
			}
			onPath[next.ID] = false
		}
		return nil
	}

	if err := walk([]*Node{anchor}, nil); err != nil {
		return nil, err
	}
	return paths, nil
}

// NodeCount returns the total number of nodes.
func (m *MemoryGraphStore) NodeCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the total number of edges.
func (m *MemoryGraphStore) EdgeCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, edges := range m.outgoing {
		n += int64(len(edges))
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryGraphStore) Close() error {
	return nil
}

// parseVersionCutoff interprets a version constraint as an RFC 3339 snapshot
// cutoff. Unparsable constraints are ignored (treated as unconstrained); the
// token is opaque to the core and resolved here only as a convenience.
func parseVersionCutoff(constraint string) *time.Time {
	if constraint == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, constraint)
	if err != nil {
		return nil
	}
	return &t
}
