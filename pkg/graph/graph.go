// Package graph provides the data model and storage boundary for knograph's
// knowledge graph.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Node represents a knowledge graph entity.
// Nodes are immutable within a graph snapshot; mutation happens only through
// a store's own write path.
type Node struct {
	ID             string                 // Unique identifier (UUID)
	Name           string                 // Entity name
	Type           string                 // Entity type (Person, Concept, System, etc.)
	Domain         string                 // Domain label used for traversal filtering
	Observations   []string               // Atomic observation strings attached to the entity
	EmbeddingRef   string                 // Optional reference to an externally stored embedding
	CreatedAt      time.Time              // Timestamp of creation
	LastAccessedAt *time.Time             // Timestamp of last access
	Metadata       map[string]interface{} // Additional metadata as JSON
}

// Edge represents a directed relationship between two nodes.
type Edge struct {
	ID        string                 // Unique identifier (UUID)
	SourceID  string                 // Source node ID
	TargetID  string                 // Target node ID
	Relation  string                 // Relationship type, active-voice verb phrase (USES, DEPENDS_ON, etc.)
	Weight    float64                // Relationship weight (default 1.0), primary input to path scoring
	Metadata  map[string]interface{} // Additional metadata as JSON
	CreatedAt time.Time              // Timestamp of creation
}

// Path is an ordered walk through the graph: Nodes visited in order, and the
// Edges connecting consecutive nodes. A single-node path (no edges) is valid.
type Path struct {
	Nodes []*Node
	Edges []*Edge
}

// ErrMalformedPath indicates a path that violates the vertex/edge invariant.
var ErrMalformedPath = errors.New("malformed path: edge count must equal vertex count minus one")

// ErrNodeNotFound indicates that no node was found for the given criteria.
var ErrNodeNotFound = errors.New("node not found")

// Validate checks the structural invariant len(Edges) == len(Nodes)-1.
// An empty path (no nodes at all) is also malformed.
func (p *Path) Validate() error {
	if len(p.Nodes) == 0 {
		return ErrMalformedPath
	}
	if len(p.Edges) != len(p.Nodes)-1 {
		return fmt.Errorf("%w: %d edges for %d vertices", ErrMalformedPath, len(p.Edges), len(p.Nodes))
	}
	return nil
}

// Anchor returns the path's source node, or nil for an empty path.
func (p *Path) Anchor() *Node {
	if len(p.Nodes) == 0 {
		return nil
	}
	return p.Nodes[0]
}

// Len returns the number of edges (hops) in the path.
func (p *Path) Len() int {
	return len(p.Edges)
}

// JoinedNames returns the node names joined in path order.
// Used as a deterministic tie-break key when sorting equally scored paths.
func (p *Path) JoinedNames() string {
	names := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		names[i] = n.Name
	}
	return strings.Join(names, "->")
}

// Text renders the path as a single human-readable line suitable for prompt
// context, e.g. "ServiceA -[DEPENDS_ON]-> ServiceB -[STORES_DATA_IN]-> DB".
func (p *Path) Text() string {
	if len(p.Nodes) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(p.Nodes[0].Name)
	for i, e := range p.Edges {
		sb.WriteString(" -[")
		sb.WriteString(e.Relation)
		sb.WriteString("]-> ")
		if i+1 < len(p.Nodes) {
			sb.WriteString(p.Nodes[i+1].Name)
		}
	}
	return sb.String()
}

// TraversalRequest bundles the parameters of a bounded-depth traversal.
// VersionConstraint is an opaque token resolved by the store itself; the
// reference stores interpret it as an RFC 3339 snapshot cutoff and ignore
// values they cannot parse.
type TraversalRequest struct {
	AnchorID          string
	MaxDepth          int
	DomainFilter      string
	VersionConstraint string
}

// GraphStore defines the storage boundary the retrieval engine depends on.
// Implementations must be safe for concurrent use.
type GraphStore interface {
	// AddNode adds or updates a node (upsert by ID).
	// If Node.ID is empty, a new UUID is generated.
	AddNode(ctx context.Context, node *Node) error

	// GetNode retrieves a node by its ID.
	// Returns (nil, nil) if the node is not found (no error).
	GetNode(ctx context.Context, id string) (*Node, error)

	// AddEdge adds or updates an edge (upsert by ID).
	// If Edge.ID is empty, a new UUID is generated.
	AddEdge(ctx context.Context, edge *Edge) error

	// GetEdges retrieves all outgoing edges of a node.
	// Returns an empty slice if none exist.
	GetEdges(ctx context.Context, nodeID string) ([]*Edge, error)

	// TraversePaths enumerates simple directed paths starting at the anchor,
	// with 1..MaxDepth hops, honoring the domain filter and version
	// constraint. Returns an empty slice (not an error) when the anchor has
	// no qualifying outgoing paths.
	TraversePaths(ctx context.Context, req TraversalRequest) ([]*Path, error)

	// NodeCount returns the total number of nodes in the graph.
	NodeCount(ctx context.Context) (int64, error)

	// EdgeCount returns the total number of edges in the graph.
	EdgeCount(ctx context.Context) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
