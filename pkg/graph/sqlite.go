package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteGraphStore implements GraphStore using SQLite as the backend.
type SQLiteGraphStore struct {
	db *sql.DB
}

// NewSQLiteGraphStore creates a new SQLite-backed graph store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
// Creates tables and indexes if they don't exist.
func NewSQLiteGraphStore(dbPath string) (*SQLiteGraphStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteGraphStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Compile-time interface check
var _ GraphStore = (*SQLiteGraphStore)(nil)

func (s *SQLiteGraphStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE,
		type TEXT,
		domain TEXT,
		observations TEXT,
		embedding_ref TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_accessed_at DATETIME DEFAULT NULL,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_nodes_domain ON nodes(domain);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		relation TEXT NOT NULL,
		target_id TEXT NOT NULL,
		weight REAL DEFAULT 1.0,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_id) REFERENCES nodes(id),
		FOREIGN KEY (target_id) REFERENCES nodes(id)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// AddNode adds or updates a node in the graph.
func (s *SQLiteGraphStore) AddNode(ctx context.Context, node *Node) error {
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}

	observationsJSON, err := marshalJSONColumn(node.Observations)
	if err != nil {
		return fmt.Errorf("failed to marshal observations: %w", err)
	}
	metadataJSON, err := marshalJSONColumn(node.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO nodes (id, name, type, domain, observations, embedding_ref, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		node.ID,
		node.Name,
		node.Type,
		node.Domain,
		observationsJSON,
		node.EmbeddingRef,
		node.CreatedAt,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to add node: %w", err)
	}
	return nil
}

// GetNode retrieves a node by its ID.
// Also updates last_accessed_at to track access.
func (s *SQLiteGraphStore) GetNode(ctx context.Context, id string) (*Node, error) {
	node, err := s.scanNode(ctx, `
		SELECT id, name, type, domain, observations, embedding_ref, created_at, metadata
		FROM nodes
		WHERE id = ?
	`, id)
	if err != nil || node == nil {
		return node, err
	}

	// Access tracking is best-effort; a failed update never fails the read.
	_, _ = s.db.ExecContext(ctx, "UPDATE nodes SET last_accessed_at = ? WHERE id = ?", time.Now(), id)

	return node, nil
}

func (s *SQLiteGraphStore) scanNode(ctx context.Context, query string, args ...interface{}) (*Node, error) {
	var node Node
	var observationsJSON, metadataJSON []byte
	var embeddingRef sql.NullString

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&node.ID,
		&node.Name,
		&node.Type,
		&node.Domain,
		&observationsJSON,
		&embeddingRef,
		&node.CreatedAt,
		&metadataJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	node.EmbeddingRef = embeddingRef.String
	if len(observationsJSON) > 0 {
		if err := json.Unmarshal(observationsJSON, &node.Observations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal observations: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &node.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &node, nil
}

// AddEdge adds or updates an edge in the graph.
func (s *SQLiteGraphStore) AddEdge(ctx context.Context, edge *Edge) error {
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now()
	}
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}

	metadataJSON, err := marshalJSONColumn(edge.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO edges (id, source_id, relation, target_id, weight, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		edge.ID,
		edge.SourceID,
		edge.Relation,
		edge.TargetID,
		edge.Weight,
		metadataJSON,
		edge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add edge: %w", err)
	}
	return nil
}

// GetEdges retrieves all outgoing edges of a node.
func (s *SQLiteGraphStore) GetEdges(ctx context.Context, nodeID string) ([]*Edge, error) {
	return s.queryEdges(ctx, `
		SELECT id, source_id, relation, target_id, weight, metadata, created_at
		FROM edges
		WHERE source_id = ?
		ORDER BY created_at, id
	`, nodeID)
}

func (s *SQLiteGraphStore) queryEdges(ctx context.Context, query string, args ...interface{}) ([]*Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	edges := make([]*Edge, 0)
	for rows.Next() {
		var edge Edge
		var metadataJSON []byte
		if err := rows.Scan(&edge.ID, &edge.SourceID, &edge.Relation, &edge.TargetID, &edge.Weight, &metadataJSON, &edge.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &edge.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal edge metadata: %w", err)
			}
		}
		edges = append(edges, &edge)
	}
	return edges, rows.Err()
}

// TraversePaths enumerates simple directed paths from the anchor with
// 1..MaxDepth hops. Expansion is done hop by hop in Go over indexed edge
// lookups; the domain filter and version cutoff are pushed into SQL.
func (s *SQLiteGraphStore) TraversePaths(ctx context.Context, req TraversalRequest) ([]*Path, error) {
	anchor, err := s.scanNode(ctx, `
		SELECT id, name, type, domain, observations, embedding_ref, created_at, metadata
		FROM nodes WHERE id = ?
	`, req.AnchorID)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
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
		outgoing, err := s.traversableEdges(ctx, tail.ID, cutoff)
		if err != nil {
			return err
		}
		for _, e := range outgoing {
			if onPath[e.TargetID] {
				continue
			}
			next, err := s.scanNode(ctx, `
				SELECT id, name, type, domain, observations, embedding_ref, created_at, metadata
				FROM nodes WHERE id = ?
			`, e.TargetID)
			if err != nil {
				return err
			}
			if next == nil {
				continue // dangling edge
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

func (s *SQLiteGraphStore) traversableEdges(ctx context.Context, sourceID string, cutoff *time.Time) ([]*Edge, error) {
	if cutoff == nil {
		return s.GetEdges(ctx, sourceID)
	}
	return s.queryEdges(ctx, `
		SELECT id, source_id, relation, target_id, weight, metadata, created_at
		FROM edges
		WHERE source_id = ? AND created_at <= ?
		ORDER BY created_at, id
	`, sourceID, *cutoff)
}

// NodeCount returns the total number of nodes in the graph.
func (s *SQLiteGraphStore) NodeCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return count, nil
}

// EdgeCount returns the total number of edges in the graph.
func (s *SQLiteGraphStore) EdgeCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return count, nil
}

// Close closes the underlying database connection.
func (s *SQLiteGraphStore) Close() error {
	return s.db.Close()
}

func marshalJSONColumn(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []string:
		if val == nil {
			return nil, nil
		}
	case map[string]interface{}:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
