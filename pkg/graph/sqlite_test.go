package graph

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStore_NodeRoundTrip(t *testing.T) {
	s, err := NewSQLiteGraphStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteGraphStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	node := &Node{
		Name:         "PaymentService",
		Type:         "Service",
		Domain:       "infra",
		Observations: []string{"handles card payments", "deployed in eu-west"},
		EmbeddingRef: "emb-123",
		Metadata:     map[string]interface{}{"team": "payments"},
	}
	if err := s.AddNode(ctx, node); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if node.ID == "" {
		t.Fatal("AddNode did not assign an ID")
	}

	got, err := s.GetNode(ctx, node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got == nil {
		t.Fatal("GetNode returned nil for existing node")
	}
	if got.Name != node.Name || got.Domain != node.Domain || got.EmbeddingRef != node.EmbeddingRef {
		t.Errorf("round-trip mismatch: got %+v", got)
	}
	if len(got.Observations) != 2 {
		t.Errorf("observations: got %d, want 2", len(got.Observations))
	}
	if got.Metadata["team"] != "payments" {
		t.Errorf("metadata: got %v", got.Metadata)
	}

	missing, err := s.GetNode(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetNode(missing): got (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestSQLiteStore_TraversePaths(t *testing.T) {
	s, err := NewSQLiteGraphStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteGraphStore: %v", err)
	}
	defer s.Close()

	seedStore(t, s)

	paths, err := s.TraversePaths(context.Background(), TraversalRequest{AnchorID: "a", MaxDepth: 3})
	if err != nil {
		t.Fatalf("TraversePaths: %v", err)
	}

	got := pathNames(paths)
	for _, w := range []string{"EntityA->EntityB", "EntityA->EntityB->EntityC", "EntityA->EntityD"} {
		if !got[w] {
			t.Errorf("missing path %q", w)
		}
	}

	// Edge weights must survive the round trip; they drive scoring.
	for _, p := range paths {
		if p.JoinedNames() == "EntityA->EntityB->EntityC" {
			if p.Edges[1].Weight != 0.5 {
				t.Errorf("edge weight: got %v, want 0.5", p.Edges[1].Weight)
			}
		}
	}
}

func TestSQLiteStore_DomainFilter(t *testing.T) {
	s, err := NewSQLiteGraphStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteGraphStore: %v", err)
	}
	defer s.Close()

	seedStore(t, s)

	paths, err := s.TraversePaths(context.Background(), TraversalRequest{
		AnchorID:     "a",
		MaxDepth:     3,
		DomainFilter: "infra",
	})
	if err != nil {
		t.Fatalf("TraversePaths: %v", err)
	}
	if pathNames(paths)["EntityA->EntityD"] {
		t.Error("domain filter leaked a people-domain node")
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "graph.db")
	ctx := context.Background()

	s, err := NewSQLiteGraphStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteGraphStore: %v", err)
	}
	seedStore(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteGraphStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	nodes, err := reopened.NodeCount(ctx)
	if err != nil || nodes != 4 {
		t.Errorf("NodeCount after reopen: got (%d, %v), want (4, nil)", nodes, err)
	}
	edges, err := reopened.EdgeCount(ctx)
	if err != nil || edges != 3 {
		t.Errorf("EdgeCount after reopen: got (%d, %v), want (3, nil)", edges, err)
	}
}
