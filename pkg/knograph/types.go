package knograph

import (
	"github.com/knograph/knograph/pkg/graph"
	"github.com/knograph/knograph/pkg/retrieve"
)

// Type re-exports for caller convenience

// Node is re-exported from graph package
type Node = graph.Node

// Edge is re-exported from graph package
type Edge = graph.Edge

// Path is re-exported from graph package
type Path = graph.Path

// GraphStore is re-exported from graph package
type GraphStore = graph.GraphStore

// ScoredPath is re-exported from retrieve package
type ScoredPath = retrieve.ScoredPath
