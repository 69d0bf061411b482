package recall

import (
	"context"

	"github.com/dan-solli/recall/pkg/store"
)

// CreateNode creates or returns the existing node for the owner's
// (type, name) pair.
func (e *Engine) CreateNode(ctx context.Context, node *store.Node) (*store.Node, error) {
	if len(node.Embedding) == 0 && node.Name != "" {
		// Nodes created explicitly still get a name embedding so
		// semantic node matching can find them.
		vec, err := e.embedder.EmbedOne(ctx, node.Name)
		if err != nil {
			e.metrics.RecordError(ctx, "create_node", "embedding_unavailable")
			return nil, err
		}
		node.Embedding = vec
	}

	created, err := e.graph.CreateNode(ctx, node)
	if err != nil {
		return nil, err
	}
	e.nodes.Invalidate(created.OwnerID, created.ID)
	return created, nil
}

// GetNode retrieves a node, read through the hot-node cache.
func (e *Engine) GetNode(ctx context.Context, ownerID, id string) (*store.Node, error) {
	if n := e.nodes.Get(ownerID, id); n != nil {
		return n, nil
	}
	n, err := e.graph.GetNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	e.nodes.Put(n)
	return n, nil
}

// UpdateNode applies partial updates and invalidates the cache entry.
func (e *Engine) UpdateNode(ctx context.Context, ownerID, id string, upd store.NodeUpdate) (*store.Node, error) {
	n, err := e.graph.UpdateNode(ctx, ownerID, id, upd)
	if err != nil {
		return nil, err
	}
	e.nodes.Invalidate(ownerID, id)
	return n, nil
}

// DeleteNode removes a node; edges and associations cascade in one
// transaction.
func (e *Engine) DeleteNode(ctx context.Context, ownerID, id string) error {
	if err := e.graph.DeleteNode(ctx, ownerID, id); err != nil {
		return err
	}
	e.nodes.Invalidate(ownerID, id)
	return nil
}

// CreateEdge creates or updates the edge for the (source, target, type)
// triple.
func (e *Engine) CreateEdge(ctx context.Context, edge *store.Edge) (*store.Edge, error) {
	return e.graph.CreateEdge(ctx, edge)
}

// DeleteEdge removes a single edge.
func (e *Engine) DeleteEdge(ctx context.Context, ownerID, id string) error {
	return e.graph.DeleteEdge(ctx, ownerID, id)
}

// Associate links a memory to a node; repeated calls update relevance.
func (e *Engine) Associate(ctx context.Context, ownerID, memoryID, nodeID string, relevance float64) error {
	if _, err := e.memories.Get(ctx, ownerID, memoryID); err != nil {
		return err
	}
	if _, err := e.graph.GetNode(ctx, ownerID, nodeID); err != nil {
		return err
	}
	return e.graph.Associate(ctx, &store.Association{
		MemoryID:  memoryID,
		NodeID:    nodeID,
		Relevance: relevance,
	})
}

// GraphStats reports the size of the owner's graph.
type GraphStats struct {
	Nodes int64 `json:"nodes"`
	Edges int64 `json:"edges"`
}

// Stats counts the owner's nodes and edges.
func (e *Engine) Stats(ctx context.Context, ownerID string) (*GraphStats, error) {
	nodes, err := e.graph.NodeCount(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	edges, err := e.graph.EdgeCount(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	e.metrics.SetStorageCount(ctx, "nodes", nodes)
	e.metrics.SetStorageCount(ctx, "edges", edges)
	return &GraphStats{Nodes: nodes, Edges: edges}, nil
}
