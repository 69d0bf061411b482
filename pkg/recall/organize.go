package recall

import (
	"context"

	"go.uber.org/zap"

	"github.com/dan-solli/recall/pkg/extract"
	"github.com/dan-solli/recall/pkg/store"
)

// organizePlan is a normalized, embedded extraction result ready to be
// materialized.
type organizePlan struct {
	nodes []store.NodeCandidate
	edges []store.EdgeCandidate
}

// planOrganize extracts entities from text, normalizes them, and embeds
// the node names in one batch so semantic node lookup works from day one.
func (e *Engine) planOrganize(ctx context.Context, text string) (*organizePlan, error) {
	result, err := e.extractor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}

	nodes, edges := extract.Normalize(result)
	if len(nodes) == 0 {
		return &organizePlan{}, nil
	}

	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	vectors, err := e.embedder.Embed(ctx, names)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		nodes[i].Embedding = vectors[i]
	}

	return &organizePlan{nodes: nodes, edges: edges}, nil
}

func (e *Engine) materialize(ctx context.Context, ownerID, memoryID string, plan *organizePlan) ([]*store.Node, []*store.Edge, error) {
	if len(plan.nodes) == 0 {
		return nil, nil, nil
	}
	nodes, edges, err := e.graph.Materialize(ctx, ownerID, memoryID, plan.nodes, plan.edges)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range nodes {
		e.nodes.Invalidate(ownerID, n.ID)
	}

	e.log.Debug("memory organized",
		zap.String("owner_id", ownerID),
		zap.String("memory_id", memoryID),
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
	)
	return nodes, edges, nil
}

// AutoOrganize extracts entities and relationships from an existing
// memory's content and materializes them into the graph, associating the
// memory with every resulting node at the extractor-reported confidence.
// Idempotent: repeat calls collapse into the same nodes and edges.
func (e *Engine) AutoOrganize(ctx context.Context, ownerID, memoryID string) ([]*store.Node, []*store.Edge, error) {
	m, err := e.memories.Get(ctx, ownerID, memoryID)
	if err != nil {
		return nil, nil, err
	}

	plan, err := e.planOrganize(ctx, m.Content)
	if err != nil {
		e.metrics.RecordError(ctx, "auto_organize", "extraction_unavailable")
		return nil, nil, err
	}

	return e.materialize(ctx, ownerID, memoryID, plan)
}
