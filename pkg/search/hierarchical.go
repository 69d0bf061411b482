package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dan-solli/recall/pkg/store"
)

// Hierarchical runs the two-step coarse-to-fine funnel: match entry nodes
// against the query, restrict candidates to memories associated with those
// nodes, then rank the restricted set with the hybrid scorer. An owner
// with no matching nodes gets an empty list, never an error.
func (s *Service) Hierarchical(ctx context.Context, ownerID, query string, queryEmbedding []float32, opts Options) ([]*Result, error) {
	results, err := s.hierarchical(ctx, ownerID, query, queryEmbedding, opts)
	if err != nil {
		return nil, err
	}
	results = rank(results, opts.limit())
	s.touch(ctx, results)
	return results, nil
}

// hierarchical produces the unranked candidate scores. Shared with Hybrid,
// which fuses before ranking and touches once.
func (s *Service) hierarchical(ctx context.Context, ownerID, query string, queryEmbedding []float32, opts Options) ([]*Result, error) {
	if err := s.validateQuery(queryEmbedding); err != nil {
		return nil, err
	}

	matches, err := s.graph.MatchNodes(ctx, ownerID, query, queryEmbedding, opts.nodeTopK())
	if err != nil {
		return nil, fmt.Errorf("failed to match nodes: %w", err)
	}
	if len(matches) == 0 {
		return []*Result{}, nil
	}

	// Abort before funnelling if the caller already gave up.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodeIDs := make([]string, len(matches))
	for i, m := range matches {
		nodeIDs[i] = m.Node.ID
	}

	assocs, err := s.graph.AssociationsForNodes(ctx, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load associations: %w", err)
	}

	memToNode := make(map[string]string, len(assocs))
	memIDs := make([]string, 0, len(assocs))
	for _, a := range assocs {
		if _, seen := memToNode[a.MemoryID]; !seen {
			memIDs = append(memIDs, a.MemoryID)
			memToNode[a.MemoryID] = a.NodeID
		}
	}

	candidates, err := s.memories.ByIDs(ctx, ownerID, memIDs, opts.Filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate memories: %w", err)
	}

	now := s.now()
	results := make([]*Result, 0, len(candidates))
	for _, m := range candidates {
		d := store.CosineDistance(queryEmbedding, m.Embedding)
		results = append(results, &Result{
			Memory: m,
			Score:  HybridScore(d, m.AccessedAt, m.AccessCount, now),
			Node:   memToNode[m.ID],
		})
	}

	s.log.Debug("hierarchical funnel",
		zap.String("owner_id", ownerID),
		zap.Int("entry_nodes", len(matches)),
		zap.Int("candidates", len(results)),
	)
	return results, nil
}
