package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dan-solli/recall/pkg/store"
)

// nodeReach records how strongly a reached node contributes to memories
// associated with it.
type nodeReach struct {
	relevance  float64
	importance float64
}

// GraphGuided runs expansion search: match entry nodes, breadth-first
// expand along traversable edges with a per-hop multiplicative decay, then
// score each associated memory as vector similarity times the strongest
// decayed contribution among its nodes.
func (s *Service) GraphGuided(ctx context.Context, ownerID, query string, queryEmbedding []float32, opts Options) ([]*Result, error) {
	results, err := s.graphGuided(ctx, ownerID, query, queryEmbedding, opts)
	if err != nil {
		return nil, err
	}
	results = rank(results, opts.limit())
	s.touch(ctx, results)
	return results, nil
}

func (s *Service) graphGuided(ctx context.Context, ownerID, query string, queryEmbedding []float32, opts Options) ([]*Result, error) {
	if err := s.validateQuery(queryEmbedding); err != nil {
		return nil, err
	}

	depth := opts.ExpandDepth
	if depth < 0 {
		depth = 0
	}
	if depth > s.maxExpandDep {
		depth = s.maxExpandDep
	}

	matches, err := s.graph.MatchNodes(ctx, ownerID, query, queryEmbedding, opts.nodeTopK())
	if err != nil {
		return nil, fmt.Errorf("failed to match nodes: %w", err)
	}
	if len(matches) == 0 {
		return []*Result{}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// BFS with a visited set: a node's contribution is fixed by the first
	// (shallowest, strongest) path that discovers it, which also
	// guarantees termination on cyclic graphs.
	reached := make(map[string]nodeReach, len(matches))
	frontier := make([]string, 0, len(matches))
	for _, m := range matches {
		reached[m.Node.ID] = nodeReach{relevance: m.Strength, importance: m.Node.Importance}
		frontier = append(frontier, m.Node.ID)
	}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, nodeID := range frontier {
			adjacent, err := s.graph.Neighbors(ctx, nodeID, opts.EdgeTypes)
			if err != nil {
				return nil, fmt.Errorf("failed to expand node %s: %w", nodeID, err)
			}
			parent := reached[nodeID]
			for _, adj := range adjacent {
				if _, seen := reached[adj.NeighborID]; seen {
					continue
				}
				neighbor, err := s.graph.GetNode(ctx, ownerID, adj.NeighborID)
				if err != nil {
					// Neighbor outside the owner scope; skip.
					continue
				}
				reached[adj.NeighborID] = nodeReach{
					relevance:  parent.relevance * s.hopDecay,
					importance: neighbor.Importance,
				}
				next = append(next, adj.NeighborID)
			}
		}
		frontier = next
	}

	nodeIDs := make([]string, 0, len(reached))
	for id := range reached {
		nodeIDs = append(nodeIDs, id)
	}

	assocs, err := s.graph.AssociationsForNodes(ctx, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load associations: %w", err)
	}

	// Per memory, keep the strongest contributing node. Ties break on the
	// node's importance prior.
	type contribution struct {
		relevance  float64
		importance float64
		nodeID     string
	}
	best := make(map[string]contribution, len(assocs))
	memIDs := make([]string, 0, len(assocs))
	for _, a := range assocs {
		r := reached[a.NodeID]
		c := contribution{relevance: r.relevance, importance: r.importance, nodeID: a.NodeID}
		prev, seen := best[a.MemoryID]
		if !seen {
			memIDs = append(memIDs, a.MemoryID)
			best[a.MemoryID] = c
			continue
		}
		if c.relevance > prev.relevance ||
			(c.relevance == prev.relevance && c.importance > prev.importance) {
			best[a.MemoryID] = c
		}
	}

	candidates, err := s.memories.ByIDs(ctx, ownerID, memIDs, opts.Filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate memories: %w", err)
	}

	results := make([]*Result, 0, len(candidates))
	for _, m := range candidates {
		c := best[m.ID]
		sim := store.CosineSimilarity(queryEmbedding, m.Embedding)
		if sim < 0 {
			sim = 0
		}
		results = append(results, &Result{
			Memory: m,
			Score:  sim * c.relevance,
			Node:   c.nodeID,
		})
	}

	s.log.Debug("graph-guided expansion",
		zap.String("owner_id", ownerID),
		zap.Int("depth", depth),
		zap.Int("reached_nodes", len(reached)),
		zap.Int("candidates", len(results)),
	)
	return results, nil
}
