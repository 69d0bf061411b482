package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/dan-solli/recall/pkg/store"
)

// PathStep is one hop along a path through the knowledge graph.
type PathStep struct {
	NodeID string      `json:"node_id"`
	Edge   *store.Edge `json:"edge,omitempty"`
}

// Path is a sequence of hops with the cumulative product of edge weights.
type Path struct {
	Steps    []PathStep `json:"steps"`
	Strength float64    `json:"strength"`
}

// ShortestPath finds the shortest node-graph route between the nodes
// associated with two memories, via BFS. Returns nil when the memories are
// unreachable from each other within maxDepth hops.
func (s *Service) ShortestPath(ctx context.Context, ownerID, fromMemoryID, toMemoryID string, maxDepth int) (*Path, error) {
	if maxDepth <= 0 || maxDepth > s.maxPathDep {
		maxDepth = s.maxPathDep
	}

	startIDs, err := s.associatedNodeIDs(ctx, ownerID, fromMemoryID)
	if err != nil {
		return nil, err
	}
	goalIDs, err := s.associatedNodeIDs(ctx, ownerID, toMemoryID)
	if err != nil {
		return nil, err
	}
	if len(startIDs) == 0 || len(goalIDs) == 0 {
		return nil, nil
	}

	goals := make(map[string]bool, len(goalIDs))
	for _, id := range goalIDs {
		goals[id] = true
	}

	visited := make(map[string]visit, len(startIDs))
	frontier := make([]string, 0, len(startIDs))
	for _, id := range startIDs {
		visited[id] = visit{}
		frontier = append(frontier, id)
		if goals[id] {
			// Both memories hang off the same node.
			return &Path{Steps: []PathStep{{NodeID: id}}, Strength: 1}, nil
		}
	}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []string
		for _, nodeID := range frontier {
			adjacent, err := s.graph.Neighbors(ctx, nodeID, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to expand node %s: %w", nodeID, err)
			}
			for _, adj := range adjacent {
				if _, seen := visited[adj.NeighborID]; seen {
					continue
				}
				visited[adj.NeighborID] = visit{parent: nodeID, edge: adj.Edge}
				if goals[adj.NeighborID] {
					return reconstruct(adj.NeighborID, visited), nil
				}
				next = append(next, adj.NeighborID)
			}
		}
		frontier = next
	}
	return nil, nil
}

func reconstruct(goal string, visited map[string]visit) *Path {
	var steps []PathStep
	strength := 1.0
	for id := goal; ; {
		v := visited[id]
		steps = append(steps, PathStep{NodeID: id, Edge: v.edge})
		if v.edge == nil {
			break
		}
		strength *= v.edge.Weight
		id = v.parent
	}
	// Built goal-first; flip to start-first.
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return &Path{Steps: steps, Strength: strength}
}

// visit is BFS bookkeeping for path reconstruction.
type visit struct {
	parent string
	edge   *store.Edge
}

// Traverse enumerates all paths out of the nodes associated with a memory
// whose cumulative edge-weight product stays at or above minStrength.
// Depth is clamped server-side; a node is never revisited within a single
// path, so cyclic graphs terminate.
func (s *Service) Traverse(ctx context.Context, ownerID, startMemoryID string, maxDepth int, minStrength float64, edgeTypes []store.EdgeType) ([]*Path, error) {
	if maxDepth <= 0 || maxDepth > s.maxPathDep {
		maxDepth = s.maxPathDep
	}
	if minStrength < 0 {
		minStrength = 0
	}

	startIDs, err := s.associatedNodeIDs(ctx, ownerID, startMemoryID)
	if err != nil {
		return nil, err
	}

	var paths []*Path
	for _, startID := range startIDs {
		onPath := map[string]bool{startID: true}
		err := s.walk(ctx, startID, []PathStep{{NodeID: startID}}, 1.0, maxDepth, minStrength, edgeTypes, onPath, &paths)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Strength != paths[j].Strength {
			return paths[i].Strength > paths[j].Strength
		}
		return len(paths[i].Steps) < len(paths[j].Steps)
	})
	return paths, nil
}

func (s *Service) walk(ctx context.Context, nodeID string, steps []PathStep, strength float64, depth int, minStrength float64, edgeTypes []store.EdgeType, onPath map[string]bool, out *[]*Path) error {
	if depth == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	adjacent, err := s.graph.Neighbors(ctx, nodeID, edgeTypes)
	if err != nil {
		return fmt.Errorf("failed to expand node %s: %w", nodeID, err)
	}

	for _, adj := range adjacent {
		if onPath[adj.NeighborID] {
			continue
		}
		next := strength * adj.Edge.Weight
		if next < minStrength {
			continue
		}

		extended := make([]PathStep, len(steps), len(steps)+1)
		copy(extended, steps)
		extended = append(extended, PathStep{NodeID: adj.NeighborID, Edge: adj.Edge})
		*out = append(*out, &Path{Steps: extended, Strength: next})

		onPath[adj.NeighborID] = true
		if err := s.walk(ctx, adj.NeighborID, extended, next, depth-1, minStrength, edgeTypes, onPath, out); err != nil {
			return err
		}
		delete(onPath, adj.NeighborID)
	}
	return nil
}

// associatedNodeIDs resolves a memory (owner-checked) to its node IDs.
func (s *Service) associatedNodeIDs(ctx context.Context, ownerID, memoryID string) ([]string, error) {
	if _, err := s.memories.Get(ctx, ownerID, memoryID); err != nil {
		return nil, err
	}
	assocs, err := s.graph.Associations(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load associations: %w", err)
	}
	ids := make([]string, len(assocs))
	for i, a := range assocs {
		ids[i] = a.NodeID
	}
	return ids, nil
}
