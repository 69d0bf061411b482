package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dan-solli/recall/pkg/store"
)

// Hybrid is the default, highest-precision strategy: it runs the
// hierarchical funnel, graph-guided expansion, and a full-corpus vector
// scan independently, then merges the three ranked lists with reciprocal
// rank fusion. Metadata filters are applied inside each list before
// fusion, so a filtered-out memory can never surface regardless of score.
func (s *Service) Hybrid(ctx context.Context, ownerID, query string, queryEmbedding []float32, opts Options) ([]*Result, error) {
	if err := s.validateQuery(queryEmbedding); err != nil {
		return nil, err
	}

	hier, err := s.hierarchical(ctx, ownerID, query, queryEmbedding, opts)
	if err != nil {
		return nil, err
	}
	guided, err := s.graphGuided(ctx, ownerID, query, queryEmbedding, opts)
	if err != nil {
		return nil, err
	}
	vector, err := s.vectorScan(ctx, ownerID, queryEmbedding, opts)
	if err != nil {
		return nil, err
	}

	fused := s.fuse([][]*Result{
		rankCopy(hier),
		rankCopy(guided),
		rankCopy(vector),
	})

	results := rank(fused, opts.limit())
	s.touch(ctx, results)

	s.log.Debug("hybrid fusion",
		zap.String("owner_id", ownerID),
		zap.Int("hierarchical", len(hier)),
		zap.Int("graph_guided", len(guided)),
		zap.Int("vector", len(vector)),
		zap.Int("fused", len(fused)),
	)
	return results, nil
}

// vectorScan scores every memory of the owner against the query. The
// unfiltered full-corpus baseline the graph strategies exist to avoid, but
// as one fusion input it catches memories the graph never organized.
func (s *Service) vectorScan(ctx context.Context, ownerID string, queryEmbedding []float32, opts Options) ([]*Result, error) {
	candidates, err := s.memories.All(ctx, ownerID, opts.Filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load memories: %w", err)
	}

	now := s.now()
	results := make([]*Result, 0, len(candidates))
	for _, m := range candidates {
		d := store.CosineDistance(queryEmbedding, m.Embedding)
		results = append(results, &Result{
			Memory: m,
			Score:  HybridScore(d, m.AccessedAt, m.AccessCount, now),
		})
	}
	return results, nil
}

// fuse merges ranked lists by reciprocal rank fusion: each memory scores
// sum(1/(k + rank)) over the lists it appears in, rank 1-based.
func (s *Service) fuse(lists [][]*Result) []*Result {
	fused := make(map[string]*Result)
	for _, list := range lists {
		for i, r := range list {
			contribution := 1.0 / float64(s.fusionK+i+1)
			if existing, ok := fused[r.Memory.ID]; ok {
				existing.Score += contribution
				if existing.Node == "" {
					existing.Node = r.Node
				}
				continue
			}
			fused[r.Memory.ID] = &Result{
				Memory: r.Memory,
				Score:  contribution,
				Node:   r.Node,
			}
		}
	}

	out := make([]*Result, 0, len(fused))
	for _, r := range fused {
		out = append(out, r)
	}
	return out
}

// rankCopy sorts a candidate list without truncating or mutating it.
func rankCopy(results []*Result) []*Result {
	sorted := make([]*Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Memory.ID < sorted[j].Memory.ID
	})
	return sorted
}
