package recall

import (
	"context"

	"go.uber.org/zap"

	"github.com/dan-solli/recall/pkg/search"
	"github.com/dan-solli/recall/pkg/store"
)

// SearchOptions tunes a retrieval call. See search.Options.
type SearchOptions = search.Options

// SearchResponse is a ranked result list. Degraded marks a retrieval that
// failed after input validation and returned empty rather than erroring,
// so the caller's conversation flow survives an engine hiccup.
type SearchResponse struct {
	Results  []*search.Result `json:"results"`
	Degraded bool             `json:"degraded,omitempty"`
}

// HierarchicalSearch runs the coarse-to-fine node funnel.
func (e *Engine) HierarchicalSearch(ctx context.Context, ownerID, query string, opts SearchOptions) (*SearchResponse, error) {
	return e.runSearch(ctx, "hierarchical", ownerID, query, opts, e.search.Hierarchical)
}

// GraphGuidedSearch runs expansion search along graph edges.
func (e *Engine) GraphGuidedSearch(ctx context.Context, ownerID, query string, opts SearchOptions) (*SearchResponse, error) {
	return e.runSearch(ctx, "graph_guided", ownerID, query, opts, e.search.GraphGuided)
}

// HybridSearch fuses hierarchical, graph-guided, and full-corpus vector
// results by reciprocal rank. This is the default strategy callers should
// use unless they explicitly want a cheaper single strategy.
func (e *Engine) HybridSearch(ctx context.Context, ownerID, query string, opts SearchOptions) (*SearchResponse, error) {
	return e.runSearch(ctx, "hybrid", ownerID, query, opts, e.search.Hybrid)
}

type strategyFn func(ctx context.Context, ownerID, query string, queryEmbedding []float32, opts search.Options) ([]*search.Result, error)

func (e *Engine) runSearch(ctx context.Context, strategy, ownerID, query string, opts SearchOptions, run strategyFn) (*SearchResponse, error) {
	start := e.now()

	queryEmbedding, err := e.embedder.EmbedOne(ctx, query)
	if err != nil {
		return e.degrade(ctx, strategy, err)
	}

	results, err := run(ctx, ownerID, query, queryEmbedding, opts)
	if err != nil {
		// Malformed caller input surfaces immediately; anything else
		// degrades to an empty response.
		if store.IsValidation(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return e.degrade(ctx, strategy, err)
	}

	e.metrics.RecordSearch(ctx, strategy, len(results), e.now().Sub(start).Milliseconds())
	return &SearchResponse{Results: results}, nil
}

func (e *Engine) degrade(ctx context.Context, strategy string, err error) (*SearchResponse, error) {
	e.metrics.RecordError(ctx, "search_"+strategy, "degraded")
	e.log.Warn("search degraded",
		zap.String("strategy", strategy),
		zap.Error(err),
	)
	return &SearchResponse{Results: []*search.Result{}, Degraded: true}, nil
}

// ShortestPath finds the shortest graph route between two memories, nil
// when unreachable within maxDepth.
func (e *Engine) ShortestPath(ctx context.Context, ownerID, fromMemoryID, toMemoryID string, maxDepth int) (*search.Path, error) {
	return e.search.ShortestPath(ctx, ownerID, fromMemoryID, toMemoryID, maxDepth)
}

// Traverse enumerates paths out of a memory's nodes whose cumulative
// edge-weight product stays at or above minStrength.
func (e *Engine) Traverse(ctx context.Context, ownerID, startMemoryID string, maxDepth int, minStrength float64, edgeTypes []store.EdgeType) ([]*search.Path, error) {
	return e.search.Traverse(ctx, ownerID, startMemoryID, maxDepth, minStrength, edgeTypes)
}
