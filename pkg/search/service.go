// Package search implements the retrieval strategies over the memory and
// knowledge-graph stores: hierarchical funnelling, graph-guided expansion,
// reciprocal-rank fusion of both, and path queries for explainability.
package search

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dan-solli/recall/pkg/store"
)

// Options tunes a single retrieval call. Zero values fall back to the
// service defaults; depths are always clamped server-side.
type Options struct {
	// Limit caps the number of returned memories.
	Limit int

	// NodeTopK caps the number of entry nodes matched in step 1.
	NodeTopK int

	// ExpandDepth is the number of hops for graph-guided expansion.
	ExpandDepth int

	// EdgeTypes restricts traversable edge types. Empty means all.
	EdgeTypes []store.EdgeType

	// Filters are exact-match metadata predicates, applied as a hard
	// filter before any ranking or fusion.
	Filters map[string]string
}

// Result is one ranked memory.
type Result struct {
	Memory *store.Memory `json:"memory"`
	Score  float64       `json:"score"`

	// Node is the ID of the graph node that contributed the memory, when
	// a graph strategy surfaced it.
	Node string `json:"node_id,omitempty"`
}

// Service runs the retrieval strategies. All methods are read-only apart
// from the access-tracking bump applied to surfaced memories, so they may
// run fully concurrently.
type Service struct {
	memories store.MemoryStore
	graph    store.GraphStore
	log      *zap.Logger

	dim          int
	hopDecay     float64
	fusionK      int
	maxExpandDep int
	maxPathDep   int
	now          func() time.Time
}

// Config holds the tunables of the retrieval service.
type Config struct {
	Dim            int
	HopDecay       float64
	FusionK        int
	MaxExpandDepth int
	MaxPathDepth   int

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

const (
	defaultLimit    = 10
	defaultNodeTopK = 5
)

// NewService creates a retrieval service over the given stores.
func NewService(memories store.MemoryStore, graph store.GraphStore, log *zap.Logger, cfg Config) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.HopDecay <= 0 || cfg.HopDecay > 1 {
		cfg.HopDecay = 0.7
	}
	if cfg.FusionK <= 0 {
		cfg.FusionK = 60
	}
	if cfg.MaxExpandDepth <= 0 {
		cfg.MaxExpandDepth = 3
	}
	if cfg.MaxPathDepth <= 0 {
		cfg.MaxPathDepth = 6
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		memories:     memories,
		graph:        graph,
		log:          log,
		dim:          cfg.Dim,
		hopDecay:     cfg.HopDecay,
		fusionK:      cfg.FusionK,
		maxExpandDep: cfg.MaxExpandDepth,
		maxPathDep:   cfg.MaxPathDepth,
		now:          cfg.Now,
	}
}

// validateQuery rejects a wrong-dimension query embedding before any
// database access.
func (s *Service) validateQuery(queryEmbedding []float32) error {
	if len(queryEmbedding) != s.dim {
		return &store.ValidationError{
			Field:  "query_embedding",
			Reason: "wrong embedding dimension",
		}
	}
	return nil
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return defaultLimit
	}
	return o.Limit
}

func (o Options) nodeTopK() int {
	if o.NodeTopK <= 0 {
		return defaultNodeTopK
	}
	return o.NodeTopK
}

// rank sorts results by non-increasing score, breaking ties by more
// recent access and then by memory ID, and truncates to limit.
func rank(results []*Result, limit int) []*Result {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Memory.AccessedAt.Equal(results[j].Memory.AccessedAt) {
			return results[i].Memory.AccessedAt.After(results[j].Memory.AccessedAt)
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// touch applies the read-through access bump to surfaced memories and
// their contributing nodes. Failures here degrade tracking, not results.
func (s *Service) touch(ctx context.Context, results []*Result) {
	if len(results) == 0 {
		return
	}

	memIDs := make([]string, 0, len(results))
	var nodeIDs []string
	seenNodes := make(map[string]bool)
	for _, r := range results {
		memIDs = append(memIDs, r.Memory.ID)
		if r.Node != "" && !seenNodes[r.Node] {
			seenNodes[r.Node] = true
			nodeIDs = append(nodeIDs, r.Node)
		}
	}

	if err := s.memories.Touch(ctx, memIDs); err != nil {
		s.log.Warn("failed to touch memories", zap.Error(err))
	}
	if err := s.graph.TouchNodes(ctx, nodeIDs); err != nil {
		s.log.Warn("failed to touch nodes", zap.Error(err))
	}
}
