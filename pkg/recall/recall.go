// Package recall provides a hierarchical memory and knowledge-graph
// retrieval engine for AI companions: tiered memories scored by a hybrid
// of vector similarity, recency, and access frequency, organized into a
// knowledge graph that narrows and re-ranks candidates before they reach
// a language model.
package recall

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dan-solli/recall/pkg/cache"
	"github.com/dan-solli/recall/pkg/embeddings"
	"github.com/dan-solli/recall/pkg/extract"
	"github.com/dan-solli/recall/pkg/llm"
	"github.com/dan-solli/recall/pkg/metrics"
	"github.com/dan-solli/recall/pkg/search"
	"github.com/dan-solli/recall/pkg/store"
)

// Config holds configuration for the engine.
type Config struct {
	// DBPath is the SQLite database path, or ":memory:".
	DBPath string

	// OpenAIKey for embeddings and extraction.
	OpenAIKey string

	// EmbeddingModel (default: "text-embedding-3-small").
	EmbeddingModel string

	// LLMModel for entity extraction (default: "gpt-4o-mini").
	LLMModel string

	// Dim is the embedding dimension (default: 1536). Every write and
	// query embedding is validated against it.
	Dim int

	// RetentionDays is the TASK-tier retention window (default: 30).
	RetentionDays int

	// MaxExpandDepth bounds graph-guided expansion server-side
	// (default: 3).
	MaxExpandDepth int

	// MaxPathDepth bounds path queries server-side (default: 6).
	MaxPathDepth int

	// HopDecay is the per-hop contribution decay (default: 0.7).
	HopDecay float64

	// FusionK is the reciprocal-rank-fusion constant (default: 60).
	FusionK int

	// NodeCacheTTL bounds the hot-node cache (default: 1 minute).
	NodeCacheTTL time.Duration

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics defaults to the no-op collector.
	Metrics metrics.Collector

	// Embedder overrides the OpenAI provider, for tests and alternative
	// backends.
	Embedder embeddings.Provider

	// Extractor overrides the LLM extractor.
	Extractor extract.Extractor

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Engine is the main entry point.
type Engine struct {
	cfg       Config
	log       *zap.Logger
	metrics   metrics.Collector
	graph     store.GraphStore
	memories  store.MemoryStore
	search    *search.Service
	embedder  embeddings.Provider
	extractor extract.Extractor
	nodes     *cache.NodeCache
	now       func() time.Time
}

// New creates an engine over a SQLite database at cfg.DBPath.
func New(cfg Config) (*Engine, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = ":memory:"
	}
	if cfg.Dim == 0 {
		cfg.Dim = 1536
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopCollector()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	embedder := cfg.Embedder
	if embedder == nil {
		provider := embeddings.NewOpenAIProvider(cfg.OpenAIKey)
		if cfg.EmbeddingModel != "" {
			provider.Model = cfg.EmbeddingModel
		}
		embedder = embeddings.NewBreaker("openai", provider, cfg.Logger)
	}
	if embedder.Dimension() != cfg.Dim {
		return nil, fmt.Errorf("embedder dimension %d does not match configured dimension %d",
			embedder.Dimension(), cfg.Dim)
	}

	extractor := cfg.Extractor
	if extractor == nil {
		client := llm.NewOpenAIClient(cfg.OpenAIKey)
		if cfg.LLMModel != "" {
			client.Model = cfg.LLMModel
		}
		extractor = extract.NewLLMExtractor(client)
	}

	graph, err := store.NewSQLiteGraphStore(cfg.DBPath, cfg.Dim)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph store: %w", err)
	}
	memories := store.NewSQLiteMemoryStore(graph.DB(), cfg.Dim)

	searcher := search.NewService(memories, graph, cfg.Logger, search.Config{
		Dim:            cfg.Dim,
		HopDecay:       cfg.HopDecay,
		FusionK:        cfg.FusionK,
		MaxExpandDepth: cfg.MaxExpandDepth,
		MaxPathDepth:   cfg.MaxPathDepth,
		Now:            cfg.Now,
	})

	return &Engine{
		cfg:       cfg,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		graph:     graph,
		memories:  memories,
		search:    searcher,
		embedder:  embedder,
		extractor: extractor,
		nodes:     cache.NewNodeCache(cfg.NodeCacheTTL),
		now:       cfg.Now,
	}, nil
}

// Close releases database resources.
func (e *Engine) Close() error {
	return e.graph.Close()
}
