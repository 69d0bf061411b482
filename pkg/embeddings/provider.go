// Package embeddings provides the text-to-vector boundary of the engine.
// The engine consumes embeddings as a black-box service; provider failure
// surfaces as a typed UnavailableError so callers can retry with backoff
// instead of persisting a memory that semantic search could never find.
package embeddings

import "context"

// Provider defines the interface for generating text embeddings.
type Provider interface {
	// Embed generates embeddings for multiple texts, index-aligned.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedOne generates an embedding for a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// Dimension reports the fixed vector dimension the provider emits.
	Dimension() int
}
