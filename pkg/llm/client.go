// Package llm provides the chat-completion boundary used by entity
// extraction. Like embeddings, it is a black-box external capability.
package llm

import "context"

// Client defines the interface for interacting with a language model.
type Client interface {
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteJSON sends a prompt and unmarshals the completion into out,
	// tolerating markdown code fences around the JSON body. out must be a
	// pointer.
	CompleteJSON(ctx context.Context, prompt string, out any) error
}
