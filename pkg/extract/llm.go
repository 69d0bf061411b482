package extract

import (
	"context"
	"fmt"

	"github.com/dan-solli/recall/pkg/llm"
)

const extractionPrompt = `Extract entities and relationships from the text below.

Entity types: topic, project, person, category, event.
Relationship types: subtopic_of, related_to, part_of, depends_on, precedes.

Respond with JSON only, no prose:
{
  "entities": [{"type": "...", "name": "...", "importance": 0.0, "confidence": 0.0}],
  "relationships": [{"source_name": "...", "target_name": "...", "type": "...", "confidence": 0.0}]
}

importance is how central the entity is to the text (0-1). confidence is
how certain you are the entity/relationship is real (0-1). Use short
canonical names. Return empty lists if nothing is extractable.

Text:
%s`

// LLMExtractor implements Extractor over a chat-completion client.
type LLMExtractor struct {
	client llm.Client
}

// NewLLMExtractor creates an extractor backed by the given client.
func NewLLMExtractor(client llm.Client) *LLMExtractor {
	return &LLMExtractor{client: client}
}

// Extract runs the extraction prompt. Backend failure, including
// unparseable model output, surfaces as UnavailableError.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (*Result, error) {
	var result Result
	err := e.client.CompleteJSON(ctx, fmt.Sprintf(extractionPrompt, text), &result)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	return &result, nil
}
