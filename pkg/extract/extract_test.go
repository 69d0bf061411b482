package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/dan-solli/recall/pkg/store"
)

func TestNormalize_ClampsAndFallsBack(t *testing.T) {
	r := &Result{
		Entities: []Entity{
			{Type: "topic", Name: "python", Importance: 1.7, Confidence: -0.2},
			{Type: "spaceship", Name: "enterprise", Importance: 0.5, Confidence: 0.5},
			{Type: "person", Name: "   ", Importance: 0.5, Confidence: 0.5},
		},
		Relationships: []Relationship{
			{SourceName: "python", TargetName: "enterprise", Type: "pilots", Confidence: 2.0},
			{SourceName: "python", TargetName: "Python", Type: "related_to", Confidence: 0.5},
			{SourceName: "", TargetName: "enterprise", Type: "related_to", Confidence: 0.5},
		},
	}

	nodes, edges := Normalize(r)

	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes (nameless dropped), got %d", len(nodes))
	}
	if nodes[0].Importance != 1 {
		t.Errorf("importance must clamp to 1, got %f", nodes[0].Importance)
	}
	if nodes[0].Relevance != 0 {
		t.Errorf("confidence must clamp to 0, got %f", nodes[0].Relevance)
	}
	// Unknown entity type falls back rather than failing the whole batch.
	if nodes[1].Type != store.NodeTopic {
		t.Errorf("unknown node type must fall back to topic, got %s", nodes[1].Type)
	}

	if len(edges) != 1 {
		t.Fatalf("expected 1 edge (self-loop and nameless dropped), got %d", len(edges))
	}
	if edges[0].Type != store.EdgeRelatedTo {
		t.Errorf("unknown edge type must fall back to related_to, got %s", edges[0].Type)
	}
	if edges[0].Weight != 1 {
		t.Errorf("confidence must clamp to 1, got %f", edges[0].Weight)
	}
}

func TestNormalize_TypeCaseInsensitive(t *testing.T) {
	r := &Result{Entities: []Entity{{Type: "Person", Name: "Dana", Importance: 0.6, Confidence: 0.8}}}
	nodes, _ := Normalize(r)
	if len(nodes) != 1 || nodes[0].Type != store.NodePerson {
		t.Errorf("expected person node, got %+v", nodes)
	}
}

type failingClient struct{}

func (failingClient) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("boom")
}

func (failingClient) CompleteJSON(ctx context.Context, prompt string, out any) error {
	return errors.New("boom")
}

func TestLLMExtractor_FailureIsUnavailable(t *testing.T) {
	e := NewLLMExtractor(failingClient{})
	_, err := e.Extract(context.Background(), "some text")
	if !IsUnavailable(err) {
		t.Errorf("expected UnavailableError, got %v", err)
	}
}
