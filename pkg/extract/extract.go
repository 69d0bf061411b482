// Package extract turns free text into candidate graph entities and
// relationships via a language model. Extractor output is best-effort and
// non-deterministic; Normalize validates and clamps it at this boundary so
// nothing downstream has to trust the model.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dan-solli/recall/pkg/store"
)

// Entity is one extracted candidate node.
type Entity struct {
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
	Confidence float64 `json:"confidence"`
}

// Relationship is one extracted candidate edge, referencing entities by
// name.
type Relationship struct {
	SourceName string  `json:"source_name"`
	TargetName string  `json:"target_name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Result is the extractor's raw output for one text.
type Result struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// Extractor defines the text-to-structure boundary.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Result, error)
}

// UnavailableError indicates the extraction backend failed. Auto-organize
// callers should retry with backoff rather than persist an unorganized
// memory silently.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("entity extraction unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is an extraction availability failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// Normalize converts a raw extraction result into store candidates. Model
// output is clamped, not trusted: confidences outside [0,1] are clamped,
// unknown node types fall back to topic, unknown edge types to related_to,
// and nameless entities are dropped.
func Normalize(r *Result) ([]store.NodeCandidate, []store.EdgeCandidate) {
	nodes := make([]store.NodeCandidate, 0, len(r.Entities))
	for _, e := range r.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		nodeType := store.NodeType(strings.ToLower(strings.TrimSpace(e.Type)))
		if !nodeType.Valid() {
			nodeType = store.NodeTopic
		}
		nodes = append(nodes, store.NodeCandidate{
			Type:       nodeType,
			Name:       name,
			Importance: clamp01(e.Importance),
			Relevance:  clamp01(e.Confidence),
		})
	}

	edges := make([]store.EdgeCandidate, 0, len(r.Relationships))
	for _, rel := range r.Relationships {
		source := strings.TrimSpace(rel.SourceName)
		target := strings.TrimSpace(rel.TargetName)
		if source == "" || target == "" || strings.EqualFold(source, target) {
			continue
		}
		edgeType := store.EdgeType(strings.ToLower(strings.TrimSpace(rel.Type)))
		if !edgeType.Valid() {
			edgeType = store.EdgeRelatedTo
		}
		edges = append(edges, store.EdgeCandidate{
			SourceName: source,
			TargetName: target,
			Type:       edgeType,
			Weight:     clamp01(rel.Confidence),
		})
	}
	return nodes, edges
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
