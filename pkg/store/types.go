// Package store provides SQLite-backed storage for recall's memories and
// knowledge graph.
package store

import "time"

// Tier classifies a memory's scope and retention policy.
type Tier string

const (
	// TierPersonal holds identity and preference memories. Never pruned.
	TierPersonal Tier = "PERSONAL"

	// TierProject holds goals and plans. Never pruned.
	TierProject Tier = "PROJECT"

	// TierTask holds short-lived working context. Pruned after the
	// retention window.
	TierTask Tier = "TASK"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierPersonal, TierProject, TierTask:
		return true
	}
	return false
}

// Prunable reports whether memories of this tier are eligible for the
// retention sweep.
func (t Tier) Prunable() bool {
	return t == TierTask
}

// NodeType classifies a knowledge graph node. The set is closed; adding a
// value is a schema migration (the CHECK constraint must be extended).
type NodeType string

const (
	NodeTopic    NodeType = "topic"
	NodeProject  NodeType = "project"
	NodePerson   NodeType = "person"
	NodeCategory NodeType = "category"
	NodeEvent    NodeType = "event"
)

// Valid reports whether nt is a known node type.
func (nt NodeType) Valid() bool {
	switch nt {
	case NodeTopic, NodeProject, NodePerson, NodeCategory, NodeEvent:
		return true
	}
	return false
}

// EdgeType classifies a relationship between two nodes. Closed set, same
// migration rule as NodeType.
type EdgeType string

const (
	EdgeSubtopicOf EdgeType = "subtopic_of"
	EdgeRelatedTo  EdgeType = "related_to"
	EdgePartOf     EdgeType = "part_of"
	EdgeDependsOn  EdgeType = "depends_on"
	EdgePrecedes   EdgeType = "precedes"
)

// Valid reports whether et is a known edge type.
func (et EdgeType) Valid() bool {
	switch et {
	case EdgeSubtopicOf, EdgeRelatedTo, EdgePartOf, EdgeDependsOn, EdgePrecedes:
		return true
	}
	return false
}

// Memory is an atomic unit of recalled information, exclusively owned by
// one owner.
type Memory struct {
	ID          string                 `json:"id"`
	OwnerID     string                 `json:"owner_id"`
	Tier        Tier                   `json:"tier"`
	Content     string                 `json:"content"`
	Embedding   []float32              `json:"-"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	AccessCount int                    `json:"access_count"`
	CreatedAt   time.Time              `json:"created_at"`
	AccessedAt  time.Time              `json:"accessed_at"`
}

// MemoryUpdate represents partial updates to a memory. Pointer fields
// distinguish "not provided" from "set to zero value".
type MemoryUpdate struct {
	Content   *string                 `json:"content,omitempty"`
	Embedding []float32               `json:"-"` // required when Content is set
	Metadata  *map[string]interface{} `json:"metadata,omitempty"`
}

// Node is a knowledge graph entity (concept, project, person, category,
// or event) referenced by an owner's memories.
type Node struct {
	ID          string                 `json:"id"`
	OwnerID     string                 `json:"owner_id"`
	Type        NodeType               `json:"node_type"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Embedding   []float32              `json:"-"`
	Importance  float64                `json:"importance_score"`
	AccessCount int                    `json:"access_count"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NodeUpdate represents partial updates to a node.
type NodeUpdate struct {
	Description *string                 `json:"description,omitempty"`
	Importance  *float64                `json:"importance_score,omitempty"`
	Embedding   []float32               `json:"-"`
	Metadata    *map[string]interface{} `json:"metadata,omitempty"`
}

// Edge is a directed, typed, weighted relationship between two nodes of
// the same owner.
type Edge struct {
	ID        string                 `json:"id"`
	OwnerID   string                 `json:"owner_id"`
	SourceID  string                 `json:"source_node_id"`
	TargetID  string                 `json:"target_node_id"`
	Type      EdgeType               `json:"edge_type"`
	Weight    float64                `json:"weight"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Association links a memory to a node with a relevance weight.
type Association struct {
	MemoryID  string    `json:"memory_id"`
	NodeID    string    `json:"node_id"`
	Relevance float64   `json:"relevance"`
	CreatedAt time.Time `json:"created_at"`
}

// NodeMatch is a node matched against a query, with its blended match
// strength (keyword/vector match blended with the importance prior).
type NodeMatch struct {
	Node     *Node
	Strength float64
}

// Adjacency is one traversable edge out of (or into) a node, paired with
// the neighbor on the far side.
type Adjacency struct {
	Edge       *Edge
	NeighborID string
}

// NodeCandidate is an entity proposed by the extractor, ready to be
// materialized as a node.
type NodeCandidate struct {
	Type       NodeType
	Name       string
	Importance float64
	Relevance  float64 // extractor confidence, becomes association relevance
	Embedding  []float32
}

// EdgeCandidate is a relationship proposed by the extractor, identified by
// entity names rather than node IDs.
type EdgeCandidate struct {
	SourceName string
	TargetName string
	Type       EdgeType
	Weight     float64 // extractor confidence
}

// ListOptions provides pagination and filtering for memory listing.
type ListOptions struct {
	Tier      *Tier
	Filters   map[string]string // exact-match metadata predicates
	Offset    int
	Limit     int // default 50, max 200
	OrderDesc bool
}

// MatchesFilters reports whether the memory's metadata satisfies every
// exact-match predicate. An empty filter set matches everything.
func (m *Memory) MatchesFilters(filters map[string]string) bool {
	for k, want := range filters {
		v, ok := m.Metadata[k]
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok || s != want {
			return false
		}
	}
	return true
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
