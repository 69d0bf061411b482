package store

import "context"

// GraphStore defines storage operations for the knowledge graph: nodes,
// typed directed edges, and memory-node associations. All read operations
// are owner-scoped; implementations must enforce scoping in the query, not
// by convention.
type GraphStore interface {
	// CreateNode inserts a node, idempotent by (owner_id, node_type, name).
	// A second call with the same triple returns the existing node, merging
	// non-conflicting attributes (description, embedding) instead of
	// duplicating. Safe under concurrent racers (unique constraint upsert).
	CreateNode(ctx context.Context, node *Node) (*Node, error)

	// GetNode retrieves a node by ID. Returns ErrNotFound for a missing ID
	// or one owned by another owner.
	GetNode(ctx context.Context, ownerID, id string) (*Node, error)

	// UpdateNode applies partial updates to a node.
	UpdateNode(ctx context.Context, ownerID, id string, upd NodeUpdate) (*Node, error)

	// DeleteNode removes a node and cascades to its edges and associations
	// in one transaction. Partial failure leaves the graph unchanged.
	DeleteNode(ctx context.Context, ownerID, id string) error

	// TouchNodes increments access_count for the given nodes.
	TouchNodes(ctx context.Context, ids []string) error

	// CreateEdge inserts an edge, idempotent by (source, target, type):
	// re-creation updates weight and metadata. Self-loops are rejected
	// with a ValidationError.
	CreateEdge(ctx context.Context, edge *Edge) (*Edge, error)

	// DeleteEdge removes a single edge.
	DeleteEdge(ctx context.Context, ownerID, id string) error

	// Associate links a memory to a node, idempotent by (memory, node):
	// re-association updates relevance.
	Associate(ctx context.Context, assoc *Association) error

	// Associations returns all associations of a memory.
	Associations(ctx context.Context, memoryID string) ([]*Association, error)

	// AssociationsForNodes returns all associations touching any of the
	// given nodes, for funnelling candidate memories.
	AssociationsForNodes(ctx context.Context, nodeIDs []string) ([]*Association, error)

	// Neighbors returns the traversable adjacency of a node, optionally
	// restricted to a set of edge types. Adjacency is direction-agnostic
	// for discovery; the Edge carries the true direction.
	Neighbors(ctx context.Context, nodeID string, edgeTypes []EdgeType) ([]*Adjacency, error)

	// MatchNodes finds up to topK nodes matching the query by name keyword
	// and/or embedding similarity, ranked by a blend of match strength and
	// the node's importance prior.
	MatchNodes(ctx context.Context, ownerID, query string, queryEmbedding []float32, topK int) ([]*NodeMatch, error)

	// Materialize upserts extracted node and edge candidates and associates
	// the memory with every resulting node, all in one transaction.
	Materialize(ctx context.Context, ownerID, memoryID string, nodes []NodeCandidate, edges []EdgeCandidate) ([]*Node, []*Edge, error)

	// NodeCount returns the number of nodes owned by ownerID.
	NodeCount(ctx context.Context, ownerID string) (int64, error)

	// EdgeCount returns the number of edges owned by ownerID.
	EdgeCount(ctx context.Context, ownerID string) (int64, error)

	// Close releases database resources.
	Close() error
}
