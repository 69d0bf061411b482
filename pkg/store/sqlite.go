package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteGraphStore implements GraphStore using SQLite as the backend. It
// owns the database connection, which it shares with SQLiteMemoryStore.
type SQLiteGraphStore struct {
	db  *sql.DB
	dim int
}

// NewSQLiteGraphStore opens (or creates) the database at dbPath and
// initializes the schema. dbPath can be a file path or ":memory:".
// dim is the embedding dimension enforced on node embeddings.
func NewSQLiteGraphStore(dbPath string, dim int) (*SQLiteGraphStore, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one so
	// every statement sees the same schema and data.
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteGraphStore{db: db, dim: dim}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// DB returns the underlying connection for sharing with the memory store.
func (s *SQLiteGraphStore) DB() *sql.DB {
	return s.db
}

// initSchema creates tables and indexes if they don't exist.
//
// tier, node_type, and edge_type are closed enumerations enforced by CHECK
// constraints; adding a value is a schema migration, not a free-form write.
func (s *SQLiteGraphStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		tier TEXT NOT NULL CHECK (tier IN ('PERSONAL','PROJECT','TASK')),
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT,
		access_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		accessed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner_id);
	CREATE INDEX IF NOT EXISTS idx_memories_owner_tier_created ON memories(owner_id, tier, created_at);

	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		node_type TEXT NOT NULL CHECK (node_type IN ('topic','project','person','category','event')),
		name TEXT NOT NULL COLLATE NOCASE,
		description TEXT NOT NULL DEFAULT '',
		embedding BLOB,
		importance REAL NOT NULL DEFAULT 0.5,
		access_count INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE (owner_id, node_type, name)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_owner_name ON nodes(owner_id, name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		source_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		target_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		edge_type TEXT NOT NULL CHECK (edge_type IN ('subtopic_of','related_to','part_of','depends_on','precedes')),
		weight REAL NOT NULL DEFAULT 0.5,
		metadata TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE (source_id, target_id, edge_type),
		CHECK (source_id <> target_id)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

	CREATE TABLE IF NOT EXISTS memory_nodes (
		memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		relevance REAL NOT NULL DEFAULT 1.0,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (memory_id, node_id)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_nodes_node ON memory_nodes(node_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

const nodeColumns = "id, owner_id, node_type, name, description, embedding, importance, access_count, metadata, created_at"

func scanNode(scanner interface{ Scan(...interface{}) error }) (*Node, error) {
	var n Node
	var embeddingBlob, metadataJSON []byte

	err := scanner.Scan(
		&n.ID,
		&n.OwnerID,
		&n.Type,
		&n.Name,
		&n.Description,
		&embeddingBlob,
		&n.Importance,
		&n.AccessCount,
		&metadataJSON,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Embedding = deserializeEmbedding(embeddingBlob)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &n.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &n, nil
}

func validateNode(node *Node, dim int) error {
	if node.OwnerID == "" {
		return newValidationError("owner_id", "owner_id is required")
	}
	if !node.Type.Valid() {
		return newValidationError("node_type", "unknown node type %q", node.Type)
	}
	if strings.TrimSpace(node.Name) == "" {
		return newValidationError("name", "name cannot be empty")
	}
	if node.Importance < 0 || node.Importance > 1 {
		return newValidationError("importance", "importance %v out of range [0,1]", node.Importance)
	}
	if len(node.Embedding) > 0 {
		if err := validateEmbedding("embedding", node.Embedding, dim); err != nil {
			return err
		}
	}
	return nil
}

// CreateNode inserts a node, idempotent by (owner_id, node_type, name).
// Concurrent racers for the same triple resolve through the unique
// constraint, never a read-then-write.
func (s *SQLiteGraphStore) CreateNode(ctx context.Context, node *Node) (*Node, error) {
	if err := validateNode(node, s.dim); err != nil {
		return nil, err
	}
	return upsertNode(ctx, s.db, node)
}

// execer abstracts *sql.DB and *sql.Tx so the idempotent primitives can
// run standalone or inside Materialize's transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func upsertNode(ctx context.Context, db execer, node *Node) (*Node, error) {
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now().UTC()
	}
	if node.Importance == 0 {
		node.Importance = 0.5
	}

	metadataJSON, err := json.Marshal(node.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// On conflict the existing node wins; only vacant attributes are
	// merged from the new candidate.
	query := `
		INSERT INTO nodes (` + nodeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(owner_id, node_type, name) DO UPDATE SET
			description = CASE WHEN nodes.description = '' THEN excluded.description ELSE nodes.description END,
			embedding = COALESCE(nodes.embedding, excluded.embedding)
	`
	_, err = db.ExecContext(ctx, query,
		node.ID,
		node.OwnerID,
		node.Type,
		node.Name,
		node.Description,
		serializeEmbedding(node.Embedding),
		node.Importance,
		metadataJSON,
		node.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert node: %w", err)
	}

	canonical, err := scanNode(db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE owner_id = ? AND node_type = ? AND name = ?`,
		node.OwnerID, node.Type, node.Name,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to read back node: %w", err)
	}
	return canonical, nil
}

// GetNode retrieves a node by ID within the owner scope.
func (s *SQLiteGraphStore) GetNode(ctx context.Context, ownerID, id string) (*Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = ? AND owner_id = ?`, id, ownerID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return n, nil
}

// UpdateNode applies partial updates to a node.
func (s *SQLiteGraphStore) UpdateNode(ctx context.Context, ownerID, id string, upd NodeUpdate) (*Node, error) {
	if upd.Importance != nil && (*upd.Importance < 0 || *upd.Importance > 1) {
		return nil, newValidationError("importance", "importance %v out of range [0,1]", *upd.Importance)
	}
	if len(upd.Embedding) > 0 {
		if err := validateEmbedding("embedding", upd.Embedding, s.dim); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanNode(tx.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = ? AND owner_id = ?`, id, ownerID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	if upd.Description != nil {
		existing.Description = *upd.Description
	}
	if upd.Importance != nil {
		existing.Importance = *upd.Importance
	}
	if len(upd.Embedding) > 0 {
		existing.Embedding = upd.Embedding
	}
	if upd.Metadata != nil {
		existing.Metadata = *upd.Metadata
	}

	metadataJSON, err := json.Marshal(existing.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE nodes SET description = ?, importance = ?, embedding = ?, metadata = ?
		WHERE id = ? AND owner_id = ?
	`, existing.Description, existing.Importance, serializeEmbedding(existing.Embedding), metadataJSON, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to update node: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return existing, nil
}

// DeleteNode removes a node. Edges and associations cascade through
// foreign keys inside the same transaction, all-or-nothing.
func (s *SQLiteGraphStore) DeleteNode(ctx context.Context, ownerID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("node %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TouchNodes increments access_count for the given nodes.
func (s *SQLiteGraphStore) TouchNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("UPDATE nodes SET access_count = access_count + 1 WHERE id IN (%s)",
		strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to touch nodes: %w", err)
	}
	return nil
}

const edgeColumns = "id, owner_id, source_id, target_id, edge_type, weight, metadata, created_at"

func scanEdge(scanner interface{ Scan(...interface{}) error }) (*Edge, error) {
	var e Edge
	var metadataJSON []byte

	err := scanner.Scan(
		&e.ID,
		&e.OwnerID,
		&e.SourceID,
		&e.TargetID,
		&e.Type,
		&e.Weight,
		&metadataJSON,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &e, nil
}

func validateEdge(edge *Edge) error {
	if edge.OwnerID == "" {
		return newValidationError("owner_id", "owner_id is required")
	}
	if !edge.Type.Valid() {
		return newValidationError("edge_type", "unknown edge type %q", edge.Type)
	}
	if edge.SourceID == "" || edge.TargetID == "" {
		return newValidationError("edge", "source and target node IDs are required")
	}
	if edge.SourceID == edge.TargetID {
		return newValidationError("edge", "self-loop edges are not allowed")
	}
	if edge.Weight < 0 || edge.Weight > 1 {
		return newValidationError("weight", "weight %v out of range [0,1]", edge.Weight)
	}
	return nil
}

// CreateEdge inserts an edge, idempotent by (source, target, type).
// Re-creation updates weight and metadata on the existing edge.
func (s *SQLiteGraphStore) CreateEdge(ctx context.Context, edge *Edge) (*Edge, error) {
	if err := validateEdge(edge); err != nil {
		return nil, err
	}

	// Both endpoints must exist within the owner scope.
	for _, nodeID := range []string{edge.SourceID, edge.TargetID} {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM nodes WHERE id = ? AND owner_id = ?", nodeID, edge.OwnerID).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check node existence: %w", err)
		}
	}

	return upsertEdge(ctx, s.db, edge)
}

func upsertEdge(ctx context.Context, db execer, edge *Edge) (*Edge, error) {
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}
	if edge.Weight == 0 {
		edge.Weight = 0.5
	}

	metadataJSON, err := json.Marshal(edge.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO edges (` + edgeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, edge_type) DO UPDATE SET
			weight = excluded.weight,
			metadata = excluded.metadata
	`
	_, err = db.ExecContext(ctx, query,
		edge.ID,
		edge.OwnerID,
		edge.SourceID,
		edge.TargetID,
		edge.Type,
		edge.Weight,
		metadataJSON,
		edge.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert edge: %w", err)
	}

	canonical, err := scanEdge(db.QueryRowContext(ctx,
		`SELECT `+edgeColumns+` FROM edges WHERE source_id = ? AND target_id = ? AND edge_type = ?`,
		edge.SourceID, edge.TargetID, edge.Type,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to read back edge: %w", err)
	}
	return canonical, nil
}

// DeleteEdge removes a single edge.
func (s *SQLiteGraphStore) DeleteEdge(ctx context.Context, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM edges WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("edge %s: %w", id, ErrNotFound)
	}
	return nil
}

// Associate links a memory to a node, idempotent by (memory, node).
func (s *SQLiteGraphStore) Associate(ctx context.Context, assoc *Association) error {
	if assoc.Relevance < 0 || assoc.Relevance > 1 {
		return newValidationError("relevance", "relevance %v out of range [0,1]", assoc.Relevance)
	}
	return upsertAssociation(ctx, s.db, assoc)
}

func upsertAssociation(ctx context.Context, db execer, assoc *Association) error {
	if assoc.CreatedAt.IsZero() {
		assoc.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO memory_nodes (memory_id, node_id, relevance, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(memory_id, node_id) DO UPDATE SET relevance = excluded.relevance
	`
	_, err := db.ExecContext(ctx, query, assoc.MemoryID, assoc.NodeID, assoc.Relevance, assoc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert association: %w", err)
	}
	return nil
}

// Associations returns all associations of a memory.
func (s *SQLiteGraphStore) Associations(ctx context.Context, memoryID string) ([]*Association, error) {
	return s.queryAssociations(ctx,
		"SELECT memory_id, node_id, relevance, created_at FROM memory_nodes WHERE memory_id = ?", memoryID)
}

// AssociationsForNodes returns all associations touching any of the nodes.
func (s *SQLiteGraphStore) AssociationsForNodes(ctx context.Context, nodeIDs []string) ([]*Association, error) {
	if len(nodeIDs) == 0 {
		return []*Association{}, nil
	}

	placeholders := make([]string, len(nodeIDs))
	args := make([]interface{}, len(nodeIDs))
	for i, id := range nodeIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		"SELECT memory_id, node_id, relevance, created_at FROM memory_nodes WHERE node_id IN (%s)",
		strings.Join(placeholders, ","))
	return s.queryAssociations(ctx, query, args...)
}

func (s *SQLiteGraphStore) queryAssociations(ctx context.Context, query string, args ...interface{}) ([]*Association, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query associations: %w", err)
	}
	defer rows.Close()

	var assocs []*Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.MemoryID, &a.NodeID, &a.Relevance, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan association: %w", err)
		}
		assocs = append(assocs, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating associations: %w", err)
	}
	return assocs, nil
}

// Neighbors returns the adjacency of a node, optionally restricted to a
// set of edge types.
func (s *SQLiteGraphStore) Neighbors(ctx context.Context, nodeID string, edgeTypes []EdgeType) ([]*Adjacency, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges WHERE (source_id = ? OR target_id = ?)`
	args := []interface{}{nodeID, nodeID}

	if len(edgeTypes) > 0 {
		placeholders := make([]string, len(edgeTypes))
		for i, et := range edgeTypes {
			placeholders[i] = "?"
			args = append(args, et)
		}
		query += fmt.Sprintf(" AND edge_type IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var adjacent []*Adjacency
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		neighbor := edge.TargetID
		if neighbor == nodeID {
			neighbor = edge.SourceID
		}
		adjacent = append(adjacent, &Adjacency{Edge: edge, NeighborID: neighbor})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return adjacent, nil
}

// MatchNodes finds up to topK nodes matching the query by name keyword
// and/or embedding similarity, blended with the importance prior.
func (s *SQLiteGraphStore) MatchNodes(ctx context.Context, ownerID, query string, queryEmbedding []float32, topK int) ([]*NodeMatch, error) {
	if topK <= 0 {
		topK = 5
	}
	if len(queryEmbedding) > 0 {
		if err := validateEmbedding("query_embedding", queryEmbedding, s.dim); err != nil {
			return nil, err
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	queryLower := strings.ToLower(strings.TrimSpace(query))

	var matches []*NodeMatch
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		var keyword float64
		if queryLower != "" {
			nameLower := strings.ToLower(node.Name)
			switch {
			case nameLower == queryLower:
				keyword = 1.0
			case strings.Contains(nameLower, queryLower) || strings.Contains(queryLower, nameLower):
				keyword = 0.6
			}
		}

		var semantic float64
		if len(queryEmbedding) > 0 && len(node.Embedding) > 0 {
			semantic = CosineSimilarity(queryEmbedding, node.Embedding)
		}

		match := keyword
		if semantic > match {
			match = semantic
		}
		if match <= 0 {
			continue
		}

		matches = append(matches, &NodeMatch{
			Node:     node,
			Strength: 0.7*match + 0.3*node.Importance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Strength != matches[j].Strength {
			return matches[i].Strength > matches[j].Strength
		}
		return matches[i].Node.ID < matches[j].Node.ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Materialize upserts extracted candidates and associates the memory with
// every resulting node, all inside one transaction so a crash cannot leave
// edges pointing at nodes that were never committed.
func (s *SQLiteGraphStore) Materialize(ctx context.Context, ownerID, memoryID string, nodes []NodeCandidate, edges []EdgeCandidate) ([]*Node, []*Edge, error) {
	for _, nc := range nodes {
		n := &Node{
			OwnerID:    ownerID,
			Type:       nc.Type,
			Name:       nc.Name,
			Importance: clamp01(nc.Importance),
		}
		if err := validateNode(n, s.dim); err != nil {
			return nil, nil, err
		}
	}
	for _, ec := range edges {
		if !ec.Type.Valid() {
			return nil, nil, newValidationError("edge_type", "unknown edge type %q", ec.Type)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	byName := make(map[string]*Node)
	created := make([]*Node, 0, len(nodes))
	for _, nc := range nodes {
		node, err := upsertNode(ctx, tx, &Node{
			OwnerID:    ownerID,
			Type:       nc.Type,
			Name:       nc.Name,
			Importance: clamp01(nc.Importance),
			Embedding:  nc.Embedding,
		})
		if err != nil {
			return nil, nil, err
		}
		created = append(created, node)
		key := strings.ToLower(strings.TrimSpace(nc.Name))
		if _, dup := byName[key]; !dup {
			byName[key] = node
		}
	}

	var createdEdges []*Edge
	for _, ec := range edges {
		source, okS := byName[strings.ToLower(strings.TrimSpace(ec.SourceName))]
		target, okT := byName[strings.ToLower(strings.TrimSpace(ec.TargetName))]
		if !okS || !okT || source.ID == target.ID {
			// Edges naming unextracted entities (or resolving to a
			// self-loop) are dropped, not fatal: extractor output is
			// best-effort.
			continue
		}
		edge, err := upsertEdge(ctx, tx, &Edge{
			OwnerID:  ownerID,
			SourceID: source.ID,
			TargetID: target.ID,
			Type:     ec.Type,
			Weight:   clamp01(ec.Weight),
		})
		if err != nil {
			return nil, nil, err
		}
		createdEdges = append(createdEdges, edge)
	}

	for i, node := range created {
		err := upsertAssociation(ctx, tx, &Association{
			MemoryID:  memoryID,
			NodeID:    node.ID,
			Relevance: clamp01(nodes[i].Relevance),
		})
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, createdEdges, nil
}

// NodeCount returns the number of nodes owned by ownerID.
func (s *SQLiteGraphStore) NodeCount(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes WHERE owner_id = ?", ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return count, nil
}

// EdgeCount returns the number of edges owned by ownerID.
func (s *SQLiteGraphStore) EdgeCount(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges WHERE owner_id = ?", ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return count, nil
}

// Close releases database resources.
func (s *SQLiteGraphStore) Close() error {
	return s.db.Close()
}
