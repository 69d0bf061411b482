package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MemoryStore defines CRUD and candidate-fetch operations over memories.
type MemoryStore interface {
	// Create validates and persists a new memory.
	Create(ctx context.Context, m *Memory) error

	// Get retrieves a memory by ID. Returns ErrNotFound for a missing ID
	// or one owned by another owner. Does not bump access tracking; the
	// retrieval paths call Touch explicitly.
	Get(ctx context.Context, ownerID, id string) (*Memory, error)

	// Update applies partial updates. Callers must supply a fresh
	// embedding whenever Content changes.
	Update(ctx context.Context, ownerID, id string, upd MemoryUpdate) (*Memory, error)

	// Delete removes a memory; associations cascade.
	Delete(ctx context.Context, ownerID, id string) error

	// Touch bumps accessed_at and increments access_count for every given
	// memory. Called by each retrieval path that surfaces a memory.
	Touch(ctx context.Context, ids []string) error

	// List returns paginated memories for an owner.
	List(ctx context.Context, ownerID string, opts ListOptions) ([]*Memory, error)

	// Count returns the number of memories owned by ownerID.
	Count(ctx context.Context, ownerID string) (int64, error)

	// All returns every memory of the owner passing the metadata filters,
	// embeddings included, as the candidate set for a full-corpus scan.
	All(ctx context.Context, ownerID string, filters map[string]string) ([]*Memory, error)

	// ByIDs returns the owner's memories among ids that pass the metadata
	// filters. Unknown IDs are skipped, not errors.
	ByIDs(ctx context.Context, ownerID string, ids []string, filters map[string]string) ([]*Memory, error)

	// PruneExpiredTask deletes TASK-tier memories created before cutoff.
	// PERSONAL and PROJECT memories are never eligible, for any cutoff.
	// Idempotent; with dryRun it only counts.
	PruneExpiredTask(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error)
}

// SQLiteMemoryStore implements MemoryStore using SQLite. The database
// connection is shared with SQLiteGraphStore and owned by it.
type SQLiteMemoryStore struct {
	db  *sql.DB
	dim int
}

// NewSQLiteMemoryStore creates a memory store over a shared connection.
// dim is the embedding dimension enforced on every write.
func NewSQLiteMemoryStore(db *sql.DB, dim int) *SQLiteMemoryStore {
	return &SQLiteMemoryStore{db: db, dim: dim}
}

const memoryColumns = "id, owner_id, tier, content, embedding, metadata, access_count, created_at, accessed_at"

func scanMemory(scanner interface{ Scan(...interface{}) error }) (*Memory, error) {
	var m Memory
	var embeddingBlob, metadataJSON []byte

	err := scanner.Scan(
		&m.ID,
		&m.OwnerID,
		&m.Tier,
		&m.Content,
		&embeddingBlob,
		&metadataJSON,
		&m.AccessCount,
		&m.CreatedAt,
		&m.AccessedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Embedding = deserializeEmbedding(embeddingBlob)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &m, nil
}

// Create validates and persists a new memory.
func (s *SQLiteMemoryStore) Create(ctx context.Context, m *Memory) error {
	if m.OwnerID == "" {
		return newValidationError("owner_id", "owner_id is required")
	}
	if !m.Tier.Valid() {
		return newValidationError("tier", "unknown tier %q", m.Tier)
	}
	if strings.TrimSpace(m.Content) == "" {
		return newValidationError("content", "content cannot be empty")
	}
	if err := validateEmbedding("embedding", m.Embedding, s.dim); err != nil {
		return err
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.AccessedAt.IsZero() {
		m.AccessedAt = m.CreatedAt
	}

	metadataJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO memories (` + memoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		m.ID,
		m.OwnerID,
		m.Tier,
		m.Content,
		serializeEmbedding(m.Embedding),
		metadataJSON,
		m.AccessCount,
		m.CreatedAt,
		m.AccessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

// Get retrieves a memory by ID within the owner scope.
func (s *SQLiteMemoryStore) Get(ctx context.Context, ownerID, id string) (*Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE id = ? AND owner_id = ?`

	m, err := scanMemory(s.db.QueryRowContext(ctx, query, id, ownerID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return m, nil
}

// Update applies partial updates to a memory.
func (s *SQLiteMemoryStore) Update(ctx context.Context, ownerID, id string, upd MemoryUpdate) (*Memory, error) {
	if upd.Content != nil {
		if strings.TrimSpace(*upd.Content) == "" {
			return nil, newValidationError("content", "content cannot be empty")
		}
		if err := validateEmbedding("embedding", upd.Embedding, s.dim); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + memoryColumns + ` FROM memories WHERE id = ? AND owner_id = ?`
	existing, err := scanMemory(tx.QueryRowContext(ctx, query, id, ownerID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}

	if upd.Content != nil {
		existing.Content = *upd.Content
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
		UPDATE memories SET content = ?, embedding = ?, metadata = ?
		WHERE id = ? AND owner_id = ?
	`, existing.Content, serializeEmbedding(existing.Embedding), metadataJSON, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return existing, nil
}

// Delete removes a memory. Association rows cascade via foreign keys.
func (s *SQLiteMemoryStore) Delete(ctx context.Context, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return nil
}

// Touch bumps accessed_at and access_count for every given memory in one
// statement. Unknown IDs are ignored.
func (s *SQLiteMemoryStore) Touch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(ids))
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE memories
		SET accessed_at = ?, access_count = access_count + 1
		WHERE id IN (%s)
	`, strings.Join(placeholders, ","))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to touch memories: %w", err)
	}
	return nil
}

// List returns paginated memories for an owner.
func (s *SQLiteMemoryStore) List(ctx context.Context, ownerID string, opts ListOptions) ([]*Memory, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 200 {
		opts.Limit = 200
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	query := `SELECT ` + memoryColumns + ` FROM memories WHERE owner_id = ?`
	args := []interface{}{ownerID}

	if opts.Tier != nil {
		if !opts.Tier.Valid() {
			return nil, newValidationError("tier", "unknown tier %q", *opts.Tier)
		}
		query += " AND tier = ?"
		args = append(args, *opts.Tier)
	}

	dir := "ASC"
	if opts.OrderDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY created_at %s, id LIMIT ? OFFSET ?", dir)
	args = append(args, opts.Limit, opts.Offset)

	memories, err := s.queryMemories(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return filterMemories(memories, opts.Filters), nil
}

// Count returns the number of memories owned by ownerID.
func (s *SQLiteMemoryStore) Count(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE owner_id = ?", ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return count, nil
}

// All returns every memory of the owner passing the metadata filters.
func (s *SQLiteMemoryStore) All(ctx context.Context, ownerID string, filters map[string]string) ([]*Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE owner_id = ? ORDER BY created_at, id`
	memories, err := s.queryMemories(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	return filterMemories(memories, filters), nil
}

// ByIDs returns the owner's memories among ids passing the metadata filters.
func (s *SQLiteMemoryStore) ByIDs(ctx context.Context, ownerID string, ids []string, filters map[string]string) ([]*Memory, error) {
	if len(ids) == 0 {
		return []*Memory{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, ownerID)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT `+memoryColumns+` FROM memories
		WHERE owner_id = ? AND id IN (%s)
		ORDER BY created_at, id
	`, strings.Join(placeholders, ","))

	memories, err := s.queryMemories(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return filterMemories(memories, filters), nil
}

// PruneExpiredTask deletes TASK memories created before cutoff.
//
// Eligibility is decided by created_at, not accessed_at: TASK is working
// context with a fixed lifetime, and accessed_at is bumped by every
// retrieval, which would let a stale-but-surfaced memory live forever.
// The predicate is evaluated inside the deleting transaction, so a memory
// created after the cutoff snapshot can never be swept.
func (s *SQLiteMemoryStore) PruneExpiredTask(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	if dryRun {
		var count int64
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM memories WHERE tier = ? AND created_at < ?",
			TierTask, cutoff,
		).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("failed to count expired memories: %w", err)
		}
		return count, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"DELETE FROM memories WHERE tier = ? AND created_at < ?",
		TierTask, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune memories: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deleted, nil
}

func (s *SQLiteMemoryStore) queryMemories(ctx context.Context, query string, args ...interface{}) ([]*Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var memories []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memories: %w", err)
	}
	return memories, nil
}

func filterMemories(memories []*Memory, filters map[string]string) []*Memory {
	if len(filters) == 0 {
		return memories
	}
	filtered := memories[:0]
	for _, m := range memories {
		if m.MatchesFilters(filters) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
