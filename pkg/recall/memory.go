package recall

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dan-solli/recall/pkg/store"
)

// CreateMemoryRequest carries the caller-supplied fields of a new memory.
type CreateMemoryRequest struct {
	OwnerID  string                 `json:"owner_id"`
	Tier     store.Tier             `json:"tier"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// SkipOrganize skips graph auto-organization. The memory is still
	// embedded and findable via the full-corpus scan.
	SkipOrganize bool `json:"skip_organize,omitempty"`
}

// CreateMemory embeds, extracts, persists, and auto-organizes a new
// memory. External-capability failure fails the whole operation: a memory
// that cannot be embedded would be invisible to semantic search, so it is
// never persisted half-done.
func (e *Engine) CreateMemory(ctx context.Context, req CreateMemoryRequest) (*store.Memory, error) {
	start := e.now()

	embedding, err := e.embedder.EmbedOne(ctx, req.Content)
	if err != nil {
		e.metrics.RecordError(ctx, "create_memory", "embedding_unavailable")
		return nil, err
	}

	var extraction *organizePlan
	if !req.SkipOrganize {
		extraction, err = e.planOrganize(ctx, req.Content)
		if err != nil {
			e.metrics.RecordError(ctx, "create_memory", "extraction_unavailable")
			return nil, err
		}
	}

	m := &store.Memory{
		OwnerID:   req.OwnerID,
		Tier:      req.Tier,
		Content:   req.Content,
		Embedding: embedding,
		Metadata:  req.Metadata,
	}
	if err := e.memories.Create(ctx, m); err != nil {
		e.metrics.RecordError(ctx, "create_memory", "store")
		return nil, err
	}

	if extraction != nil {
		if _, _, err := e.materialize(ctx, req.OwnerID, m.ID, extraction); err != nil {
			e.metrics.RecordError(ctx, "create_memory", "organize")
			return nil, err
		}
	}

	e.metrics.RecordOperation(ctx, "create_memory", "success", e.now().Sub(start).Milliseconds())
	if count, err := e.memories.Count(ctx, req.OwnerID); err == nil {
		e.metrics.SetStorageCount(ctx, "memories", count)
	}
	e.log.Debug("memory created",
		zap.String("owner_id", req.OwnerID),
		zap.String("memory_id", m.ID),
		zap.String("tier", string(m.Tier)),
	)
	return m, nil
}

// GetMemory retrieves a memory without bumping access tracking.
func (e *Engine) GetMemory(ctx context.Context, ownerID, id string) (*store.Memory, error) {
	return e.memories.Get(ctx, ownerID, id)
}

// TouchMemory bumps access tracking explicitly, for callers that surface
// a memory outside the retrieval paths.
func (e *Engine) TouchMemory(ctx context.Context, ownerID, id string) error {
	if _, err := e.memories.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return e.memories.Touch(ctx, []string{id})
}

// UpdateMemory applies partial updates, regenerating the embedding when
// content changes.
func (e *Engine) UpdateMemory(ctx context.Context, ownerID, id string, upd store.MemoryUpdate) (*store.Memory, error) {
	if upd.Content != nil {
		embedding, err := e.embedder.EmbedOne(ctx, *upd.Content)
		if err != nil {
			e.metrics.RecordError(ctx, "update_memory", "embedding_unavailable")
			return nil, err
		}
		upd.Embedding = embedding
	}
	return e.memories.Update(ctx, ownerID, id, upd)
}

// DeleteMemory removes a memory; its associations cascade, its nodes
// survive.
func (e *Engine) DeleteMemory(ctx context.Context, ownerID, id string) error {
	return e.memories.Delete(ctx, ownerID, id)
}

// ListMemories returns paginated memories for an owner.
func (e *Engine) ListMemories(ctx context.Context, ownerID string, opts store.ListOptions) ([]*store.Memory, error) {
	return e.memories.List(ctx, ownerID, opts)
}

// CountMemories returns the owner's memory count.
func (e *Engine) CountMemories(ctx context.Context, ownerID string) (int64, error) {
	return e.memories.Count(ctx, ownerID)
}

// PruneOptions configures a retention sweep.
type PruneOptions struct {
	// RetentionDays overrides the configured window when positive.
	RetentionDays int

	// DryRun counts eligible memories without deleting.
	DryRun bool
}

// PruneResult reports a retention sweep.
type PruneResult struct {
	MemoriesPruned int64     `json:"memories_pruned"`
	Cutoff         time.Time `json:"cutoff"`
	DryRun         bool      `json:"dry_run"`
}

// PruneExpiredTaskMemories deletes TASK-tier memories older than the
// retention window. PERSONAL and PROJECT tiers are never touched; nodes
// survive even when their last associated memory expires. Idempotent, so
// re-running after a partial failure deletes nothing extra. Eligibility is
// judged on created_at: pruning exists to expire stale working context,
// and an accessed_at policy would immortalize any TASK memory the
// retrieval paths keep surfacing.
func (e *Engine) PruneExpiredTaskMemories(ctx context.Context, opts PruneOptions) (*PruneResult, error) {
	days := opts.RetentionDays
	if days <= 0 {
		days = e.cfg.RetentionDays
	}
	cutoff := e.now().UTC().AddDate(0, 0, -days)

	start := e.now()
	pruned, err := e.memories.PruneExpiredTask(ctx, cutoff, opts.DryRun)
	if err != nil {
		e.metrics.RecordError(ctx, "prune", "store")
		return nil, err
	}

	e.metrics.RecordOperation(ctx, "prune", "success", e.now().Sub(start).Milliseconds())
	e.log.Info("retention sweep",
		zap.Time("cutoff", cutoff),
		zap.Int64("pruned", pruned),
		zap.Bool("dry_run", opts.DryRun),
	)
	return &PruneResult{MemoriesPruned: pruned, Cutoff: cutoff, DryRun: opts.DryRun}, nil
}
