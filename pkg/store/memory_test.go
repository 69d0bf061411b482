package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testDim = 4

func setupTestStores(t *testing.T) (*SQLiteGraphStore, *SQLiteMemoryStore) {
	t.Helper()
	gs, err := NewSQLiteGraphStore(":memory:", testDim)
	if err != nil {
		t.Fatalf("NewSQLiteGraphStore failed: %v", err)
	}
	t.Cleanup(func() { gs.Close() })
	return gs, NewSQLiteMemoryStore(gs.DB(), testDim)
}

func testVec(seed float32) []float32 {
	return []float32{seed, 1 - seed, 0.5, 0.25}
}

func TestCreateAndGetMemory(t *testing.T) {
	_, ms := setupTestStores(t)
	ctx := context.Background()

	m := &Memory{
		OwnerID:   "alice",
		Tier:      TierPersonal,
		Content:   "prefers tea over coffee",
		Embedding: testVec(0.1),
		Metadata:  map[string]interface{}{"source": "chat"},
	}
	if err := ms.Create(ctx, m); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if m.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := ms.Get(ctx, "alice", m.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != m.Content {
		t.Errorf("Content mismatch: got %q, want %q", got.Content, m.Content)
	}
	if got.Tier != TierPersonal {
		t.Errorf("Tier mismatch: got %s", got.Tier)
	}
	if len(got.Embedding) != testDim {
		t.Fatalf("Embedding length mismatch: got %d, want %d", len(got.Embedding), testDim)
	}
	for i := range m.Embedding {
		if got.Embedding[i] != m.Embedding[i] {
			t.Errorf("Embedding[%d] mismatch: got %f, want %f", i, got.Embedding[i], m.Embedding[i])
		}
	}
	if got.Metadata["source"] != "chat" {
		t.Errorf("Metadata mismatch: got %v", got.Metadata)
	}
}

func TestGetMemory_CrossOwnerIsNotFound(t *testing.T) {
	_, ms := setupTestStores(t)
	ctx := context.Background()

	m := &Memory{OwnerID: "bob", Tier: TierTask, Content: "bob's note", Embedding: testVec(0.2)}
	if err := ms.Create(ctx, m); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Another owner must get the same NotFound as a missing ID.
	if _, err := ms.Get(ctx, "alice", m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for cross-owner get, got %v", err)
	}
	if _, err := ms.Get(ctx, "alice", "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestCreateMemory_WrongDimensionPersistsNothing(t *testing.T) {
	_, ms := setupTestStores(t)
	ctx := context.Background()

	m := &Memory{
		OwnerID:   "alice",
		Tier:      TierTask,
		Content:   "bad vector",
		Embedding: make([]float32, 512),
	}
	err := ms.Create(ctx, m)
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	count, err := ms.Count(ctx, "alice")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected nothing persisted, got %d memories", count)
	}
}

func TestTouchBumpsAccessTracking(t *testing.T) {
	_, ms := setupTestStores(t)
	ctx := context.Background()

	created := time.Now().UTC().Add(-24 * time.Hour)
	m := &Memory{
		OwnerID:    "alice",
		Tier:       TierTask,
		Content:    "working note",
		Embedding:  testVec(0.3),
		CreatedAt:  created,
		AccessedAt: created,
	}
	if err := ms.Create(ctx, m); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := ms.Touch(ctx, []string{m.ID, m.ID}); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	got, err := ms.Get(ctx, "alice", m.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	// Duplicate IDs in one call count as one surface.
	if got.AccessCount != 1 {
		t.Errorf("expected access_count 1, got %d", got.AccessCount)
	}
	if !got.AccessedAt.After(created) {
		t.Errorf("expected accessed_at advanced past %v, got %v", created, got.AccessedAt)
	}
}

func TestUpdateMemoryMetadata(t *testing.T) {
	_, ms := setupTestStores(t)
	ctx := context.Background()

	m := &Memory{OwnerID: "alice", Tier: TierProject, Content: "ship v2", Embedding: testVec(0.4)}
	if err := ms.Create(ctx, m); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	meta := map[string]interface{}{"status": "active"}
	got, err := ms.Update(ctx, "alice", m.ID, MemoryUpdate{Metadata: &meta})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Metadata["status"] != "active" {
		t.Errorf("Metadata not updated: %v", got.Metadata)
	}
	if got.Content != "ship v2" {
		t.Errorf("Content should be unchanged, got %q", got.Content)
	}
}

func TestListMemoriesByTier(t *testing.T) {
	_, ms := setupTestStores(t)
	ctx := context.Background()

	for i, tier := range []Tier{TierPersonal, TierTask, TierTask} {
		m := &Memory{OwnerID: "alice", Tier: tier, Content: "m", Embedding: testVec(float32(i) / 10)}
		if err := ms.Create(ctx, m); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tier := TierTask
	got, err := ms.List(ctx, "alice", ListOptions{Tier: &tier})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 TASK memories, got %d", len(got))
	}
}

func createAgedMemory(t *testing.T, ms *SQLiteMemoryStore, tier Tier, ageDays int) *Memory {
	t.Helper()
	created := time.Now().UTC().AddDate(0, 0, -ageDays)
	m := &Memory{
		OwnerID:    "alice",
		Tier:       tier,
		Content:    "aged memory",
		Embedding:  testVec(0.5),
		CreatedAt:  created,
		AccessedAt: created,
	}
	if err := ms.Create(context.Background(), m); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return m
}

func TestPruneExpiredTask(t *testing.T) {
	_, ms := setupTestStores(t)
	ctx := context.Background()

	old := createAgedMemory(t, ms, TierTask, 35)
	mid := createAgedMemory(t, ms, TierTask, 20)
	fresh := createAgedMemory(t, ms, TierTask, 5)

	cutoff := time.Now().UTC().AddDate(0, 0, -30)

	// Dry run reports without deleting.
	eligible, err := ms.PruneExpiredTask(ctx, cutoff, true)
	if err != nil {
		t.Fatalf("PruneExpiredTask dry run failed: %v", err)
	}
	if eligible != 1 {
		t.Errorf("expected 1 eligible memory, got %d", eligible)
	}
	if count, _ := ms.Count(ctx, "alice"); count != 3 {
		t.Errorf("dry run must not delete, have %d memories", count)
	}

	deleted, err := ms.PruneExpiredTask(ctx, cutoff, false)
	if err != nil {
		t.Fatalf("PruneExpiredTask failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}

	if _, err := ms.Get(ctx, "alice", old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("35-day-old TASK memory should be gone, got %v", err)
	}
	for _, m := range []*Memory{mid, fresh} {
		if _, err := ms.Get(ctx, "alice", m.ID); err != nil {
			t.Errorf("memory %s should survive: %v", m.ID, err)
		}
	}

	// Idempotent: re-running deletes nothing extra.
	deleted, err = ms.PruneExpiredTask(ctx, cutoff, false)
	if err != nil {
		t.Fatalf("PruneExpiredTask rerun failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("rerun deleted %d memories", deleted)
	}
}

func TestPruneNeverTouchesLongTiers(t *testing.T) {
	_, ms := setupTestStores(t)
	ctx := context.Background()

	personal := createAgedMemory(t, ms, TierPersonal, 400)
	project := createAgedMemory(t, ms, TierProject, 400)

	// Even an absurd future cutoff leaves PERSONAL and PROJECT alone.
	deleted, err := ms.PruneExpiredTask(ctx, time.Now().UTC().AddDate(10, 0, 0), false)
	if err != nil {
		t.Fatalf("PruneExpiredTask failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected 0 deletions, got %d", deleted)
	}
	for _, m := range []*Memory{personal, project} {
		if _, err := ms.Get(ctx, "alice", m.ID); err != nil {
			t.Errorf("memory %s should survive any cutoff: %v", m.ID, err)
		}
	}
}

func TestPruneCascadesAssociationsNotNodes(t *testing.T) {
	gs, ms := setupTestStores(t)
	ctx := context.Background()

	old := createAgedMemory(t, ms, TierTask, 35)

	node, err := gs.CreateNode(ctx, &Node{OwnerID: "alice", Type: NodeTopic, Name: "gardening"})
	if err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	err = gs.Associate(ctx, &Association{MemoryID: old.ID, NodeID: node.ID, Relevance: 0.9})
	if err != nil {
		t.Fatalf("Associate failed: %v", err)
	}

	if _, err := ms.PruneExpiredTask(ctx, time.Now().UTC().AddDate(0, 0, -30), false); err != nil {
		t.Fatalf("PruneExpiredTask failed: %v", err)
	}

	assocs, err := gs.Associations(ctx, old.ID)
	if err != nil {
		t.Fatalf("Associations failed: %v", err)
	}
	if len(assocs) != 0 {
		t.Errorf("expected association cascade, got %d rows", len(assocs))
	}
	if _, err := gs.GetNode(ctx, "alice", node.ID); err != nil {
		t.Errorf("node must survive its memory's expiry: %v", err)
	}
}
