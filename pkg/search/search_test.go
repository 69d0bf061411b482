package search

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/dan-solli/recall/pkg/store"
)

const testDim = 4

type fixture struct {
	graph    *store.SQLiteGraphStore
	memories *store.SQLiteMemoryStore
	svc      *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gs, err := store.NewSQLiteGraphStore(":memory:", testDim)
	if err != nil {
		t.Fatalf("NewSQLiteGraphStore failed: %v", err)
	}
	t.Cleanup(func() { gs.Close() })

	ms := store.NewSQLiteMemoryStore(gs.DB(), testDim)
	svc := NewService(ms, gs, zap.NewNop(), Config{Dim: testDim})
	return &fixture{graph: gs, memories: ms, svc: svc}
}

func (f *fixture) memory(t *testing.T, owner, content string, embedding []float32, metadata map[string]interface{}) *store.Memory {
	t.Helper()
	m := &store.Memory{
		OwnerID:   owner,
		Tier:      store.TierTask,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
	}
	if err := f.memories.Create(context.Background(), m); err != nil {
		t.Fatalf("Create memory failed: %v", err)
	}
	return m
}

func (f *fixture) node(t *testing.T, owner string, typ store.NodeType, name string, embedding []float32) *store.Node {
	t.Helper()
	n, err := f.graph.CreateNode(context.Background(), &store.Node{
		OwnerID:   owner,
		Type:      typ,
		Name:      name,
		Embedding: embedding,
	})
	if err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	return n
}

func (f *fixture) link(t *testing.T, memoryID, nodeID string, relevance float64) {
	t.Helper()
	err := f.graph.Associate(context.Background(), &store.Association{
		MemoryID: memoryID, NodeID: nodeID, Relevance: relevance,
	})
	if err != nil {
		t.Fatalf("Associate failed: %v", err)
	}
}

func TestHierarchical_FunnelsThroughNodes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	query := []float32{1, 0, 0, 0}

	python := f.node(t, "alice", store.NodeTopic, "python", []float32{1, 0, 0, 0})
	linked := f.memory(t, "alice", "about python", []float32{1, 0, 0, 0}, nil)
	f.link(t, linked.ID, python.ID, 0.9)

	// Similar but never organized into the graph; the funnel skips it.
	f.memory(t, "alice", "also about python", []float32{0.9, 0.1, 0, 0}, nil)

	results, err := f.svc.Hierarchical(ctx, "alice", "python", query, Options{})
	if err != nil {
		t.Fatalf("Hierarchical failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 funnelled result, got %d", len(results))
	}
	if results[0].Memory.ID != linked.ID {
		t.Errorf("expected the associated memory, got %s", results[0].Memory.ID)
	}
}

func TestHierarchical_TouchesSurfacedMemories(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	query := []float32{1, 0, 0, 0}

	n := f.node(t, "alice", store.NodeTopic, "tea", []float32{1, 0, 0, 0})
	m := f.memory(t, "alice", "prefers green tea", []float32{1, 0, 0, 0}, nil)
	f.link(t, m.ID, n.ID, 0.9)

	if _, err := f.svc.Hierarchical(ctx, "alice", "tea", query, Options{}); err != nil {
		t.Fatalf("Hierarchical failed: %v", err)
	}

	got, err := f.memories.Get(ctx, "alice", m.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccessCount != 1 {
		t.Errorf("expected read-through access bump, got count %d", got.AccessCount)
	}
}

func TestSearch_EmptyOwnerReturnsEmptyList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	query := []float32{1, 0, 0, 0}

	for name, run := range map[string]func() ([]*Result, error){
		"hierarchical": func() ([]*Result, error) {
			return f.svc.Hierarchical(ctx, "nobody", "q", query, Options{})
		},
		"graph_guided": func() ([]*Result, error) {
			return f.svc.GraphGuided(ctx, "nobody", "q", query, Options{ExpandDepth: 2})
		},
		"hybrid": func() ([]*Result, error) {
			return f.svc.Hybrid(ctx, "nobody", "q", query, Options{})
		},
	} {
		results, err := run()
		if err != nil {
			t.Errorf("%s: expected empty list, got error %v", name, err)
		}
		if len(results) != 0 {
			t.Errorf("%s: expected empty list, got %d results", name, len(results))
		}
	}
}

func TestSearch_WrongDimensionRejectedBeforeDB(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Hybrid(ctx, "alice", "q", make([]float32, 512), Options{})
	if !store.IsValidation(err) {
		t.Errorf("expected ValidationError for 512-dim query, got %v", err)
	}
}

func TestGraphGuided_ExpansionSurfacesNeighborMemories(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	query := []float32{1, 0, 0, 0}

	python := f.node(t, "alice", store.NodeTopic, "python", []float32{1, 0, 0, 0})
	delight := f.node(t, "alice", store.NodeProject, "delight_project", nil)
	_, err := f.graph.CreateEdge(ctx, &store.Edge{
		OwnerID:  "alice",
		SourceID: python.ID,
		TargetID: delight.ID,
		Type:     store.EdgeRelatedTo,
		Weight:   0.85,
	})
	if err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}

	direct := f.memory(t, "alice", "python tips", []float32{1, 0, 0, 0}, nil)
	f.link(t, direct.ID, python.ID, 0.9)

	// Never mentions python; only reachable through the delight edge.
	indirect := f.memory(t, "alice", "delight sprint planning", []float32{0.9, 0.43, 0, 0}, nil)
	f.link(t, indirect.ID, delight.ID, 0.9)

	results, err := f.svc.GraphGuided(ctx, "alice", "python", query, Options{ExpandDepth: 1})
	if err != nil {
		t.Fatalf("GraphGuided failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both memories, got %d", len(results))
	}
	if results[0].Memory.ID != direct.ID {
		t.Errorf("directly associated memory must rank first, got %s", results[0].Memory.ID)
	}
	if results[1].Memory.ID != indirect.ID {
		t.Errorf("expansion must surface the neighbor's memory, got %s", results[1].Memory.ID)
	}
	if results[1].Score >= results[0].Score {
		t.Errorf("hop decay must lower the indirect score: %f >= %f", results[1].Score, results[0].Score)
	}
	if results[1].Score <= 0 {
		t.Errorf("indirect memory must still score positive, got %f", results[1].Score)
	}
}

func TestGraphGuided_DepthZeroSkipsExpansion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	query := []float32{1, 0, 0, 0}

	python := f.node(t, "alice", store.NodeTopic, "python", []float32{1, 0, 0, 0})
	delight := f.node(t, "alice", store.NodeProject, "delight_project", nil)
	f.graph.CreateEdge(ctx, &store.Edge{
		OwnerID: "alice", SourceID: python.ID, TargetID: delight.ID,
		Type: store.EdgeRelatedTo, Weight: 0.85,
	})

	indirect := f.memory(t, "alice", "delight notes", []float32{1, 0, 0, 0}, nil)
	f.link(t, indirect.ID, delight.ID, 0.9)

	results, err := f.svc.GraphGuided(ctx, "alice", "python", query, Options{ExpandDepth: 0})
	if err != nil {
		t.Fatalf("GraphGuided failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("depth 0 must not expand, got %d results", len(results))
	}
}

func TestGraphGuided_TerminatesOnCycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	query := []float32{1, 0, 0, 0}

	a := f.node(t, "alice", store.NodeTopic, "alpha", []float32{1, 0, 0, 0})
	b := f.node(t, "alice", store.NodeTopic, "beta", nil)
	c := f.node(t, "alice", store.NodeTopic, "gamma", nil)
	f.graph.CreateEdge(ctx, &store.Edge{OwnerID: "alice", SourceID: a.ID, TargetID: b.ID, Type: store.EdgeRelatedTo, Weight: 0.9})
	f.graph.CreateEdge(ctx, &store.Edge{OwnerID: "alice", SourceID: b.ID, TargetID: c.ID, Type: store.EdgeRelatedTo, Weight: 0.9})
	f.graph.CreateEdge(ctx, &store.Edge{OwnerID: "alice", SourceID: c.ID, TargetID: a.ID, Type: store.EdgeRelatedTo, Weight: 0.9})

	m := f.memory(t, "alice", "cyclic", []float32{1, 0, 0, 0}, nil)
	f.link(t, m.ID, c.ID, 0.9)

	// Requested depth far beyond the server bound; must still terminate.
	results, err := f.svc.GraphGuided(ctx, "alice", "alpha", query, Options{ExpandDepth: 1000})
	if err != nil {
		t.Fatalf("GraphGuided failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result through the cycle, got %d", len(results))
	}
}

func TestHybrid_OrderedAndFilterMonotone(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	query := []float32{1, 0, 0, 0}

	python := f.node(t, "alice", store.NodeTopic, "python", []float32{1, 0, 0, 0})
	tagged := f.memory(t, "alice", "tagged python note", []float32{1, 0, 0, 0},
		map[string]interface{}{"tag": "work"})
	f.link(t, tagged.ID, python.ID, 0.9)
	f.memory(t, "alice", "untagged note", []float32{0.8, 0.6, 0, 0}, nil)
	f.memory(t, "alice", "other tagged note", []float32{0.6, 0.8, 0, 0},
		map[string]interface{}{"tag": "work"})

	unfiltered, err := f.svc.Hybrid(ctx, "alice", "python", query, Options{Limit: 50})
	if err != nil {
		t.Fatalf("Hybrid failed: %v", err)
	}
	for i := 1; i < len(unfiltered); i++ {
		if unfiltered[i].Score > unfiltered[i-1].Score {
			t.Errorf("fused scores must be non-increasing at %d: %f > %f",
				i, unfiltered[i].Score, unfiltered[i-1].Score)
		}
	}

	filtered, err := f.svc.Hybrid(ctx, "alice", "python", query, Options{
		Limit:   50,
		Filters: map[string]string{"tag": "work"},
	})
	if err != nil {
		t.Fatalf("filtered Hybrid failed: %v", err)
	}

	// Hard filter: nothing failing the predicate may appear.
	for _, r := range filtered {
		if r.Memory.Metadata["tag"] != "work" {
			t.Errorf("filtered output leaked memory %s", r.Memory.ID)
		}
	}

	// Removing the filter only adds results.
	inUnfiltered := make(map[string]bool, len(unfiltered))
	for _, r := range unfiltered {
		inUnfiltered[r.Memory.ID] = true
	}
	for _, r := range filtered {
		if !inUnfiltered[r.Memory.ID] {
			t.Errorf("memory %s passed the filter but vanished without it", r.Memory.ID)
		}
	}
	if len(unfiltered) < len(filtered) {
		t.Errorf("unfiltered result set shrank: %d < %d", len(unfiltered), len(filtered))
	}
}

func TestHybrid_SurfacesUnorganizedMemories(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	query := []float32{1, 0, 0, 0}

	// No graph at all; the full-corpus fusion input still finds it.
	m := f.memory(t, "alice", "never organized", []float32{1, 0, 0, 0}, nil)

	results, err := f.svc.Hybrid(ctx, "alice", "anything", query, Options{})
	if err != nil {
		t.Fatalf("Hybrid failed: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != m.ID {
		t.Errorf("expected the unorganized memory, got %+v", results)
	}
}

func TestShortestPath(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.node(t, "alice", store.NodeTopic, "a", nil)
	b := f.node(t, "alice", store.NodeTopic, "b", nil)
	c := f.node(t, "alice", store.NodeTopic, "c", nil)
	f.graph.CreateEdge(ctx, &store.Edge{OwnerID: "alice", SourceID: a.ID, TargetID: b.ID, Type: store.EdgeRelatedTo, Weight: 0.8})
	f.graph.CreateEdge(ctx, &store.Edge{OwnerID: "alice", SourceID: b.ID, TargetID: c.ID, Type: store.EdgeRelatedTo, Weight: 0.5})

	from := f.memory(t, "alice", "start", []float32{1, 0, 0, 0}, nil)
	to := f.memory(t, "alice", "end", []float32{0, 1, 0, 0}, nil)
	f.link(t, from.ID, a.ID, 0.9)
	f.link(t, to.ID, c.ID, 0.9)

	path, err := f.svc.ShortestPath(ctx, "alice", from.ID, to.ID, 5)
	if err != nil {
		t.Fatalf("ShortestPath failed: %v", err)
	}
	if path == nil {
		t.Fatal("expected a path")
	}
	if len(path.Steps) != 3 {
		t.Fatalf("expected 3 steps (a,b,c), got %d", len(path.Steps))
	}
	if path.Steps[0].NodeID != a.ID || path.Steps[2].NodeID != c.ID {
		t.Errorf("path endpoints wrong: %+v", path.Steps)
	}
	want := 0.8 * 0.5
	if path.Strength < want-1e-9 || path.Strength > want+1e-9 {
		t.Errorf("expected strength %f, got %f", want, path.Strength)
	}

	// Unreachable within depth 1.
	short, err := f.svc.ShortestPath(ctx, "alice", from.ID, to.ID, 1)
	if err != nil {
		t.Fatalf("ShortestPath failed: %v", err)
	}
	if short != nil {
		t.Errorf("expected nil for unreachable depth, got %+v", short)
	}
}

func TestTraverse_CycleTerminatesAndBoundsDepth(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.node(t, "alice", store.NodeTopic, "a", nil)
	b := f.node(t, "alice", store.NodeTopic, "b", nil)
	c := f.node(t, "alice", store.NodeTopic, "c", nil)
	f.graph.CreateEdge(ctx, &store.Edge{OwnerID: "alice", SourceID: a.ID, TargetID: b.ID, Type: store.EdgeRelatedTo, Weight: 0.9})
	f.graph.CreateEdge(ctx, &store.Edge{OwnerID: "alice", SourceID: b.ID, TargetID: c.ID, Type: store.EdgeRelatedTo, Weight: 0.9})
	f.graph.CreateEdge(ctx, &store.Edge{OwnerID: "alice", SourceID: c.ID, TargetID: a.ID, Type: store.EdgeRelatedTo, Weight: 0.9})

	start := f.memory(t, "alice", "start", []float32{1, 0, 0, 0}, nil)
	f.link(t, start.ID, a.ID, 0.9)

	paths, err := f.svc.Traverse(ctx, "alice", start.ID, 5, 0, nil)
	if err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("expected paths")
	}
	for _, p := range paths {
		if len(p.Steps)-1 > 5 {
			t.Errorf("path exceeds depth 5: %d hops", len(p.Steps)-1)
		}
		seen := make(map[string]bool)
		for _, step := range p.Steps {
			if seen[step.NodeID] {
				t.Errorf("node %s revisited within a path", step.NodeID)
			}
			seen[step.NodeID] = true
		}
	}
}

func TestTraverse_MinStrengthPrunes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.node(t, "alice", store.NodeTopic, "a", nil)
	b := f.node(t, "alice", store.NodeTopic, "b", nil)
	c := f.node(t, "alice", store.NodeTopic, "c", nil)
	f.graph.CreateEdge(ctx, &store.Edge{OwnerID: "alice", SourceID: a.ID, TargetID: b.ID, Type: store.EdgeRelatedTo, Weight: 0.9})
	f.graph.CreateEdge(ctx, &store.Edge{OwnerID: "alice", SourceID: b.ID, TargetID: c.ID, Type: store.EdgeRelatedTo, Weight: 0.2})

	start := f.memory(t, "alice", "start", []float32{1, 0, 0, 0}, nil)
	f.link(t, start.ID, a.ID, 0.9)

	paths, err := f.svc.Traverse(ctx, "alice", start.ID, 5, 0.5, nil)
	if err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	// Only a→b survives: a→b→c has cumulative 0.18.
	if len(paths) != 1 {
		t.Fatalf("expected 1 path above min strength, got %d", len(paths))
	}
	if paths[0].Steps[len(paths[0].Steps)-1].NodeID != b.ID {
		t.Errorf("expected path ending at b, got %+v", paths[0].Steps)
	}
}

func TestSearch_CancelledContextAborts(t *testing.T) {
	f := setup(t)
	query := []float32{1, 0, 0, 0}

	n := f.node(t, "alice", store.NodeTopic, "x", []float32{1, 0, 0, 0})
	m := f.memory(t, "alice", "note", []float32{1, 0, 0, 0}, nil)
	f.link(t, m.ID, n.ID, 0.9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Hierarchical(ctx, "alice", "x", query, Options{}); err == nil {
		t.Error("expected error from cancelled context")
	}
}
