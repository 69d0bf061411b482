package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dan-solli/recall/pkg/recall"
	"github.com/dan-solli/recall/pkg/store"
)

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req recall.CreateMemoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.OwnerID = ownerFrom(r.Context())

	m, err := s.engine.CreateMemory(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.GetMemory(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{OrderDesc: true}
	q := r.URL.Query()
	if t := q.Get("tier"); t != "" {
		tier := store.Tier(t)
		if !tier.Valid() {
			s.writeError(w, http.StatusBadRequest, "unknown tier: "+t)
			return
		}
		opts.Tier = &tier
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	memories, err := s.engine.ListMemories(r.Context(), ownerFrom(r.Context()), opts)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"memories": memories})
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	var upd store.MemoryUpdate
	if !s.decode(w, r, &upd) {
		return
	}

	m, err := s.engine.UpdateMemory(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	err := s.engine.DeleteMemory(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOrganize(w http.ResponseWriter, r *http.Request) {
	nodes, edges, err := s.engine.AutoOrganize(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": nodes, "edges": edges})
}

type searchRequest struct {
	Query    string               `json:"query"`
	Strategy string               `json:"strategy,omitempty"`
	Options  recall.SearchOptions `json:"options,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}

	owner := ownerFrom(r.Context())
	var resp *recall.SearchResponse
	var err error
	switch req.Strategy {
	case "", "hybrid":
		resp, err = s.engine.HybridSearch(r.Context(), owner, req.Query, req.Options)
	case "hierarchical":
		resp, err = s.engine.HierarchicalSearch(r.Context(), owner, req.Query, req.Options)
	case "graph_guided":
		resp, err = s.engine.GraphGuidedSearch(r.Context(), owner, req.Query, req.Options)
	default:
		s.writeError(w, http.StatusBadRequest, "unknown strategy: "+req.Strategy)
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var node store.Node
	if !s.decode(w, r, &node) {
		return
	}
	node.OwnerID = ownerFrom(r.Context())

	created, err := s.engine.CreateNode(r.Context(), &node)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.engine.GetNode(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	var upd store.NodeUpdate
	if !s.decode(w, r, &upd) {
		return
	}

	node, err := s.engine.UpdateNode(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	err := s.engine.DeleteNode(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	var edge store.Edge
	if !s.decode(w, r, &edge) {
		return
	}
	edge.OwnerID = ownerFrom(r.Context())

	created, err := s.engine.CreateEdge(r.Context(), &edge)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	err := s.engine.DeleteEdge(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type associateRequest struct {
	MemoryID  string  `json:"memory_id"`
	NodeID    string  `json:"node_id"`
	Relevance float64 `json:"relevance"`
}

func (s *Server) handleAssociate(w http.ResponseWriter, r *http.Request) {
	var req associateRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.engine.Associate(r.Context(), ownerFrom(r.Context()), req.MemoryID, req.NodeID, req.Relevance)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleShortestPath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		s.writeError(w, http.StatusBadRequest, "from and to memory IDs are required")
		return
	}
	maxDepth := 0
	if v := q.Get("max_depth"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxDepth = n
		}
	}

	path, err := s.engine.ShortestPath(r.Context(), ownerFrom(r.Context()), from, to, maxDepth)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"path": path})
}

type traverseRequest struct {
	StartMemoryID string           `json:"start_memory_id"`
	MaxDepth      int              `json:"max_depth,omitempty"`
	MinStrength   float64          `json:"min_strength,omitempty"`
	EdgeTypes     []store.EdgeType `json:"edge_types,omitempty"`
}

func (s *Server) handleTraverse(w http.ResponseWriter, r *http.Request) {
	var req traverseRequest
	if !s.decode(w, r, &req) {
		return
	}

	paths, err := s.engine.Traverse(r.Context(), ownerFrom(r.Context()), req.StartMemoryID, req.MaxDepth, req.MinStrength, req.EdgeTypes)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"paths": paths})
}

type pruneRequest struct {
	RetentionDays int  `json:"retention_days,omitempty"`
	DryRun        bool `json:"dry_run,omitempty"`
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	var req pruneRequest
	if r.ContentLength > 0 && !s.decode(w, r, &req) {
		return
	}

	result, err := s.engine.PruneExpiredTaskMemories(r.Context(), recall.PruneOptions{
		RetentionDays: req.RetentionDays,
		DryRun:        req.DryRun,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
