// Package server exposes the engine over HTTP. Every route is owner-scoped
// through the X-Owner-ID header; the engine enforces scoping in SQL, the
// server only plumbs it.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dan-solli/recall/pkg/metrics"
	"github.com/dan-solli/recall/pkg/recall"
)

const ownerHeader = "X-Owner-ID"

type ctxKey int

const ownerKey ctxKey = 0

// Server wires the engine into an HTTP API.
type Server struct {
	engine *recall.Engine
	log    *zap.Logger
	prom   *metrics.PrometheusCollector
}

// New creates a server. prom may be nil, in which case /metrics is not
// registered.
func New(engine *recall.Engine, log *zap.Logger, prom *metrics.PrometheusCollector) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{engine: engine, log: log, prom: prom}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	if s.prom != nil {
		r.Method("GET", "/metrics", promhttp.HandlerFor(s.prom.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireOwner)

		r.Post("/memories", s.handleCreateMemory)
		r.Get("/memories", s.handleListMemories)
		r.Get("/memories/{id}", s.handleGetMemory)
		r.Patch("/memories/{id}", s.handleUpdateMemory)
		r.Delete("/memories/{id}", s.handleDeleteMemory)
		r.Post("/memories/{id}/organize", s.handleOrganize)

		r.Post("/search", s.handleSearch)

		r.Post("/graph/nodes", s.handleCreateNode)
		r.Get("/graph/nodes/{id}", s.handleGetNode)
		r.Patch("/graph/nodes/{id}", s.handleUpdateNode)
		r.Delete("/graph/nodes/{id}", s.handleDeleteNode)
		r.Post("/graph/edges", s.handleCreateEdge)
		r.Delete("/graph/edges/{id}", s.handleDeleteEdge)
		r.Post("/graph/associations", s.handleAssociate)
		r.Get("/graph/stats", s.handleStats)
		r.Get("/graph/paths/shortest", s.handleShortestPath)
		r.Post("/graph/traverse", s.handleTraverse)

		r.Post("/prune", s.handlePrune)
	})

	return r
}

// requireOwner rejects requests without an owner identity. Authentication
// proper lives in front of this service.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(ownerHeader)
		if owner == "" {
			s.writeError(w, http.StatusBadRequest, "missing "+ownerHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(withOwner(r.Context(), owner)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	class := recall.ClassifyError(err)
	status := http.StatusInternalServerError
	switch class {
	case recall.ErrTypeValidation:
		status = http.StatusBadRequest
	case recall.ErrTypeNotFound:
		status = http.StatusNotFound
	case recall.ErrTypeEmbedding, recall.ErrTypeExtraction:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Type: class})
}
