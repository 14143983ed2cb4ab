// Package api provides the REST surface of the mining core. The
// dashboard and orchestrator consume it: candidate queries, proposal
// generation and retrieval, lifecycle transitions and the apply flow
// are all exposed here as JSON endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/presenter"
	"github.com/skillminer/skillminer/pkg/store"
	"github.com/skillminer/skillminer/pkg/synthesizer"
	"github.com/skillminer/skillminer/pkg/types/mining"
)

// Server exposes the candidate query, proposal and lifecycle APIs.
type Server struct {
	router     *mux.Router
	candidates store.CandidateStore
	service    *synthesizer.Service
	config     *ServerConfig
	server     *http.Server
}

// ServerConfig holds the configuration for the API server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// NewServer creates an API server over the given store and service.
func NewServer(config *ServerConfig, candidates store.CandidateStore, service *synthesizer.Service) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router:     mux.NewRouter(),
		candidates: candidates,
		service:    service,
		config:     config,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/candidates", s.handleListCandidates).Methods("GET")
	api.HandleFunc("/candidates/{id}", s.handleGetCandidate).Methods("GET")
	api.HandleFunc("/candidates/{id}/status", s.handleSetStatus).Methods("PUT")
	api.HandleFunc("/candidates/{id}/notes", s.handleSetNotes).Methods("PUT")
	api.HandleFunc("/candidates/{id}/proposal", s.handleGenerateProposal).Methods("POST")
	api.HandleFunc("/candidates/{id}/proposal", s.handleGetCachedProposal).Methods("GET")
	api.HandleFunc("/candidates/{id}/apply", s.handleApply).Methods("POST")
	api.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// Router returns the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// API handlers

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.candidates.List(r.Context())
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to list candidates", err)
		return
	}

	s.writeJSONResponse(w, map[string]any{
		"candidates": candidates,
		"total":      len(candidates),
	})
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	candidate, err := s.candidates.Get(r.Context(), id)
	if err != nil {
		s.writeErrorResponse(w, statusForError(err), "failed to get candidate", err)
		return
	}

	s.writeJSONResponse(w, candidate)
}

// setStatusRequest is the body of PUT /api/candidates/{id}/status.
type setStatusRequest struct {
	Status mining.Status `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.candidates.SetStatus(r.Context(), id, req.Status); err != nil {
		s.writeErrorResponse(w, statusForError(err), "failed to set candidate status", err)
		return
	}

	s.writeJSONResponse(w, map[string]any{
		"id":     id,
		"status": req.Status,
	})
}

// setNotesRequest is the body of PUT /api/candidates/{id}/notes.
type setNotesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req setNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.candidates.SetNotes(r.Context(), id, req.Notes); err != nil {
		s.writeErrorResponse(w, statusForError(err), "failed to set candidate notes", err)
		return
	}

	s.writeJSONResponse(w, map[string]any{"id": id})
}

func (s *Server) handleGenerateProposal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	proposal, err := s.service.GenerateProposal(r.Context(), id)
	if err != nil {
		s.writeErrorResponse(w, statusForError(err), "failed to generate proposal", err)
		return
	}

	s.writeJSONResponse(w, proposal)
}

func (s *Server) handleGetCachedProposal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	proposal, err := s.service.CachedProposal(r.Context(), id)
	if err != nil {
		s.writeErrorResponse(w, statusForError(err), "no cached proposal", err)
		return
	}

	s.writeJSONResponse(w, proposal)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.service.ApplyProposal(r.Context(), id); err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			// Anything that is not a lifecycle or lookup failure came
			// from the gateway boundary.
			status = http.StatusBadGateway
		}
		s.writeErrorResponse(w, status, "failed to apply proposal", err)
		return
	}

	s.writeJSONResponse(w, map[string]any{
		"id":     id,
		"status": mining.StatusMerged,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSONResponse(w, map[string]any{"status": "ok"})
}

// statusForError maps the mining error kinds onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, mining.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mining.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, mining.ErrEmptyCandidate), errors.Is(err, mining.ErrMalformedRecord):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err != nil {
		response["detail"] = err.Error()
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}

// Start starts the API server and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	presenter.Info(fmt.Sprintf("Starting API server on http://%s", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop stops the API server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
