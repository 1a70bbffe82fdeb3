// Package dashboard serves a read-only JSON API over the run history and
// master key registry.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/dbsmedya/keysync/internal/logger"
	"github.com/dbsmedya/keysync/internal/store"
)

const defaultRunLimit = 50

// Server exposes reconciliation state over HTTP. All endpoints are
// read-only; runs are never triggered through the API.
type Server struct {
	store  *store.Store
	logger *logger.Logger
	http   *http.Server
}

// New creates a Server listening on addr.
func New(addr string, st *store.Store, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault()
	}
	s := &Server{store: st, logger: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id:[0-9]+}", s.handleGetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id:[0-9]+}/audit", s.handleRunAudit).Methods(http.MethodGet)
	api.HandleFunc("/master-keys", s.handleMasterKeys).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.logMiddleware(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.logger.Infow("Dashboard listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugw("Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Errorw("Failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		s.logger.Errorw("Failed to get run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunAudit(w http.ResponseWriter, r *http.Request) {
	runID, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	events, err := s.store.GetAuditEvents(r.Context(), runID)
	if err != nil {
		s.logger.Errorw("Failed to get audit events", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get audit events")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "events": events})
}

func (s *Server) handleMasterKeys(w http.ResponseWriter, r *http.Request) {
	status := store.MasterKeyStatus(r.URL.Query().Get("status"))
	switch status {
	case "", store.MasterKeyProposed, store.MasterKeyActive, store.MasterKeyDeprecated:
	default:
		s.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	keys, err := s.store.GetMasterKeys(r.Context(), status)
	if err != nil {
		s.logger.Errorw("Failed to get master keys", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get master keys")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"master_keys": keys})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Errorw("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
