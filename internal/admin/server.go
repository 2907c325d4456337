// Package admin exposes the daemon's introspection HTTP surface: health,
// a sanitized state snapshot, mutation history and time-travel control,
// plus Prometheus metrics.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"git.ecosistema.dev/plataforma/statecore/internal/state"
	"git.ecosistema.dev/plataforma/statecore/internal/store"
	"git.ecosistema.dev/plataforma/statecore/internal/syncer"
)

// Server is the admin HTTP listener.
type Server struct {
	manager *store.Manager
	sync    *syncer.Engine
	metrics http.Handler
	srv     *http.Server
}

// Options wire the server's dependencies; sync and metrics are optional.
type Options struct {
	Addr    string
	Manager *store.Manager
	Sync    *syncer.Engine
	Metrics http.Handler
}

// New builds the server; Start binds the listener.
func New(opts Options) *Server {
	s := &Server{
		manager: opts.Manager,
		sync:    opts.Sync,
		metrics: opts.Metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/time-travel/", s.handleTimeTravel)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves until Shutdown or listener failure.
func (s *Server) Start() error {
	slog.Info("admin server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"instance": s.manager.InstanceID(),
	}
	if s.sync != nil {
		resp["sync_in_progress"] = s.sync.InProgress()
		resp["pending_updates"] = s.sync.PendingUpdates()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleState returns the current tree with session data stripped: the
// user profile never leaves the process through this endpoint.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, sanitize(s.manager.Snapshot()))
}

type historyEntry struct {
	Index      int       `json:"index"`
	Type       string    `json:"type"`
	MutationID string    `json:"mutation_id"`
	User       string    `json:"user,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log := s.manager.History()
	if log == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}

	entries := log.Entries()
	out := make([]historyEntry, len(entries))
	for i, e := range entries {
		out[i] = historyEntry{
			Index:      i,
			Type:       e.Mutation.Type,
			MutationID: e.Mutation.ID,
			User:       e.Mutation.User,
			RecordedAt: e.RecordedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": out,
		"cursor":  log.Cursor(),
	})
}

func (s *Server) handleTimeTravel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/time-travel/")
	index, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	if !s.manager.TimeTravel(r.Context(), index) {
		http.Error(w, "index out of range", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": index})
}

// sanitize strips the user profile out of a snapshot copy.
func sanitize(tree state.Tree) state.Tree {
	user, ok := tree["user"].(map[string]state.Value)
	if ok {
		delete(user, "profile")
	}
	return tree
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing admin response failed", "error", err)
	}
}
