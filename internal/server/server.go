// Package server exposes the resolution engine over HTTP: observation
// ingestion, entity reads, consolidation triggers, and a websocket stream of
// engine events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/latticehq/lattice/internal/config"
	"github.com/latticehq/lattice/internal/engine"
	"github.com/latticehq/lattice/internal/storage"
	"github.com/latticehq/lattice/pkg/types"
)

// Server wires the engine and store into an http.Server.
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	store  storage.EntityStore
	hub    *WebSocketHub
	log    zerolog.Logger
}

// New creates a server. The hub is created but not started; Start runs it.
func New(cfg *config.Config, eng *engine.Engine, store storage.EntityStore, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		engine: eng,
		store:  store,
		hub:    NewWebSocketHub(logger),
		log:    logger.With().Str("component", "server").Logger(),
	}
	s.hub.BridgeEvents(eng.Events())
	return s
}

// Start begins serving and returns the actual listen address (useful with
// port 0 in tests). The server shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) (string, error) {
	go s.hub.Run()

	handler := RateLimitMiddleware(s.Handler(), NewRateLimiter(10.0, 20))
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()
	s.log.Info().Str("addr", actualAddr).Msg("http server listening")

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("http server shutdown failed")
		}
		s.hub.Stop()
	}()

	return actualAddr, nil
}

// Handler builds the route tree without starting a listener.
func (s *Server) Handler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/observations", s.handleObservations)
	apiMux.HandleFunc("/api/entities", s.handleListEntities)
	apiMux.HandleFunc("/api/entities/{id}", s.handleGetEntity)
	apiMux.HandleFunc("/api/consolidate", s.handleConsolidate)
	apiMux.HandleFunc("/api/events", s.handleEvents)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/api/", RequireAuth(apiMux, s.cfg))
	mux.Handle("/ws", s.hub)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleObservations ingests one source document's extracted mentions.
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var doc types.SourceDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if doc.SourceID == "" {
		writeError(w, http.StatusBadRequest, "source_id is required")
		return
	}

	report, err := s.engine.IngestDocument(r.Context(), doc)
	if err != nil {
		s.log.Error().Err(err).Str("source", doc.SourceID).Msg("ingestion failed")
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	var requested []types.EntityType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := types.EntityType(raw)
		if !types.IsValidEntityType(t) {
			writeError(w, http.StatusBadRequest, "unknown entity type")
			return
		}
		requested = []types.EntityType{t}
	} else {
		requested = types.AllEntityTypes
	}

	out := make([]*types.Entity, 0)
	for _, t := range requested {
		entities, err := s.store.ListByType(r.Context(), t)
		if err != nil {
			s.log.Error().Err(err).Str("type", string(t)).Msg("listing entities failed")
			writeError(w, http.StatusInternalServerError, "listing entities failed")
			return
		}
		out = append(out, entities...)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entities": out, "count": len(out)})
}

// handleGetEntity returns one entity and records the read as an access on
// its active facts, which feeds the decay curve.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	id := r.PathValue("id")
	entity, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entity not found")
			return
		}
		s.log.Error().Err(err).Str("entity", id).Msg("entity read failed")
		writeError(w, http.StatusInternalServerError, "entity read failed")
		return
	}

	var factIDs []string
	for _, f := range entity.ActiveFacts() {
		factIDs = append(factIDs, f.ID)
	}
	if err := s.engine.Touch(r.Context(), factIDs); err != nil {
		s.log.Warn().Err(err).Str("entity", id).Msg("recording access failed")
	}

	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	report, err := s.engine.Consolidate(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("consolidation failed")
		writeError(w, http.StatusInternalServerError, "consolidation failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &limit); err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": s.engine.Events().Recent(limit)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
