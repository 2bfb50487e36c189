package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/notegest/internal/config"
	"github.com/dgallion1/notegest/internal/memhost"
	"github.com/dgallion1/notegest/internal/pipeline"
	"github.com/dgallion1/notegest/internal/stats"
)

// Server is the HTTP API server for notegest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	bridge       *memhost.Bridge
	stats        *stats.CommitStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. bridge may be nil when
// exports run against a remote host; the host endpoints then answer 404.
func NewServer(orch *pipeline.Orchestrator, bridge *memhost.Bridge, commits *stats.CommitStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		bridge:       bridge,
		stats:        commits,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/host/sessions", s.handleOpenSession)
		r.Post("/api/host/sessions/{sessionID}/sync", s.handleSync)
		r.Delete("/api/host/sessions/{sessionID}", s.handleCloseSession)

		r.Post("/api/exports", s.handleExport)
		r.Get("/api/exports/{jobID}", s.handleExportStatus)
		r.Get("/api/exports/{jobID}/records", s.handleExportRecords)
		r.Get("/api/exports/{jobID}/document", s.handleExportDocument)

		r.Get("/api/stats/commits", s.handleCommitStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
