package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/interest/internal/engine"
	"github.com/lazypower/interest/internal/logger"
	"github.com/lazypower/interest/internal/metrics"
)

// maxBodyBytes bounds request bodies; batches are the largest payloads.
const maxBodyBytes = 4 << 20

// Server is the interest HTTP API server.
type Server struct {
	engine  *engine.Engine
	log     *logger.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over eng.
func New(eng *engine.Engine, log *logger.Logger, version string) *Server {
	s := &Server{
		engine:  eng,
		log:     logger.OrNop(log).With("component", "server"),
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.requestLog)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/contents", s.handlePutContent)
		r.Post("/interactions", s.handleRecord)
		r.Post("/interactions/batch", s.handleRecordBatch)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/scores", s.handleScores)
			r.Get("/activity", s.handleActivity)
			r.Post("/decay", s.handleDecayUser)
		})

		r.Get("/topics/{topic}/related", s.handleRelated)
		r.Get("/relationships", s.handleRelationship)
		r.Post("/maintenance/graph", s.handleMaintainGraph)
	})
	r.Handle("/metrics", metrics.Handler())

	s.router = r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	db := s.engine.DB
	dbOK := db.PingContext(r.Context()) == nil

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
