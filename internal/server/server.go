// Package server provides the HTTP server and routing for packmule.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/rdelgatto/packmule/internal/config"
	"github.com/rdelgatto/packmule/internal/database"
	loadouthandlers "github.com/rdelgatto/packmule/internal/modules/loadout/handlers"
	resultshandlers "github.com/rdelgatto/packmule/internal/modules/results/handlers"
	"github.com/rdelgatto/packmule/internal/scheduler"
)

// Config holds server configuration.
type Config struct {
	Log             zerolog.Logger
	Cfg             *config.Config
	DB              *database.DB
	LoadoutHandlers *loadouthandlers.Handler
	ResultsHandlers *resultshandlers.Handler
	SweepHub        *SweepHub
	SweepJob        scheduler.Job
}

// Server is the HTTP server.
type Server struct {
	router          *chi.Mux
	server          *http.Server
	log             zerolog.Logger
	cfg             *config.Config
	loadoutHandlers *loadouthandlers.Handler
	resultsHandlers *resultshandlers.Handler
	systemHandlers  *SystemHandlers
	streamHandler   *SweepStreamHandler
	sweepJob        scheduler.Job
}

// New creates the HTTP server with its middleware and routes.
func New(cfg Config) *Server {
	s := &Server{
		router:          chi.NewRouter(),
		log:             cfg.Log.With().Str("component", "server").Logger(),
		cfg:             cfg.Cfg,
		loadoutHandlers: cfg.LoadoutHandlers,
		resultsHandlers: cfg.ResultsHandlers,
		systemHandlers:  NewSystemHandlers(cfg.Log, cfg.DB, cfg.Cfg.SolverEngine),
		streamHandler:   NewSweepStreamHandler(cfg.SweepHub, cfg.Log),
		sweepJob:        cfg.SweepJob,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check outside /api so load balancers reach it unauthenticated
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// The sweep stream upgrades to a websocket; it must not sit behind
		// the request timeout.
		r.Get("/sweeps/stream", s.streamHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(2 * time.Minute))

			r.Get("/system", s.systemHandlers.HandleSystemInfo)

			r.Post("/solve", s.loadoutHandlers.HandleSolve)

			r.Get("/runs", s.resultsHandlers.HandleListRuns)
			r.Get("/runs/{id}", s.resultsHandlers.HandleGetRun)
			r.Get("/scenarios/{id}", s.resultsHandlers.HandleGetScenario)

			r.Post("/sweeps", s.handleTriggerSweep)
		})
	})
}

// handleTriggerSweep kicks off a full sweep in the background. Overlapping
// triggers are absorbed by the job's own lock.
func (s *Server) handleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweepJob == nil {
		http.Error(w, "Sweep trigger not configured", http.StatusServiceUnavailable)
		return
	}

	go func() {
		if err := s.sweepJob.Run(); err != nil {
			s.log.Error().Err(err).Msg("Triggered sweep failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "triggered",
		"message": "Sweep started in background",
	}); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode trigger response")
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
