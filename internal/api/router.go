package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"automationdash/internal/core"
	"automationdash/internal/engine"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	dashboard  *engine.Dashboard
	mcpHandler http.Handler
	metrics    http.Handler
	palette    core.Palette
	logger     *slog.Logger
	authToken  string
}

// Options configures optional surfaces of the server.
type Options struct {
	AuthToken string
	// MCPHandler is mounted at /mcp when set.
	MCPHandler http.Handler
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Palette core.Palette
}

// NewServer constructs the dashboard HTTP server.
func NewServer(addr string, dashboard *engine.Dashboard, logger *slog.Logger, opts Options) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	palette := opts.Palette
	if palette == nil {
		palette = core.DefaultPalette()
	}

	s := &Server{
		router:     router,
		dashboard:  dashboard,
		mcpHandler: opts.MCPHandler,
		metrics:    opts.Metrics,
		palette:    palette,
		logger:     logger,
		authToken:  opts.AuthToken,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	if s.mcpHandler != nil {
		mcpHandler := s.mcpHandler
		if s.authToken != "" {
			mcpHandler = AuthMiddleware(s.authToken)(mcpHandler)
		}
		s.router.Handle("/mcp", mcpHandler)
	}

	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Post("/cron/describe", s.handleCronDescribe)

		r.Route("/automations", func(r chi.Router) {
			r.Get("/", s.handleListAutomations)
			r.Post("/", s.handleCreateAutomation)
			r.Post("/refresh", s.handleRefreshAutomations)
			r.Put("/filter", s.handleSetFilter)

			r.Route("/{automationID}", func(r chi.Router) {
				r.Get("/", s.handleGetAutomation)
				r.Patch("/", s.handleUpdateAutomation)
				r.Delete("/", s.handleDeleteAutomation)
				r.Post("/pause", s.handlePauseAutomation)
				r.Post("/resume", s.handleResumeAutomation)
				r.Post("/trigger", s.handleTriggerAutomation)
			})
		})

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", s.handleGetSelection)
			r.Put("/", s.handleOpenSelection)
			r.Delete("/", s.handleCloseSelection)
			r.Post("/toggle", s.handleToggleSelection)
			r.Post("/refresh", s.handleRefreshSelection)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"busy":        s.dashboard.Orchestrator.Busy(),
		"automations": s.dashboard.Registry.Total(),
	})
}
