// Package web provides the HTTP API for uploading, validating, editing and
// exporting table sets.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/alchemist/internal/config"
	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/JonMunkholm/alchemist/internal/metrics"
	"github.com/JonMunkholm/alchemist/internal/web/middleware"
	"github.com/JonMunkholm/alchemist/internal/workspace"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Engine     *core.Engine
	Normalizer *core.Normalizer
	Store      *workspace.Store
	Limiter    *core.BatchLimiter
	Metrics    *metrics.Service
}

// Server is the HTTP server.
type Server struct {
	cfg        *config.Config
	engine     *core.Engine
	normalizer *core.Normalizer
	store      *workspace.Store
	limiter    *core.BatchLimiter
	metrics    *metrics.Service
	router     *chi.Mux
	server     *http.Server
}

// NewServer creates a server with its middleware and routes in place.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:        cfg,
		engine:     deps.Engine,
		normalizer: deps.Normalizer,
		store:      deps.Store,
		limiter:    deps.Limiter,
		metrics:    deps.Metrics,
		router:     chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger(s.metrics))
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(s.securityHeaders)

	if len(s.cfg.Security.CORSAllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Security.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	if s.cfg.Rate.Enabled {
		s.router.Use(s.rateLimit(newRateLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst)))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}

	uploadLimit := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		// Uploads parse whole workbooks, so they get their own tighter budget.
		uploadLimit = s.rateLimit(newRateLimiter(s.cfg.Rate.UploadLimit, min(s.cfg.Rate.UploadLimit, s.cfg.Rate.Burst)))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/validate", s.handleValidate)

		r.Route("/sessions", func(r chi.Router) {
			r.With(uploadLimit).Post("/", s.handleCreateSession)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.With(uploadLimit).Put("/files", s.handleReplaceFiles)
				r.Get("/findings", s.handleFindings)
				r.Get("/history", s.handleHistory)
				r.Get("/rules", s.handleGetRules)
				r.Put("/rules", s.handlePutRules)
				r.Get("/export", s.handleExport)
				r.Patch("/tables/{table}/rows/{row}", s.handleUpdateCell)
				r.Put("/tables/{table}/rows/{row}", s.handleReplaceRow)
			})
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight upload batches to
// release their slots, then closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if st := s.limiter.Status(); st.Active > 0 {
		slog.Info("waiting for uploads to complete", "active", st.Active)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("uploads did not complete in time", "error", err)
		}
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds hardening headers to every response.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			// The API serves no documents, so nothing may load.
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		next.ServeHTTP(w, r)
	})
}
