// Package web provides the HTTP API for project definitions and validated
// dataset ingestion.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/JonMunkholm/validata/internal/auth"
	"github.com/JonMunkholm/validata/internal/config"
	"github.com/JonMunkholm/validata/internal/core"
	"github.com/JonMunkholm/validata/internal/web/middleware"
)

// Server is the HTTP server of the ingestion service.
type Server struct {
	service *core.Service
	cfg     *config.Config
	tokens  auth.TokenValidator
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config, tokens auth.TokenValidator) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		tokens:  tokens,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}

	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Security.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "HX-Request"},
	}).Handler)

	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/validations", s.handleListValidations)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(s.tokens))
			r.Use(withRequestMetadata)

			r.Get("/projects", s.handleListProjects)
			r.Put("/projects", s.handleCreateProject)
			r.Delete("/projects", s.handleDeleteProjects)
			r.Get("/projects/{id}", s.handleGetProject)
			r.Put("/projects/{id}", s.handleUpdateProject)
			r.Get("/projects/{id}/ingestions", s.handleListIngestions)
			r.Get("/uploads/status", s.handleUploadQueueStatus)

			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled && s.cfg.Rate.UploadLimit > 0 {
					r.Use(newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware)
				}
				r.Post("/projects/{id}/upload", s.handleUploadCreate)
				r.Post("/projects/{id}/preview", s.handlePreview)
				r.Post("/upload/{id}", s.handleUploadReuse)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}
