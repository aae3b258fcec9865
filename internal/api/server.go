// Package api provides the HTTP API for reviewing and committing clipping
// imports and for reading the committed library.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kindlehubapp/kindlehub/internal/http/response"
	"github.com/kindlehubapp/kindlehub/internal/ratelimit"
	"github.com/kindlehubapp/kindlehub/internal/service"
	"github.com/kindlehubapp/kindlehub/internal/validation"
)

// Services groups the business services used by the API server.
type Services struct {
	Library  *service.LibraryService
	Sessions *service.SessionRegistry
}

// Options configures the HTTP surface around the handlers.
type Options struct {
	Version     string
	CORSOrigins []string
	// RateLimiter limits requests per client IP. Nil disables limiting.
	RateLimiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services  *Services
	validator *validation.Validator
	router    *chi.Mux
	api       huma.API
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, opts Options, logger *slog.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		services:  services,
		validator: validation.New(),
		router:    chi.NewRouter(),
		logger:    logger,
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("KindleHub API", opts.Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(recoverer(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if opts.RateLimiter != nil {
		s.router.Use(RateLimitMiddleware(opts.RateLimiter, s.logger))
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "no route for "+r.URL.Path, s.logger)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r.Method+" not allowed on "+r.URL.Path, s.logger)
	})
}

// setupRoutes registers every huma operation.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerSessionRoutes()
	s.registerBatchRoutes()
	s.registerReviewRoutes()
	s.registerLibraryRoutes()
}
