// Package api provides the HTTP API server and handlers for the vision board service.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roomcraft/visionboard/internal/catalog"
	"github.com/roomcraft/visionboard/internal/editor"
	"github.com/roomcraft/visionboard/internal/grid"
	"github.com/roomcraft/visionboard/internal/metrics"
	"github.com/roomcraft/visionboard/internal/ratelimit"
	"github.com/roomcraft/visionboard/internal/service"
	"github.com/roomcraft/visionboard/internal/sse"
	"github.com/roomcraft/visionboard/internal/subscription"
)

// Services groups the business logic used by the API server.
type Services struct {
	Boards        *service.BoardService
	Shares        *service.ShareService
	Catalog       *catalog.Catalog
	Subscriptions *subscription.Service
	Editor        *editor.Manager
}

// HealthCheck probes one dependency for the health endpoint.
type HealthCheck func(ctx context.Context) error

// Options configures the optional parts of the server.
type Options struct {
	AllowedOrigins []string
	// Canvas snaps positions on direct board saves; DefaultCanvas when unset.
	Canvas grid.Canvas
	// MetricsPath mounts the Prometheus handler when metrics are enabled.
	MetricsPath string
	// PublicLimiter throttles unauthenticated share lookups by client IP.
	PublicLimiter *ratelimit.KeyedRateLimiter
	// Checks are reported by GET /health under their map key.
	Checks map[string]HealthCheck
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	tokens     TokenVerifier
	sseManager *sse.Manager
	metrics    *metrics.Manager
	opts       Options
	router     chi.Router
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// sseManager and m may be nil.
func NewServer(services *Services, tokens TokenVerifier, sseManager *sse.Manager, m *metrics.Manager, opts Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services:   services,
		tokens:     tokens,
		sseManager: sseManager,
		metrics:    m,
		opts:       opts,
		router:     router,
		logger:     logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Vision Board API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(requestID(s.logger))
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))
	s.router.Use(s.metrics.Middleware)
	s.router.Use(authMiddleware(s.tokens))
}

func (s *Server) allowedOrigins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}

// registerRoutes configures all HTTP routes.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerProductRoutes()
	s.registerBoardRoutes()
	s.registerSubscriptionRoutes()
	s.registerEditorRoutes()
	s.registerShareRoutes()

	if s.sseManager != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(s.sseManager, ownerFromRequest, s.logger).ServeHTTP)
	}

	if s.metrics != nil && s.opts.MetricsPath != "" {
		s.router.Handle(s.opts.MetricsPath, s.metrics.Handler())
	}
}
