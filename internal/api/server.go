// Package api provides the HTTP API server and handlers for the DeviceDock application.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/devicedock/devicedock-server/internal/config"
	"github.com/devicedock/devicedock-server/internal/media/images"
	"github.com/devicedock/devicedock-server/internal/ratelimit"
	"github.com/devicedock/devicedock-server/internal/store/sqlite"
)

// apiVersion is reported in the OpenAPI document.
const apiVersion = "1.0.0"

// Server holds dependencies for HTTP handlers.
type Server struct {
	config   *config.Config
	store    *sqlite.Store
	services *Services
	storage  *images.Storage
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	cfg *config.Config,
	store *sqlite.Store,
	services *Services,
	storage *images.Storage,
	logger *slog.Logger,
) *Server {
	s := &Server{
		config:   cfg,
		store:    store,
		services: services,
		storage:  storage,
		router:   chi.NewRouter(),
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupAPI()
	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Brute-force protection on credential endpoints: 20 attempts per
	// minute per client IP.
	authLimiter := ratelimit.New(20.0/60.0, 10)
	s.router.Use(authRateLimit(authLimiter, s.logger))
}

// setupAPI creates the huma API with the envelope and error conventions.
func (s *Server) setupAPI() {
	cfg := huma.DefaultConfig("DeviceDock API", apiVersion)
	cfg.Info.Description = "Multi-tenant device registry with shared tag and sensor vocabularies"
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO v4.local",
		},
	}
	cfg.Transformers = append(cfg.Transformers, EnvelopeTransformer)

	RegisterErrorHandler()

	s.api = humachi.New(s.router, cfg)
}

// registerRoutes registers all huma operations.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerDeviceRoutes()
	s.registerTagRoutes()
	s.registerSensorRoutes()
	s.registerImageRoutes()
}

// authRateLimit limits requests to the credential endpoints by client IP.
func authRateLimit(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/v1/auth/") {
				next.ServeHTTP(w, r)
				return
			}

			key := getClientIP(r)
			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded", "ip", key, "path", r.URL.Path)
				writeTooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
