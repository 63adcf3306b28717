package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wardenhq/warden/internal/logger"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/panel/api/auth"
	"github.com/wardenhq/warden/pkg/panel/api/handlers"
	apiMiddleware "github.com/wardenhq/warden/pkg/panel/api/middleware"
	"github.com/wardenhq/warden/pkg/panel/engine"
	"github.com/wardenhq/warden/pkg/panel/store"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - POST /api/v1/auth/login - User authentication
//   - POST /api/v1/auth/refresh - Token refresh
//   - GET /api/v1/auth/me - Current user info
//   - /api/v1/servers/* - Server provisioning and lifecycle
//   - POST /api/v1/servers/{id}/power - Start/stop/restart
//   - POST /api/v1/servers/{id}/transition - Transition completion (admin only)
//   - /api/v1/nodes/* - Node registry management (admin only)
//   - /api/v1/plans/* - Resource plan management (admin only)
//   - /api/v1/users/* - User management (admin only)
func NewRouter(eng *engine.Engine, st *store.GORMStore, jwtService *auth.JWTService, m *metrics.EngineMetrics, version string) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(m))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health routes - unauthenticated
	healthHandler := handlers.NewHealthHandler(st, version)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(st, jwtService)
	serverHandler := handlers.NewServerHandler(eng, st)
	nodeHandler := handlers.NewNodeHandler(st)
	planHandler := handlers.NewPlanHandler(st)
	userHandler := handlers.NewUserHandler(st)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes - mostly unauthenticated
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.JWTAuth(jwtService))
				r.Get("/me", authHandler.Me)
			})
		})

		// Protected routes - require authentication
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))

			// Server provisioning and lifecycle. Per-server authorization
			// happens inside the engine, not at the routing layer.
			r.Route("/servers", func(r chi.Router) {
				r.Post("/", serverHandler.Provision)
				r.Get("/", serverHandler.List)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", serverHandler.Get)
					r.Patch("/", serverHandler.Update)
					r.Delete("/", serverHandler.Delete)
					r.Post("/power", serverHandler.Power)
					r.Get("/events", serverHandler.Events)

					// Admin-only operations
					r.Group(func(r chi.Router) {
						r.Use(apiMiddleware.RequireAdmin())

						r.Post("/suspend", serverHandler.Suspend)
						r.Post("/resume", serverHandler.Resume)
						// Node daemons report runtime outcomes here.
						r.Post("/transition", serverHandler.CompleteTransition)
					})
				})
			})

			// Node registry (admin only)
			r.Route("/nodes", func(r chi.Router) {
				r.Use(apiMiddleware.RequireAdmin())

				r.Post("/", nodeHandler.Create)
				r.Get("/", nodeHandler.List)
				r.Get("/{id}", nodeHandler.Get)
				r.Patch("/{id}", nodeHandler.Update)
				r.Delete("/{id}", nodeHandler.Delete)
			})

			// Resource plans (admin only)
			r.Route("/plans", func(r chi.Router) {
				r.Use(apiMiddleware.RequireAdmin())

				r.Post("/", planHandler.Create)
				r.Get("/", planHandler.List)
				r.Get("/{id}", planHandler.Get)
				r.Delete("/{id}", planHandler.Delete)
			})

			// User management (admin only)
			r.Route("/users", func(r chi.Router) {
				r.Use(apiMiddleware.RequireAdmin())

				r.Post("/", userHandler.Create)
				r.Get("/", userHandler.List)
				r.Get("/{id}", userHandler.Get)
				r.Patch("/{id}", userHandler.Update)
				r.Delete("/{id}", userHandler.Delete)
			})
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs requests using the internal logger and records
// request duration metrics.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(m *metrics.EngineMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			// Seed the log context so handlers and the engine log with
			// the same correlation fields.
			lc := logger.NewLogContext(requestID, r.RemoteAddr)
			ctx := logger.WithContext(r.Context(), lc)
			r = r.WithContext(ctx)

			logger.Debug("API request started",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			m.ObserveRequest(r.Method+" "+route, strconv.Itoa(ww.Status()), duration)

			logArgs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", duration.String(),
			}

			// Log healthcheck requests at DEBUG to avoid polluting logs
			if isHealthPath(r.URL.Path) {
				logger.Debug("API request completed", logArgs...)
			} else {
				logger.Info("API request completed", logArgs...)
			}
		})
	}
}
