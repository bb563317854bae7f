/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:       X-Request-ID kept or minted (UUID)
  2. RealIP:          Client IP from proxy headers, used for rate limiting
  3. Logger:          Structured request logging
  4. Recoverer:       Panic recovery (500 instead of crash)
  5. Security headers
  6. CORS:            Cross-origin requests for the PWA front-end

ROUTE GROUPS:
  /api/login, /api/preferences   Authenticated (token or credentials)
  /api/data                      Admin credentials
  /icon.svg, /manifest.json      Public assets
  /healthz                       Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: authenticate, requireAdmin
  - cli/serve.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tune the router.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger()))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(withParams)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Post("/login", h.Login)
			r.Post("/preferences", h.UpdatePreferences)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/data", h.Data)
			r.Post("/data", h.Data)
		})
	})

	// Public assets
	r.Get("/icon.svg", h.Icon)
	r.Get("/manifest.json", h.ManifestJSON)
	r.Get("/healthz", h.Health)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Resource not found", Code: "not_found"})
	})

	return r
}
