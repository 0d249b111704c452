package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter wires every route. Admin routes are mounted only when auth
// is configured.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", g.handleRoot())
	r.Get("/health", g.handleHealth())
	r.Get("/stats", g.handleStats())

	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.audit, g.authLimiter))
			r.Get("/api/instances", g.handleInstances())
			r.Get("/ws/audit", g.handleAuditFeed)
			if g.metrics != nil {
				r.Method(http.MethodGet, "/metrics", g.metrics.Handler())
			}
		})
	}

	return r
}
