package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth())
	r.Get("/status", g.handleStatus())
	if g.metrics != nil {
		r.Handle("/metrics", g.metrics)
	}

	// Not mounted without a token or a trigger.
	if g.config.Token != "" && g.trigger != nil {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Token, g.logger))
			r.Post("/api/optimize", g.handleOptimize())
		})
	}

	return r
}
