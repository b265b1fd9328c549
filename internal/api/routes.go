package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the router. metricsHandler, when non-nil, is mounted at
// /metrics.
func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(m.CORS(corsOrigins))
		r.Use(m.RateLimit(rateLimitRPM))

		// The websocket connection must reach the hijackable writer, so it
		// stays outside the timeout and compression wrappers.
		r.Get("/ws", h.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(m.Timeout(15 * time.Second))
			r.Use(middleware.Compress(5, "application/json"))

			r.Get("/events", h.ListEvents)
			r.Get("/markets", h.ListMarkets)
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/categories", h.ListCategories)
		})
	})

	return r
}
