/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack, and the route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for local clients

ROUTE GROUPS:
  /api/habits/*   Habit registry
  /api/events/*   Event append and soft delete
  /api/users/*    Streak reads, day close, recompute
  /api/sync/*     Outbox / ack / remote ingest (transport surface)
  /api/admin/*    Backfill trigger

SECURITY NOTE:
  No authentication middleware. The server trusts its local clients; put a
  gateway in front for anything else.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/habits", func(r chi.Router) {
			r.Post("/", h.CreateHabit)
			r.Get("/{habitID}/progress", h.GetProgress)
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.AppendEvent)
			r.Delete("/{id}", h.DeleteEvent)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/streak", h.GetStreak)
			r.Post("/streak/recalculate", h.RecalculateStreak)
			r.Post("/days/{date}/close", h.CloseDay)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Get("/outbox", h.GetOutbox)
			r.Post("/ack", h.AckSynced)
			r.Post("/ingest", h.IngestRemote)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/backfill", h.RunBackfill)
		})
	})

	return r
}
