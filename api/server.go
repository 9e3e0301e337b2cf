/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/calculate        Card ranking for one purchase
  /api/cards/*          Catalog cards
  /api/merchants        Merchants and name resolution
  /api/categories       Categories
  /api/catalog/issues   Load-time validation report
  /api/rankings/*       Per-category card leaderboards
  /api/admin/*          Cosmetic overrides
  /api/users/*          Owned cards and usage
  /api/scenarios/*      Demo wallets

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins falls back to the local frontend dev servers.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/calculate", h.Calculate)

		// Catalog routes
		r.Route("/cards", func(r chi.Router) {
			r.Get("/", h.ListCards)
			r.Get("/{id}", h.GetCard)
		})
		r.Get("/merchants", h.ListMerchants)
		r.Get("/categories", h.ListCategories)
		r.Get("/catalog/issues", h.ListCatalogIssues)
		r.Route("/rankings", func(r chi.Router) {
			r.Get("/", h.ListRankingCategories)
			r.Get("/{category}", h.GetRankings)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Put("/cards/{id}/override", h.SaveOverride)
		})

		// Holder routes
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/cards", h.ListOwnedCards)
			r.Post("/cards", h.AddOwnedCard)
			r.Delete("/cards/{cardID}", h.RemoveOwnedCard)
			r.Get("/usage", h.ListUsage)
			r.Post("/usage", h.RecordUsage)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
