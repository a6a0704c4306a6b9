/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router and middleware stack of the loan engine's
  host process. The engine itself is a library; this is the thin
  transport the surrounding loan-service layer talks to.

ROUTE GROUPS:
  /api/strategies                 Allocation strategy catalog
  /api/loans/{id}/schedule        Installment snapshot (save/load)
  /api/loans/{id}/transactions    Allocate repayments, waivers, chargebacks
  /healthz                        Liveness

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: startup and configuration
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/strategies", h.ListStrategies)

		r.Route("/loans/{id}", func(r chi.Router) {
			r.Put("/schedule", h.SaveSchedule)
			r.Get("/schedule", h.GetSchedule)
			r.Post("/transactions", h.ApplyTransaction)
			r.Get("/transactions", h.ListTransactions)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
