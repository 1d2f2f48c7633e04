/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, included in error logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Timeout:    Per-request deadline, propagated through ctx to the stores
  5. CORS:       Cross-origin requests for a counter frontend

ROUTE GROUPS:
  /health               Liveness
  /api/customers/*      Customer registration
  /api/products/*       Product lookups and stock trail
  /api/sales/*          Sale lifecycle
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. Each request
// gets requestTimeout to finish.
func NewRouter(h *Handler, requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Post("/", h.RegisterCustomer)
			r.Get("/{taxID}", h.GetCustomer)
			r.Put("/{taxID}", h.UpdateCustomer)
		})

		// Product routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/{code}", h.GetProduct)
			r.Get("/{code}/movements", h.GetMovements)
			r.Post("/{code}/release", h.ReleaseStock)
		})

		// Sale routes
		r.Route("/sales", func(r chi.Router) {
			r.Post("/", h.OpenSale)
			r.Get("/{id}", h.GetSale)
			r.Post("/{id}/items", h.AddLineItem)
			r.Post("/{id}/close", h.CloseSale)
			r.Get("/{id}/discount", h.GetDiscount)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
