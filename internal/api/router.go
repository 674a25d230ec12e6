package api

import (
	"net/http"

	"github.com/example/bookstore-orders/internal/api/middleware"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/example/bookstore-orders/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handlers *Handlers, validator middleware.TokenValidator) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", handlers.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(validator))

		r.Post("/", handlers.PlaceOrder)
		r.Get("/mine", handlers.ListMyOrders)
		r.Get("/my-orders", handlers.ListMyOrders)
		r.Get("/{id}", handlers.GetOrder)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(user.RoleAdmin))
			r.Get("/", handlers.ListOrders)
			r.Put("/{id}/status", handlers.UpdateOrderStatus)
		})
	})

	return r
}
