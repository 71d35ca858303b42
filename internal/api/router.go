package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/vidarx/recovery-backend/internal/api/handlers"
	"github.com/vidarx/recovery-backend/internal/config"
	"github.com/vidarx/recovery-backend/internal/metrics"
	"github.com/vidarx/recovery-backend/internal/middleware"
)

type RouterDeps struct {
	Cfg          config.Config
	Auth         *handlers.AuthHandler
	Transactions *handlers.TransactionsHandler
	Bulk         *handlers.BulkHandler
	AuthMW       *middleware.AuthMiddleware
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.RateLimit(d.Cfg.RateRPS), middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", d.Auth.Login)
		r.Post("/auth/refresh", d.Auth.Refresh)

		r.Route("/transactions", func(r chi.Router) {
			// read-only surface
			r.Get("/", d.Transactions.List)
			r.Get("/{id}", d.Transactions.Get)
			r.Get("/{id}/duplicates", d.Transactions.FindDuplicates)

			// recovery writes the transaction record; ops only
			r.Group(func(r chi.Router) {
				r.Use(d.AuthMW.Auth, middleware.RequireRole("ops"))
				r.Post("/{id}/recover", d.Transactions.Recover)
				r.Post("/bulk-recover", d.Bulk.Recover)
			})
		})
	})

	return r
}
