package api

import (
	"log/slog"
	"net/http"

	"expenses-server/src/db"
	"expenses-server/src/events"
	"expenses-server/src/handlers"
	"expenses-server/src/logging"
	"expenses-server/src/metrics"
	"expenses-server/src/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	JWTSecret   string
	CORSOrigins []string
	ReadOnly    bool
}

func NewRouter(store db.Store, publisher events.Publisher, logger *slog.Logger, opts Options) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(logging.Middleware(logger))
	// outside Recoverer so panics are counted as 500s
	r.Use(metrics.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(opts.CORSOrigins))

	r.Get("/health", handlers.Health())
	r.Get("/ready", handlers.Ready(store))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Protected routes
		r.With(middleware.JWTAuthMiddleware(opts.JWTSecret), middleware.ReadOnlyMiddleware(opts.ReadOnly)).Group(func(r chi.Router) {
			r.Get("/expenses", handlers.ListExpenses(store))
			r.Post("/expenses", handlers.CreateExpense(store, publisher))
			r.Get("/expenses/total-spent", handlers.TotalSpent(store))
			r.Get("/expenses/{id:[0-9]+}", handlers.GetExpense(store))
			r.Delete("/expenses/{id:[0-9]+}", handlers.DeleteExpense(store, publisher))
		})

		// Super Admin Routes
		r.With(middleware.JWTAuthMiddleware(opts.JWTSecret), middleware.SuperAdminMiddleware).Group(func(r chi.Router) {
			r.Get("/admin/expenses", handlers.AdminListExpenses(store))
			r.Post("/admin/cache/clear", handlers.ClearCache(store))
		})
	})

	return r
}
