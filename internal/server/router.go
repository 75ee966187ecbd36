package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caresync-io/caresync/internal/server/handlers"
	"github.com/caresync-io/caresync/internal/server/jwt"
	"github.com/caresync-io/caresync/internal/server/metrics"
	"github.com/caresync-io/caresync/internal/server/middleware"
	"github.com/caresync-io/caresync/internal/server/storage/sqlite"
)

// NewRouter assembles the HTTP surface: public auth and health endpoints,
// token-protected task and upload endpoints, and the Prometheus scrape
// endpoint.
func NewRouter(logger *slog.Logger, store *sqlite.Storage, tokens *jwt.Service, m *metrics.Metrics, version string) *chi.Mux {
	authHandler := handlers.NewAuthHandler(logger, store, tokens)
	tasksHandler := handlers.NewTasksHandler(logger, store, m)
	uploadsHandler := handlers.NewUploadsHandler(logger, store, store, m)
	healthHandler := handlers.NewHealthHandler(logger, store.DB(), version)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(logger, tokens))

			r.Get("/tasks", tasksHandler.List)
			r.Post("/tasks", tasksHandler.Create)
			r.Post("/tasks/{taskID}/transition", tasksHandler.Transition)

			r.Post("/evidence", uploadsHandler.UploadEvidence)
			r.Post("/audit", uploadsHandler.UploadAudit)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
