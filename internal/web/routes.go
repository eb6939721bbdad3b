package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/sigboard/internal/web/handlers"
	"github.com/kozaktomas/sigboard/internal/web/middleware"
)

// requestTimeout bounds synchronous API requests. Job event streams are not limited.
const requestTimeout = 2 * time.Minute

func (s *Server) setupRoutes() {
	uploadsHandler := handlers.NewUploadsHandler(s.deps.Uploads, s.config.Upload.MaxBytes)
	postsHandler := handlers.NewPostsHandler(s.deps.Uploads, s.deps.Repo, s.deps.Searcher, s.deps.Content)
	maintenanceHandler := handlers.NewMaintenanceHandler(s.jobManager, s.deps.Repo, s.deps.Content, s.config.Maintenance)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			// Expensive routes share the per-client rate limit
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(s.rateLimiter))

				r.Post("/uploads", uploadsHandler.Create)
				r.Post("/posts/reverse-search", postsHandler.ReverseSearch)
				r.Get("/posts/{id}/similar", postsHandler.Similar)
			})

			// Uploads
			r.Get("/uploads/{token}/thumbnail", uploadsHandler.Thumbnail)
			r.Delete("/uploads/{token}", uploadsHandler.Delete)

			// Post signatures
			r.Put("/posts/{id}/signature", postsHandler.PutSignature)
			r.Get("/posts/{id}/signature", postsHandler.GetSignature)
			r.Delete("/posts/{id}/signature", postsHandler.DeleteSignature)

			// Maintenance
			r.Get("/maintenance/stats", maintenanceHandler.Stats)
			r.Post("/maintenance/recompute-words", maintenanceHandler.RecomputeWords)
			r.Post("/maintenance/recompute-signatures", maintenanceHandler.RecomputeSignatures)
			r.Get("/maintenance/jobs", maintenanceHandler.ListJobs)
			r.Get("/maintenance/jobs/{jobId}", maintenanceHandler.GetJob)
			r.Delete("/maintenance/jobs/{jobId}", maintenanceHandler.CancelJob)
		})

		r.Get("/maintenance/jobs/{jobId}/events", maintenanceHandler.Events)
	})
}
