package api

import (
	"net/http"
	"time"

	"cptracker/internal/api/handler"
	"cptracker/internal/app/service"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(
	submissionService *service.SubmissionService,
	statsService *service.StatsService,
	catalogService *service.CatalogService,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		submissionHandler := handler.NewSubmissionHandler(submissionService)
		v1.Route("/submissions", submissionHandler.RegisterRoutes)

		statsHandler := handler.NewStatsHandler(statsService, catalogService)
		statsHandler.RegisterRoutes(v1)

		catalogHandler := handler.NewCatalogHandler(catalogService)
		catalogHandler.RegisterRoutes(v1)
	})

	return r
}
