package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cptracker/internal/api"
	"cptracker/internal/app/service"
	"cptracker/internal/app/worker"
	"cptracker/internal/domain/repository"
	"cptracker/internal/platform/cache"
	"cptracker/internal/platform/config"
	"cptracker/internal/platform/database"

	"github.com/lmittmann/tint"
)

func main() {
	// 1. Load Configuration
	config.Load()

	// 2. Logging
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.Kitchen,
	})))
	slog.Info("configuration loaded")

	// 3. Database
	database.Connect()
	defer database.Close()
	if err := database.Migrate(context.Background()); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}
	slog.Info("database connected")

	// 4. Redis
	cache.ConnectRedis()
	defer cache.CloseRedis()
	statsCache := cache.NewStatsCache(cache.RDB, config.AppConfig.StatsCacheTTL)
	slog.Info("redis connected")

	// 5. Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	platformRepo := repository.NewPgPlatformRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	tagRepo := repository.NewPgTagRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	auditRepo := repository.NewPgAuditRepository(database.DB)
	statsRepo := repository.NewPgStatsRepository(database.DB)

	// 6. Services
	submissionService := service.NewSubmissionService(
		database.DB, submissionRepo, userRepo, problemRepo, auditRepo, statsCache,
		config.AppConfig.IngestMaxRetries,
	)
	statsService := service.NewStatsService(
		database.DB, statsRepo, userRepo, submissionRepo, statsCache,
		config.AppConfig.OverviewTrendWeeks,
	)
	catalogService := service.NewCatalogService(
		database.DB, userRepo, platformRepo, problemRepo, tagRepo, submissionRepo, auditRepo, statsCache,
	)

	// 7. Scheduled recompute
	recomputeWorker := worker.NewRecomputeWorker(statsService, config.AppConfig.RecomputeInterval)
	recomputeWorker.Start()
	defer recomputeWorker.Stop()

	// 8. Router & HTTP Server
	router := api.NewRouter(submissionService, statsService, catalogService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", config.AppConfig.APIPort, err)
		}
	}()

	<-stop

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	slog.Info("server stopped gracefully")
}
