package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otcheredev/ris-imaging-service/internal/cache"
	"github.com/otcheredev/ris-imaging-service/internal/config"
	"github.com/otcheredev/ris-imaging-service/internal/database"
	"github.com/otcheredev/ris-imaging-service/internal/dicomio"
	"github.com/otcheredev/ris-imaging-service/internal/events"
	"github.com/otcheredev/ris-imaging-service/internal/handlers"
	"github.com/otcheredev/ris-imaging-service/internal/middleware"
	"github.com/otcheredev/ris-imaging-service/internal/repository"
	"github.com/otcheredev/ris-imaging-service/internal/services"
	"github.com/otcheredev/ris-imaging-service/internal/storage"
	"github.com/otcheredev/ris-imaging-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting Imaging Ingestion Service")

	// Connect to database
	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize blob cache
	var blobCache cache.Cache
	if cfg.Cache.Enabled && cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		blobCache, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis cache initialized")
	} else {
		blobCache = cache.NewMemoryCache()
		log.Info().Msg("Memory cache initialized")
	}
	defer blobCache.Close()

	// Initialize content store
	contentStore, err := storage.NewFilesystemStore(cfg.Storage.Root)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize content store")
	}

	// Initialize event publisher
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		publisher, err = events.NewRedisPublisher(addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Events.Channel)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize event publisher")
		}
		log.Info().Str("channel", cfg.Events.Channel).Msg("Event publisher initialized")
	}
	defer publisher.Close()

	// Initialize repositories
	studyRepo := repository.NewStudyRepository()
	seriesRepo := repository.NewSeriesRepository()
	instanceRepo := repository.NewInstanceRepository()
	annotationRepo := repository.NewAnnotationRepository()

	// Initialize services
	ingestService := services.NewIngestService(
		studyRepo,
		seriesRepo,
		instanceRepo,
		contentStore,
		dicomio.NewDICOMExtractor(),
		services.NewValidationEngine(),
		services.NewDescriptorAnalyzer(),
		publisher,
		blobCache,
		cfg.Cache.TTL,
	)
	studyService := services.NewStudyService(studyRepo, seriesRepo, instanceRepo, annotationRepo, publisher)
	annotationService := services.NewAnnotationService(annotationRepo, studyRepo, seriesRepo, instanceRepo, publisher)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	ingestHandler := handlers.NewIngestHandler(ingestService)
	studyHandler := handlers.NewStudyHandler(studyService)
	annotationHandler := handlers.NewAnnotationHandler(annotationService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Imaging API
	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion and retrieval
		r.Post("/instances", ingestHandler.Upload)
		r.Get("/instances/{sopInstanceUID}", ingestHandler.Retrieve)
		r.Patch("/instances/{sopInstanceUID}/status", ingestHandler.UpdateStatus)

		// Studies
		r.Post("/studies", studyHandler.Create)
		r.Get("/studies", studyHandler.Search)
		r.Get("/studies/{studyUID}", studyHandler.Get)
		r.Patch("/studies/{studyUID}/workflow", studyHandler.UpdateWorkflow)
		r.Patch("/studies/{studyUID}/validation", studyHandler.UpdateValidation)
		r.Post("/studies/{studyUID}/archive", studyHandler.Archive)
		r.Get("/studies/{studyUID}/series", studyHandler.ListSeries)
		r.Get("/series/{seriesUID}/instances", studyHandler.ListInstances)
		r.Patch("/series/{seriesUID}/status", studyHandler.UpdateSeriesStatus)

		// Annotations
		r.Post("/studies/{studyUID}/annotations", annotationHandler.Create)
		r.Get("/studies/{studyUID}/annotations", annotationHandler.ListByStudy)
		r.Post("/annotations/{id}/submit", annotationHandler.Submit)
		r.Post("/annotations/{id}/approve", annotationHandler.Approve)
		r.Post("/annotations/{id}/reject", annotationHandler.Reject)

		// Administration
		r.Get("/duplicates", studyHandler.Duplicates)
		r.Get("/statistics", studyHandler.Statistics)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Series completion sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				completed, err := studyService.ReconcileSeries(sweepCtx, 100)
				if err != nil {
					log.Error().Err(err).Msg("Series reconcile sweep failed")
					continue
				}
				if completed > 0 {
					log.Info().Int("completed", completed).Msg("Series completed by sweep")
				}
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
