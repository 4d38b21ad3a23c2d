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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stockflow/stockflow-backend/internal/stockout/consumers"
	"github.com/stockflow/stockflow-backend/internal/stockout/events"
	"github.com/stockflow/stockflow-backend/internal/stockout/handler"
	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/internal/stockout/service"
	"github.com/stockflow/stockflow-backend/pkg/cache"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("stockout-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("stockout-service", cfg.Server.Environment)
	log.Info().Msg("starting Stock-Out Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	redisCache, err := cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisCache.Close()

	publisher, err := events.NewStockOutEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Repositories
	unitRepo := repository.NewUnitRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	processedRepo := repository.NewProcessedItemRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	completionRepo := repository.NewCompletionRepository(db, unitRepo, processedRepo, inventoryRepo)

	// Services
	resolverSvc := service.NewResolverService(unitRepo, referenceRepo, redisCache, log)
	processorSvc := service.NewProcessorService(resolverSvc, requestRepo, processedRepo, publisher, log)
	completionSvc := service.NewCompletionService(requestRepo, processedRepo, unitRepo, referenceRepo, completionRepo, inventoryRepo, resolverSvc, publisher, log)
	requestSvc := service.NewRequestService(requestRepo, processedRepo, publisher, log)
	reservationSvc := service.NewReservationService(reservationRepo, publisher, log)
	dashboardSvc := service.NewDashboardService(inventoryRepo, log)

	// Handlers
	scanHandler := handler.NewScanHandler(resolverSvc, processorSvc, log)
	requestHandler := handler.NewRequestHandler(requestSvc, processorSvc, completionSvc, log)
	reservationHandler := handler.NewReservationHandler(reservationSvc, log)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, log)

	// Projection consumer keeps the inventory summary in step with deductions
	projectionConsumer, err := consumers.NewProjectionConsumer(rmq, inventoryRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create projection consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := projectionConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start projection consumer")
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.ActorMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Name", "X-User-Email"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "stockout-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
			"redis":    redisCache.Health(),
		})
	})

	r.Route("/api/v1/stockout", func(r chi.Router) {
		r.Get("/scan/{barcode}", scanHandler.Resolve)

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", requestHandler.List)
			r.Post("/", requestHandler.Create)
			r.Get("/{id}", requestHandler.Get)
			r.Get("/{id}/progress", requestHandler.Progress)
			r.Get("/{id}/processed-items", requestHandler.ProcessedItems)
			r.Get("/{id}/audit-trail", requestHandler.AuditTrail)
			r.Post("/{id}/validate-scan", scanHandler.ValidateScan)
			r.Post("/{id}/process", scanHandler.ProcessScan)
			r.Post("/{id}/complete", requestHandler.Complete)
			r.Post("/{id}/reject", requestHandler.Reject)
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", reservationHandler.List)
			r.Post("/", reservationHandler.Create)
			r.Get("/{id}", reservationHandler.Get)
			r.Put("/{id}", reservationHandler.Update)
			r.Post("/{id}/convert", reservationHandler.Convert)
			r.Post("/{id}/release", reservationHandler.Release)
		})

		r.Get("/dashboard/summary", dashboardHandler.Summary)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
