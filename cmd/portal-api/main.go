package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/halcyon-intra/portal-events-api/internal/handler"
	"github.com/halcyon-intra/portal-events-api/internal/middleware"
	"github.com/halcyon-intra/portal-events-api/internal/notifier"
	"github.com/halcyon-intra/portal-events-api/internal/reminder"
	"github.com/halcyon-intra/portal-events-api/internal/repository"
	"github.com/halcyon-intra/portal-events-api/internal/service"
	"github.com/halcyon-intra/portal-events-api/pkg/cache"
	"github.com/halcyon-intra/portal-events-api/pkg/config"
	"github.com/halcyon-intra/portal-events-api/pkg/database"
	"github.com/halcyon-intra/portal-events-api/pkg/logger"
	corsmiddleware "github.com/halcyon-intra/portal-events-api/pkg/middleware/cors"
	reqidmiddleware "github.com/halcyon-intra/portal-events-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis only accelerates listings; the API serves without it.
	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, listings uncached", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	occurrenceRepo := repository.NewOccurrenceRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	listingCache := repository.NewListingCache(redisClient, cfg.Events.ListCacheTTL)

	metricsSvc := service.NewMetricsService()

	var dispatcher *notifier.Dispatcher
	var sink interface{ Enqueue(notifier.Message) error }
	if cfg.Notifier.Enabled {
		dispatcher = notifier.NewDispatcher(cfg.Notifier, logr)
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
		sink = dispatcher
	}

	conflictSvc := service.NewConflictDetector(occurrenceRepo, logr, metricsSvc)
	resourceSvc := service.NewResourceService(resourceRepo, nil, logr)
	eventSvc := service.NewEventService(occurrenceRepo, conflictSvc, resourceSvc, listingCache, cfg.Events, nil, logr, metricsSvc)
	registrationSvc := service.NewRegistrationService(registrationRepo, occurrenceRepo, sink, nil, logr, metricsSvc)

	if cfg.Reminder.Enabled && dispatcher != nil {
		sweeper := reminder.NewSweeper(occurrenceRepo, registrationRepo, dispatcher, cfg.Reminder, logr)
		if err := sweeper.Start(ctx); err != nil {
			logr.Sugar().Fatalw("failed to start reminder sweeper", "error", err)
		}
		defer sweeper.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	handler.RegisterRoutes(r, cfg, handler.Handlers{
		Events:    handler.NewEventHandler(eventSvc, registrationSvc),
		Admin:     handler.NewAdminEventHandler(eventSvc, registrationSvc),
		Resources: handler.NewResourceHandler(resourceSvc),
		Metrics:   metricsSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
