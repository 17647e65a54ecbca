package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/chapter-points-api/api/swagger"
	"github.com/noah-isme/chapter-points-api/internal/handler"
	"github.com/noah-isme/chapter-points-api/internal/middleware"
	"github.com/noah-isme/chapter-points-api/internal/models"
	"github.com/noah-isme/chapter-points-api/internal/repository"
	"github.com/noah-isme/chapter-points-api/internal/service"
	"github.com/noah-isme/chapter-points-api/pkg/cache"
	"github.com/noah-isme/chapter-points-api/pkg/config"
	"github.com/noah-isme/chapter-points-api/pkg/database"
	"github.com/noah-isme/chapter-points-api/pkg/export"
	"github.com/noah-isme/chapter-points-api/pkg/jobs"
	"github.com/noah-isme/chapter-points-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/chapter-points-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/chapter-points-api/pkg/middleware/requestid"
)

// @title Chapter Points API
// @version 1.0.0
// @description Gamification points ledger: awards, totals, leaderboards and reconciliation.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var cacheClient redis.UniversalClient
	if cfg.Leaderboard.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable; leaderboard cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheClient = client
		}
	}

	metrics := service.NewMetricsService()
	validate := service.NewValidator()

	definitionRepo := repository.NewPointDefinitionRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	aggregateRepo := repository.NewAggregateRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	cacheRepo := repository.NewCacheRepository(cacheClient, "points", logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Leaderboard.CacheTTL, logr, cacheClient != nil)
	catalogSvc := service.NewPointCatalogService(definitionRepo, validate, logr)
	awardSvc := service.NewAwardService(catalogSvc, ledgerRepo, aggregateRepo, cacheSvc, metrics, logr)
	reconcileSvc := service.NewReconciliationService(ledgerRepo, aggregateRepo, cacheSvc, metrics, logr)
	reconcileSvc.SetRepairGrace(cfg.Reconcile.RepairGrace)
	leaderboardSvc := service.NewLeaderboardService(aggregateRepo, ledgerRepo, reconcileSvc, memberRepo, cacheSvc, metrics, logr,
		service.LeaderboardConfig{DefaultLimit: cfg.Leaderboard.DefaultLimit, CacheTTL: cfg.Leaderboard.CacheTTL},
		export.NewCSVExporter(), export.NewPDFExporter())
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, ClockSkew: 30 * time.Second})

	hooks := service.NewEventHooks(awardSvc, nil, logr)
	retryQueue := jobs.NewQueue("award-retry", hooks.HandleRetry, jobs.QueueConfig{
		Workers:    cfg.AwardRetry.Workers,
		BufferSize: cfg.AwardRetry.BufferSize,
		MaxRetries: cfg.AwardRetry.MaxRetries,
		RetryDelay: cfg.AwardRetry.RetryDelay,
		Logger:     logr,
		OnDrop: func(job jobs.Job, err error) {
			if req, ok := job.Payload.(models.AwardRequest); ok {
				logr.Error("award abandoned after retries; ledger and aggregate unchanged",
					zap.String("user_id", req.UserID),
					zap.String("point_key", req.PointKey),
					zap.String("source_type", string(req.SourceType)),
					zap.String("source_id", req.SourceID),
					zap.Error(err))
			}
		},
	})
	hooks.SetRetryQueue(retryQueue)
	retryQueue.Start(ctx)
	defer retryQueue.Stop()

	if cfg.Reconcile.Enabled {
		scheduler, err := service.NewReconciliationScheduler(reconcileSvc, service.ReconcileSchedule{
			Interval:   cfg.Reconcile.Interval,
			AutoRepair: cfg.Reconcile.AutoRepair,
		}, logr)
		if err != nil {
			logr.Fatal("failed to create reconciliation scheduler", zap.Error(err))
		}
		scheduler.Start()
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logr.Warn("reconciliation scheduler stop", zap.Error(err))
			}
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	deps := map[string]handler.Pinger{"postgres": db}
	if cacheClient != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return cacheClient.Ping(ctx).Err() })
	}
	metricsHandler := handler.NewMetricsHandler(metrics, deps)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	pointsHandler := handler.NewPointsHandler(leaderboardSvc, validate)
	definitionHandler := handler.NewPointDefinitionHandler(catalogSvc)
	awardHandler := handler.NewAwardHandler(awardSvc, hooks, validate)
	reconcileHandler := handler.NewReconciliationHandler(reconcileSvc, validate)

	admins := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	api := r.Group(cfg.APIPrefix)

	internal := api.Group("/internal", middleware.InternalToken(cfg.Internal.Token))
	internal.POST("/awards", awardHandler.Award)
	internal.POST("/events/:event", awardHandler.Event)

	points := api.Group("/points", middleware.JWT(authSvc))
	points.GET("/users/:userId/totals/:pointKey", middleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin), "SELF"), pointsHandler.Total)
	points.GET("/users/:userId/summary", middleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin), "SELF"), pointsHandler.Summary)
	points.GET("/users/:userId/history", middleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin), "SELF"), pointsHandler.History)
	points.GET("/leaderboard", pointsHandler.Leaderboard)
	points.GET("/leaderboard/export", admins, pointsHandler.ExportLeaderboard)

	definitions := points.Group("/definitions", admins)
	definitions.GET("", definitionHandler.List)
	definitions.POST("", definitionHandler.Create)
	definitions.PUT("/:key", definitionHandler.Update)
	definitions.DELETE("/:key", definitionHandler.Delete)

	reconciliation := points.Group("/reconciliation", admins)
	reconciliation.GET("/drift", reconcileHandler.Drift)
	reconciliation.POST("/repair", reconcileHandler.Repair)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
