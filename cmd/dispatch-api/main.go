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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dispatch-api/api/swagger"
	"github.com/noah-isme/dispatch-api/internal/dispatch"
	"github.com/noah-isme/dispatch-api/internal/handler"
	internalmiddleware "github.com/noah-isme/dispatch-api/internal/middleware"
	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/internal/repository"
	"github.com/noah-isme/dispatch-api/internal/service"
	"github.com/noah-isme/dispatch-api/pkg/cache"
	"github.com/noah-isme/dispatch-api/pkg/config"
	"github.com/noah-isme/dispatch-api/pkg/database"
	"github.com/noah-isme/dispatch-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dispatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dispatch-api/pkg/middleware/requestid"
	"github.com/noah-isme/dispatch-api/pkg/storage"
)

// @title Dispatch API
// @version 0.1.0
// @description Field worker assignment planner
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var (
	writeRoles = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleDispatcher}
	readRoles  = append(append([]models.UserRole{}, writeRoles...), models.RoleViewer)
	adminRoles = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, worker cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metricsSvc := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.WorkerTTL, logr, cacheRepo != nil)

	tables, err := dispatch.LoadLookupTables(cfg.Dispatch.LookupFile)
	if err != nil {
		logr.Fatal("failed to load lookup tables", zap.String("path", cfg.Dispatch.LookupFile), zap.Error(err))
	}
	scorer, err := dispatch.NewScorer(dispatch.ScorerConfig{
		Weights: dispatch.Weights{
			SkillMatch:      cfg.Dispatch.Weights.Skill,
			Distance:        cfg.Dispatch.Weights.Distance,
			WorkloadBalance: cfg.Dispatch.Weights.Workload,
			Experience:      cfg.Dispatch.Weights.Experience,
			CustomerRating:  cfg.Dispatch.Weights.Rating,
		},
		MaxDistanceKm:        cfg.Dispatch.MaxDistanceKm,
		ExperienceSaturation: cfg.Dispatch.ExperienceSaturation,
		DefaultDailyCapacity: cfg.Dispatch.DefaultCapacity,
		DefaultRating:        cfg.Dispatch.DefaultRating,
	}, tables)
	if err != nil {
		logr.Fatal("invalid dispatch scoring configuration", zap.Error(err))
	}

	validate := validator.New()
	jobRepo := repository.NewJobRepository(db)
	workerRepo := repository.NewWorkerRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	assignmentSvc := service.NewAssignmentService(jobRepo, workerRepo, auditRepo, cacheSvc, db, scorer, metricsSvc, validate, logr, service.AssignmentConfig{
		AutoAssignThreshold: cfg.Dispatch.AutoAssignThreshold,
		TopCandidates:       cfg.Dispatch.TopCandidates,
		MaxBatchDays:        cfg.Dispatch.MaxBatchDays,
		WorkerCacheTTL:      cfg.Cache.WorkerTTL,
	})

	exportStore, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Fatal("failed to prepare export directory", zap.String("dir", cfg.Export.Dir), zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Export.Secret, cfg.Export.TTL)
	exportSvc := service.NewExportService(assignmentSvc, exportStore, signer, validate, logr, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Export.TTL,
	})
	go exportSvc.RunCleanup(ctx, cfg.Export.CleanupInterval)

	batchRunSvc := service.NewBatchRunService(assignmentSvc, exportSvc, validate, logr, service.BatchRunConfig{
		TTL:        cfg.Dispatch.BatchRunTTL,
		Workers:    cfg.Dispatch.BatchWorkers,
		MaxRetries: cfg.Dispatch.BatchRetries,
		RetryDelay: 2 * time.Second,
	})
	batchRunSvc.Start(ctx)
	defer batchRunSvc.Stop()

	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})

	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, batchRunSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient)...)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/assignments/exports/:token", assignmentHandler.DownloadExport)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(tokenSvc))

	reads := internalmiddleware.RequireRoles(readRoles...)
	writes := internalmiddleware.RequireRoles(writeRoles...)

	assignments := secured.Group("/assignments")
	assignments.POST("/score", reads, assignmentHandler.Score)
	assignments.POST("/conflicts", reads, assignmentHandler.CheckConflict)
	assignments.GET("/workers/:id/jobs", reads, assignmentHandler.WorkerJobs)
	assignments.POST("/workers/refresh", internalmiddleware.RequireRoles(adminRoles...), assignmentHandler.RefreshWorkers)
	assignments.POST("/plan", writes, assignmentHandler.Plan)
	assignments.POST("/plan/batch", writes, assignmentHandler.PlanBatch)
	assignments.GET("/plan/export", reads, assignmentHandler.ExportPlan)
	assignments.POST("/commit", writes, assignmentHandler.Commit)
	assignments.POST("/batch-runs", writes,
		internalmiddleware.Audit(auditRepo, logr, models.AuditActionBatchRunSubmit, models.AuditResourceAssignmentEngine),
		assignmentHandler.SubmitBatchRun)
	assignments.GET("/batch-runs/:id", reads, assignmentHandler.GetBatchRun)

	secured.GET("/jobs/unassigned", reads, assignmentHandler.ListUnassigned)
	secured.GET("/metrics/summary", reads, metricsHandler.Summary)

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
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) []handler.ReadinessCheck {
	checks := []handler.ReadinessCheck{{Name: "postgres", Check: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return checks
}
