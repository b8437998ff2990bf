package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/lms-report-api/api/swagger"
	"github.com/noah-isme/lms-report-api/internal/builder"
	"github.com/noah-isme/lms-report-api/internal/handler"
	"github.com/noah-isme/lms-report-api/internal/middleware"
	"github.com/noah-isme/lms-report-api/internal/plugins"
	"github.com/noah-isme/lms-report-api/internal/rbac"
	"github.com/noah-isme/lms-report-api/internal/report"
	"github.com/noah-isme/lms-report-api/internal/repository"
	"github.com/noah-isme/lms-report-api/internal/service"
	"github.com/noah-isme/lms-report-api/pkg/cache"
	"github.com/noah-isme/lms-report-api/pkg/config"
	"github.com/noah-isme/lms-report-api/pkg/database"
	"github.com/noah-isme/lms-report-api/pkg/logger"
	"github.com/noah-isme/lms-report-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/lms-report-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-report-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-report-api/pkg/storage"
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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	exportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("export storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	reportRepo := repository.NewReportRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db, logr)
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Reports.ResultCacheTTL)

	registry := plugins.NewRegistry()
	evaluator := rbac.NewEvaluator(userRepo, userRepo, logr)
	loader := report.NewLoader(reportRepo, registry, logr)
	exec := builder.New(db, registry, evaluator, logr, builder.Options{
		QueryTimeout:    cfg.Reports.QueryTimeout,
		DefaultPageSize: cfg.Reports.DefaultPageSize,
		MaxPageSize:     cfg.Reports.MaxPageSize,
	})

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	reportSvc := service.NewReportService(reportRepo, loader, exec, registry, userRepo, cacheRepo, auditRepo, metricsSvc, nil, logr)
	deliverySvc := service.NewDeliveryService(loader, exec, exportStorage, signer, mailer.New(cfg.Mail), metricsSvc, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, reportRepo, deliverySvc, nil, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.RegisterRoutes(r, cfg.APIPrefix, middleware.JWT(authSvc), handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Reports:    handler.NewReportHandler(reportSvc),
		Components: handler.NewComponentHandler(reportSvc),
		Schedules:  handler.NewScheduleHandler(scheduleSvc),
		Exports:    handler.NewExportHandler(deliverySvc),
		Metrics:    handler.NewMetricsHandler(metricsSvc),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
