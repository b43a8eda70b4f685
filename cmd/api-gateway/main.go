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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/campus-presence-api/api/swagger"
	"github.com/noah-isme/campus-presence-api/internal/handler"
	"github.com/noah-isme/campus-presence-api/internal/middleware"
	"github.com/noah-isme/campus-presence-api/internal/models"
	"github.com/noah-isme/campus-presence-api/internal/repository"
	"github.com/noah-isme/campus-presence-api/internal/service"
	"github.com/noah-isme/campus-presence-api/pkg/cache"
	"github.com/noah-isme/campus-presence-api/pkg/config"
	"github.com/noah-isme/campus-presence-api/pkg/database"
	"github.com/noah-isme/campus-presence-api/pkg/geo"
	"github.com/noah-isme/campus-presence-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-presence-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-presence-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-presence-api/pkg/storage"
)

// @title Campus Presence API
// @version 1.0.0
// @description Geofenced student attendance tracking and reporting
// @BasePath /api/v1
// @schemes http

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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	attendanceRepo := repository.NewAttendanceRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(studentRepo, attendanceRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, cacheRepo, metricsSvc, validate, logr, service.AttendanceConfig{
		Campus:   geo.Coordinate{Lat: cfg.Campus.Latitude, Lng: cfg.Campus.Longitude},
		RadiusKm: cfg.Campus.RadiusKm,
		Location: cfg.Campus.Location,
		Windows: models.AttendanceWindows{
			Start:     models.ClockTime(cfg.Schedule.Start),
			EndOnTime: models.ClockTime(cfg.Schedule.EndOnTime),
			EndLate:   models.ClockTime(cfg.Schedule.EndLate),
		},
	})
	reportSvc := service.NewReportService(attendanceRepo, studentRepo, cacheRepo, metricsSvc, logr, cfg.Campus.Location, cfg.Reports.CacheTTL)
	studentSvc := service.NewStudentService(studentRepo, attendanceRepo, validate, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("exports storage init failed", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(reportSvc, store, signer, logr, cfg.Campus.Location, service.ExportServiceConfig{
			WorkerConcurrency: cfg.Exports.WorkerConcurrency,
			WorkerRetries:     cfg.Exports.WorkerRetries,
			RetentionTTL:      cfg.Exports.RetentionTTL,
		})
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	reportHandler := handler.NewReportHandler(reportSvc, nil)
	if exportSvc != nil {
		reportHandler = handler.NewReportHandler(reportSvc, exportSvc)
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

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/attendance", middleware.JWT(authSvc), attendanceHandler.Submit)
	// Signed token carries its own authorization.
	api.GET("/exports/:token", reportHandler.DownloadExport)

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleTeacher))
	admin.GET("/attendance", reportHandler.Report)
	admin.POST("/attendance/status", attendanceHandler.Correct)
	admin.POST("/attendance/export", reportHandler.CreateExport)
	admin.GET("/attendance/export/:id", reportHandler.ExportStatus)
	admin.GET("/students", studentHandler.List)
	admin.POST("/students", studentHandler.Create)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "campus_tz", cfg.Campus.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
