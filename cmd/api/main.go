package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/ArbeitEmployee/studyabroad-api/api/swagger"
	"github.com/ArbeitEmployee/studyabroad-api/internal/handler"
	"github.com/ArbeitEmployee/studyabroad-api/internal/repository"
	"github.com/ArbeitEmployee/studyabroad-api/internal/router"
	"github.com/ArbeitEmployee/studyabroad-api/internal/service"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/cache"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/config"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/database"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/jobs"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/logger"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/storage"
)

// @title Study Abroad API
// @version 1.0.0
// @description Role based API for study abroad consultancy operations
// @BasePath /api/v1
// @schemes http https
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	cacheEnabled := err == nil
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	visaRepo := repository.NewVisaRepository(db)
	consultationRepo := repository.NewConsultationRepository(db)
	countryRepo := repository.NewCountryRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	documentStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	documentSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Catalog.CacheTTL, logr, cacheEnabled)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "studyabroad-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	visaService := service.NewVisaService(visaRepo, userRepo, documentStorage, documentSigner, validate, logr, service.VisaConfig{
		MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
	})
	consultationService := service.NewConsultationService(consultationRepo, userRepo, validate, logr)
	countryService := service.NewCountryService(countryRepo, cacheService, validate, logr, cfg.Catalog.CacheTTL)
	courseService := service.NewCourseService(courseRepo, cacheService, validate, logr, cfg.Catalog.CacheTTL)

	exportService := service.NewExportService(visaRepo, consultationRepo, reportStorage, reportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)

	reportWorker := service.NewReportWorker(reportRepo, exportService, metricsService, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportService := service.NewReportService(reportRepo, reportQueue, exportService, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reportQueue.Start(rootCtx)
	defer reportQueue.Stop()
	reportService.RecoverPendingJobs(rootCtx)
	reportService.StartCleanup(rootCtx)

	engine := router.New(router.Dependencies{
		Config:       cfg,
		Logger:       logr,
		AuthService:  authService,
		AuditRepo:    userRepo,
		Metrics:      metricsService,
		Auth:         handler.NewAuthHandler(authService),
		Users:        handler.NewUserHandler(userService),
		Visa:         handler.NewVisaHandler(visaService),
		Consultation: handler.NewConsultationHandler(consultationService),
		Country:      handler.NewCountryHandler(countryService),
		Course:       handler.NewCourseHandler(courseService),
		Report:       handler.NewReportHandler(reportService),
		Ops:          handler.NewMetricsHandler(metricsService, db),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
