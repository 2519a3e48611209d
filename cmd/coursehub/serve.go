package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/coursehub-api/api/swagger"
	"github.com/noah-isme/coursehub-api/internal/handler"
	"github.com/noah-isme/coursehub-api/internal/middleware"
	"github.com/noah-isme/coursehub-api/internal/repository"
	"github.com/noah-isme/coursehub-api/internal/service"
	"github.com/noah-isme/coursehub-api/pkg/cache"
	"github.com/noah-isme/coursehub-api/pkg/config"
	"github.com/noah-isme/coursehub-api/pkg/grading"
	"github.com/noah-isme/coursehub-api/pkg/jobs"
	"github.com/noah-isme/coursehub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/coursehub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/coursehub-api/pkg/middleware/requestid"
	"github.com/noah-isme/coursehub-api/pkg/scheduler"
	"github.com/noah-isme/coursehub-api/pkg/storage"
)

func newServeCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port, overrides PORT")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, logr := a.cfg, a.logger

	stores, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && cacheRepo.Enabled())

	auth := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	catalog := service.NewCatalogService(stores.Courses, cacheSvc, cfg.Catalog.CacheTTL, validate, logr)
	enrollments := service.NewEnrollmentService(stores.Enrollments, stores.Courses, metrics, validate, logr)
	certificates := service.NewCertificateService(stores.Enrollments, stores.Courses, nil, logr)

	var grader service.Grader
	if cfg.Grading.URL != "" {
		grader = grading.NewHTTPGrader(cfg.Grading)
	} else {
		logr.Warn("GRADER_URL not set, code submissions will be rejected")
	}
	submissions := service.NewSubmissionService(stores.Courses, stores.Submissions, grader, cfg.Grading.Timeout, metrics, validate, logr)

	handlers := handler.Handlers{
		Courses:     handler.NewCourseHandler(catalog),
		Enrollments: handler.NewEnrollmentHandler(enrollments, certificates),
		Submissions: handler.NewSubmissionHandler(submissions),
		Payments:    handler.NewPaymentWebhookHandler(enrollments, cfg.Payments.WebhookSecret, logr),
		Metrics:     handler.NewMetricsHandler(metrics),
	}

	if cfg.Exports.Enabled {
		exportJobs, shutdown, err := a.startExports(ctx, stores, metrics, validate)
		if err != nil {
			return err
		}
		defer shutdown()
		handlers.Exports = handler.NewExportHandler(exportJobs)
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

	r.GET("/health", handlers.Metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "store": cfg.Store.Driver, "cache": cacheSvc.Enabled()})
	})
	r.GET("/metrics", handlers.Metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handlers, auth)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startExports wires the export queue, its worker and the cleanup schedule.
func (a *app) startExports(ctx context.Context, stores repository.Stores, metrics *service.MetricsService, validate *validator.Validate) (*service.ExportJobService, func(), error) {
	cfg, logr := a.cfg.Exports, a.logger

	files, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.SignedURLSecret, cfg.SignedURLTTL)
	exporter := service.NewExportService(stores.Courses, stores.Enrollments, files, signer, service.ExportConfig{
		APIPrefix: a.cfg.APIPrefix,
		ResultTTL: cfg.SignedURLTTL,
	}, logr)

	worker := service.NewExportWorker(stores.ExportJobs, exporter, cfg.WorkerRetries, metrics, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	exportJobs := service.NewExportJobService(stores.ExportJobs, stores.Courses, queue, exporter, cfg.SignedURLTTL, validate, logr)
	exportJobs.RecoverPendingJobs(ctx, cfg.StallTimeout)

	sched := scheduler.New(logr, 5*time.Minute)
	if err := sched.Add("export-cleanup", cfg.CleanupSchedule, exportJobs.CleanupExpired); err != nil {
		queue.Stop()
		return nil, nil, err
	}
	sched.Start()

	return exportJobs, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
		queue.Stop()
	}, nil
}
