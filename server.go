package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/berthwatch/backend/config"
	"github.com/berthwatch/backend/handler"
	"github.com/berthwatch/backend/middleware"
	"github.com/berthwatch/backend/pkg/metrics"
	"github.com/berthwatch/backend/repository"
	"github.com/berthwatch/backend/service"
	"github.com/gin-gonic/gin"
)

// app holds everything the router needs
type app struct {
	cfg     *config.Config
	store   repository.Store
	archive handler.Archiver
	fetcher handler.ScheduleFetcher
	metrics *metrics.Registry
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	a := &app{cfg: cfg, store: store}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}
	a.fetcher = service.NewFetcher(&cfg.Source, a.metrics)

	if cfg.Minio.Enabled {
		archiveSvc, err := service.NewArchiveService(&cfg.Minio)
		if err != nil {
			return fmt.Errorf("failed to initialize MINIO service: %w", err)
		}
		if err := archiveSvc.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure MINIO bucket: %w", err)
		}
		a.archive = archiveSvc
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

func (a *app) router() *gin.Engine {
	cfg := a.cfg
	pipeline := service.NewPipeline(cfg, a.metrics)
	batches := service.NewBatchService(a.store, a.metrics)
	orders := service.NewOrderService(a.store)

	vesselHandler := handler.NewVesselHandler(pipeline, a.fetcher, batches, a.archive, int64(cfg.Server.MaxUploadMB)<<20)
	orderHandler := handler.NewOrderHandler(orders)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = int64(cfg.Server.MaxUploadMB) << 20

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	if a.metrics != nil {
		router.Use(middleware.Metrics(a.metrics))
	}
	router.Use(middleware.CORS())
	router.Use(middleware.NoCache())
	router.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}

	router.GET("/ships", vesselHandler.Ships)
	router.GET("/latest-ship", vesselHandler.LatestShip)
	router.POST("/save-order", orderHandler.SaveOrder)
	router.GET("/latest-orders", orderHandler.LatestOrders)

	if cfg.Auth.Enabled {
		authHandler := handler.NewAuthHandler(cfg)
		router.POST("/auth/login", authHandler.Login)

		protected := router.Group("/")
		protected.Use(middleware.AuthMiddleware(&cfg.Auth))
		{
			protected.GET("/auth/me", authHandler.GetCurrentUser)
			protected.POST("/upload-pdf", vesselHandler.UploadPDF)
		}
	} else {
		router.POST("/upload-pdf", vesselHandler.UploadPDF)
	}

	return router
}
