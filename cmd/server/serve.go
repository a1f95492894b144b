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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/archhealth/backend-go/internal/analyzer"
	"github.com/archhealth/backend-go/internal/cache"
	"github.com/archhealth/backend-go/internal/collector"
	"github.com/archhealth/backend-go/internal/config"
	"github.com/archhealth/backend-go/internal/db"
	"github.com/archhealth/backend-go/internal/domain"
	"github.com/archhealth/backend-go/internal/handler"
	"github.com/archhealth/backend-go/internal/notify"
	"github.com/archhealth/backend-go/internal/observability"
	"github.com/archhealth/backend-go/internal/worker"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the multi-tenant HTTP API and collection workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	metrics := observability.NewMetrics()

	var queries *db.Queries
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Warn("Database unavailable, running without persistence", "error", err)
	} else {
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		queries = db.New(pool)
	}

	store := openCache(ctx, cfg)
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	sender, err := buildSender(ctx, cfg)
	if err != nil {
		return err
	}

	limiter := semaphore.NewWeighted(int64(cfg.AWSCallConcurrency))
	deps := worker.Deps{
		NewCollector: func(ctx context.Context, creds domain.Credentials) (worker.Collector, error) {
			sess, err := collector.NewSession(ctx, creds, cfg.AWSRegion, collector.Options{
				Regions: cfg.ScanRegions,
				Limiter: limiter,
			})
			if err != nil {
				return nil, err
			}
			return sess, nil
		},
		Cache:    store,
		Analyzer: analyzer.New(),
		Alerter:  notify.NewAlerter(sender, notify.NewDedup(cfg.DedupCapacity)),
		Metrics:  metrics,
		Schedule: worker.Schedule{
			Interval:        cfg.CollectionInterval,
			InitialDelay:    cfg.InitialDelay,
			InitialJitter:   cfg.InitialJitter,
			ErrorBackoff:    cfg.ErrorBackoff,
			RestartGrace:    cfg.RestartGrace,
			AnalysisTTL:     cfg.AnalysisCacheTTL,
			InventoryTTL:    cfg.InventoryCacheTTL,
			MetricRetention: cfg.MetricRetention,
		},
	}
	var recStore handler.RecommendationStore
	if queries != nil {
		deps.Store = queries
		recStore = queries
	}

	manager := worker.NewManager(deps)
	go manager.RunCleanup(ctx, cfg.CleanupInterval)

	router := handler.SetupRouter(
		handler.NewSessionHandler(manager),
		handler.NewAnalysisHandler(manager, store),
		handler.NewRecommendationHandler(recStore, store, cfg.InventoryCacheTTL),
		handler.NewWorkerHandler(manager),
		metrics,
		cfg.CORSAllowOrigin,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("archhealth backend starting", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		slog.Error("Worker shutdown incomplete", "error", err)
	}
	slog.Info("archhealth backend stopped")
	return nil
}

// openCache connects to Redis when configured, falling back to the
// in-process cache
func openCache(ctx context.Context, cfg *config.Config) cache.Cache {
	if cfg.RedisURL == "" {
		return cache.NewMemory()
	}
	r, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("Redis unavailable, using in-process cache", "error", err)
		return cache.NewMemory()
	}
	slog.Info("Redis cache connected")
	return r
}

// buildSender returns the alert channel selected by NOTIFY_CHANNEL
func buildSender(ctx context.Context, cfg *config.Config) (notify.Sender, error) {
	if cfg.NotifyChannel == "" || cfg.NotifyChannel == "none" {
		return notify.Nop{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for notifications: %w", err)
	}
	switch cfg.NotifyChannel {
	case "ses":
		return notify.NewSESSenderFromConfig(awsCfg, cfg.NotifyFrom), nil
	case "sns":
		return notify.NewSNSSenderFromConfig(awsCfg, cfg.NotifyTopicARN), nil
	default:
		return nil, fmt.Errorf("unknown notify channel %q", cfg.NotifyChannel)
	}
}
