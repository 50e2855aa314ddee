package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tallyhq/tally/internal/allocations"
	"github.com/tallyhq/tally/internal/app"
	"github.com/tallyhq/tally/internal/charges"
	"github.com/tallyhq/tally/internal/observability"
	"github.com/tallyhq/tally/internal/platform/cache"
	"github.com/tallyhq/tally/internal/platform/db"
	"github.com/tallyhq/tally/internal/projects"
	projecthttp "github.com/tallyhq/tally/internal/projects/http"
	"github.com/tallyhq/tally/internal/usage"
	usagehttp "github.com/tallyhq/tally/internal/usage/http"
	"github.com/tallyhq/tally/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, serving uncached", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	projectRepo := projects.NewRepository(pool)
	projectService := projects.NewService(projectRepo)
	treeWriter := projects.NewTreeWriter(pool, logger)

	allocationRepo := allocations.NewRepository(pool)
	selector := allocations.NewSelector(cfg.GracePeriod)

	chargeRepo := charges.NewRepository(pool)
	aggregator := charges.NewAggregator(chargeRepo)

	builder := usage.NewBuilder(projectService, allocationRepo, selector, aggregator, logger)
	reportCache := usage.NewCache(redisClient, cfg.UsageCacheTTL)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	usageHandler := usagehttp.NewHandler(logger, builder, reportCache, metrics)
	projectsHandler := projecthttp.NewHandler(logger, projectService, treeWriter, reportCache)
	jobsHandler := jobs.NewHandler(jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		UsageHandler:    usageHandler,
		ProjectsHandler: projectsHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
