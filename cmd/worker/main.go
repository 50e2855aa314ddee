package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tallyhq/tally/internal/allocations"
	"github.com/tallyhq/tally/internal/app"
	"github.com/tallyhq/tally/internal/charges"
	"github.com/tallyhq/tally/internal/platform/cache"
	"github.com/tallyhq/tally/internal/platform/db"
	"github.com/tallyhq/tally/internal/projects"
	"github.com/tallyhq/tally/internal/usage"
	"github.com/tallyhq/tally/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, warmups degrade to pass-through", slog.Any("error", err))
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

	projectRepo := projects.NewRepository(pool)
	projectService := projects.NewService(projectRepo)

	allocationRepo := allocations.NewRepository(pool)
	selector := allocations.NewSelector(cfg.GracePeriod)

	chargeRepo := charges.NewRepository(pool)
	aggregator := charges.NewAggregator(chargeRepo)

	builder := usage.NewBuilder(projectService, allocationRepo, selector, aggregator, logger)
	reportCache := usage.NewCache(redisClient, cfg.UsageCacheTTL)

	integrityJob := jobs.NewTreeIntegrityJob(projectRepo, logger)
	warmupJob := jobs.NewUsageWarmupJob(builder, reportCache, projectRepo, logger)

	integrityTask, err := jobs.NewTreeIntegrityTask(jobs.TreeIntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewUsageWarmupTask(jobs.UsageWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTreeIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskUsageWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.TreeIntegrityCron, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.UsageWarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
