package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tallyhq/tally/internal/usage"
)

// ReportBuilder builds usage reports for warmup runs.
type ReportBuilder interface {
	Build(ctx context.Context, params usage.Params) (usage.Report, error)
}

// UsageWarmupJob pre-populates the report cache for active projects so the
// first interactive request of the day is served warm.
type UsageWarmupJob struct {
	Builder ReportBuilder
	Cache   *usage.Cache
	Store   TreeStore
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewUsageWarmupJob wires dependencies for the warmup handler.
func NewUsageWarmupJob(builder ReportBuilder, cache *usage.Cache, store TreeStore, logger *slog.Logger) *UsageWarmupJob {
	return &UsageWarmupJob{
		Builder: builder,
		Cache:   cache,
		Store:   store,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskUsageWarmup tasks.
func (j *UsageWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Builder == nil {
		return errors.New("usage warmup: handler not configured")
	}
	var payload UsageWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	codes := payload.ProjectCodes
	if len(codes) == 0 {
		if j.Store == nil {
			return errors.New("usage warmup: no project codes and no store")
		}
		roots, err := j.Store.FetchRoots(ctx)
		if err != nil {
			return fmt.Errorf("usage warmup: list roots: %w", err)
		}
		for _, p := range roots {
			codes = append(codes, p.Code)
		}
	}

	now := j.clock()
	var failed int
	for _, code := range codes {
		params := usage.Params{
			ProjectCode:        code,
			IncludeAdjustments: true,
			Hierarchical:       payload.Hierarchical,
			Now:                now,
		}
		key, err := j.Cache.BuildKey(ctx, usage.ReportKey(params)...)
		if err != nil {
			return fmt.Errorf("usage warmup: cache key: %w", err)
		}
		var report usage.Report
		err = j.Cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
			return j.Builder.Build(ctx, params)
		})
		if err != nil {
			failed++
			j.logger().Warn("warmup build failed", slog.String("project", code), slog.Any("error", err))
		}
	}

	j.logger().Info("usage warmup complete",
		slog.Int("projects", len(codes)),
		slog.Int("failed", failed))
	if failed == len(codes) && len(codes) > 0 {
		return fmt.Errorf("usage warmup: all %d builds failed", failed)
	}
	return nil
}

func (j *UsageWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
