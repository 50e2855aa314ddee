package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tallyhq/tally/internal/projects"
)

// TreeStore is the query surface the integrity scan needs.
type TreeStore interface {
	FetchRoots(ctx context.Context) ([]projects.Project, error)
	FetchTree(ctx context.Context, treeRoot int64) ([]projects.Project, error)
}

// TreeIntegrityJob scans project trees for nested-set invariant violations.
// It only reports; a corrupted tree is never repaired automatically.
type TreeIntegrityJob struct {
	Store  TreeStore
	Logger *slog.Logger
}

// NewTreeIntegrityJob wires dependencies for the integrity handler.
func NewTreeIntegrityJob(store TreeStore, logger *slog.Logger) *TreeIntegrityJob {
	return &TreeIntegrityJob{Store: store, Logger: logger}
}

// Handle processes TaskTreeIntegrity tasks.
func (j *TreeIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("tree integrity: handler not configured")
	}
	var payload TreeIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	roots := payload.TreeRoots
	if len(roots) == 0 {
		rootProjects, err := j.Store.FetchRoots(ctx)
		if err != nil {
			return fmt.Errorf("tree integrity: list roots: %w", err)
		}
		for _, p := range rootProjects {
			roots = append(roots, p.ID)
		}
	}

	var corrupted int
	for _, root := range roots {
		rows, err := j.Store.FetchTree(ctx, root)
		if err != nil {
			return fmt.Errorf("tree integrity: load tree %d: %w", root, err)
		}
		violations := projects.CheckTreeIntegrity(rows)
		if len(violations) == 0 {
			continue
		}
		corrupted++
		for _, v := range violations {
			j.logger().Error("tree integrity violation",
				slog.Int64("tree_root", root),
				slog.String("violation", v))
		}
	}

	if corrupted > 0 {
		return fmt.Errorf("tree integrity: %d of %d trees corrupted", corrupted, len(roots))
	}
	j.logger().Info("tree integrity scan clean", slog.Int("trees", len(roots)))
	return nil
}

func (j *TreeIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
