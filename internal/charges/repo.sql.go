package charges

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyhq/tally/internal/projects"
)

// Repository sums charge records straight from the per-kind tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a charges repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func tableFor(kind Kind) (string, error) {
	entry, ok := chargeTables[kind]
	if !ok {
		return "", fmt.Errorf("charges: unknown charge kind %q", kind)
	}
	return entry.table, nil
}

// SumChargesByAccounts sums charge amounts for an exact account id set.
func (r *Repository) SumChargesByAccounts(ctx context.Context, kind Kind, accountIDs []int64, start, end time.Time) (float64, error) {
	if r == nil || r.pool == nil {
		return 0, fmt.Errorf("charges repo not initialised")
	}
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
SELECT COALESCE(SUM(amount), 0)
FROM %s
WHERE account_id = ANY($1) AND activity_date BETWEEN $2 AND $3`, table)
	var sum float64
	if err := r.pool.QueryRow(ctx, query, accountIDs, start, end).Scan(&sum); err != nil {
		return 0, fmt.Errorf("charges: sum %s by accounts: %w", kind, err)
	}
	return sum, nil
}

// SumChargesBySubtree sums charge amounts across every account of one
// resource held by projects inside the subtree bounds.
func (r *Repository) SumChargesBySubtree(ctx context.Context, kind Kind, bounds projects.SubtreeBounds, resourceID int64, start, end time.Time) (float64, error) {
	if r == nil || r.pool == nil {
		return 0, fmt.Errorf("charges repo not initialised")
	}
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
SELECT COALESCE(SUM(ch.amount), 0)
FROM %s ch
JOIN accounts a ON a.id = ch.account_id AND NOT a.deleted
JOIN projects p ON p.id = a.project_id
WHERE a.resource_id = $1
  AND p.tree_root = $2 AND p.tree_left >= $3 AND p.tree_right <= $4
  AND ch.activity_date BETWEEN $5 AND $6`, table)
	var sum float64
	if err := r.pool.QueryRow(ctx, query, resourceID, bounds.TreeRoot, bounds.TreeLeft, bounds.TreeRight, start, end).Scan(&sum); err != nil {
		return 0, fmt.Errorf("charges: sum %s by subtree: %w", kind, err)
	}
	return sum, nil
}

// SumAdjustmentsByAccounts sums signed adjustments for an exact account id set.
func (r *Repository) SumAdjustmentsByAccounts(ctx context.Context, accountIDs []int64, start, end time.Time) (float64, error) {
	if r == nil || r.pool == nil {
		return 0, fmt.Errorf("charges repo not initialised")
	}
	const query = `
SELECT COALESCE(SUM(amount), 0)
FROM adjustments
WHERE account_id = ANY($1) AND adjustment_date BETWEEN $2 AND $3`
	var sum float64
	if err := r.pool.QueryRow(ctx, query, accountIDs, start, end).Scan(&sum); err != nil {
		return 0, fmt.Errorf("charges: sum adjustments by accounts: %w", err)
	}
	return sum, nil
}

// SumAdjustmentsBySubtree sums signed adjustments across the subtree for one
// concrete resource.
func (r *Repository) SumAdjustmentsBySubtree(ctx context.Context, bounds projects.SubtreeBounds, resourceID int64, start, end time.Time) (float64, error) {
	if r == nil || r.pool == nil {
		return 0, fmt.Errorf("charges repo not initialised")
	}
	const query = `
SELECT COALESCE(SUM(adj.amount), 0)
FROM adjustments adj
JOIN accounts a ON a.id = adj.account_id AND NOT a.deleted
JOIN projects p ON p.id = a.project_id
WHERE a.resource_id = $1
  AND p.tree_root = $2 AND p.tree_left >= $3 AND p.tree_right <= $4
  AND adj.adjustment_date BETWEEN $5 AND $6`
	var sum float64
	if err := r.pool.QueryRow(ctx, query, resourceID, bounds.TreeRoot, bounds.TreeLeft, bounds.TreeRight, start, end).Scan(&sum); err != nil {
		return 0, fmt.Errorf("charges: sum adjustments by subtree: %w", err)
	}
	return sum, nil
}

// SumJobStatsByAccounts sums job counts and core-hours for an account id set.
func (r *Repository) SumJobStatsByAccounts(ctx context.Context, kind Kind, accountIDs []int64, start, end time.Time) (JobStats, error) {
	if r == nil || r.pool == nil {
		return JobStats{}, fmt.Errorf("charges repo not initialised")
	}
	table, err := tableFor(kind)
	if err != nil {
		return JobStats{}, err
	}
	if !kind.HasJobStats() {
		return JobStats{}, ErrJobStatsNotApplicable
	}
	query := fmt.Sprintf(`
SELECT COALESCE(SUM(job_count), 0), COALESCE(SUM(core_hours), 0)
FROM %s
WHERE account_id = ANY($1) AND activity_date BETWEEN $2 AND $3`, table)
	var stats JobStats
	if err := r.pool.QueryRow(ctx, query, accountIDs, start, end).Scan(&stats.JobCount, &stats.CoreHours); err != nil {
		return JobStats{}, fmt.Errorf("charges: sum %s job stats by accounts: %w", kind, err)
	}
	return stats, nil
}

// SumJobStatsBySubtree sums job counts and core-hours across the subtree for
// one concrete resource.
func (r *Repository) SumJobStatsBySubtree(ctx context.Context, kind Kind, bounds projects.SubtreeBounds, resourceID int64, start, end time.Time) (JobStats, error) {
	if r == nil || r.pool == nil {
		return JobStats{}, fmt.Errorf("charges repo not initialised")
	}
	table, err := tableFor(kind)
	if err != nil {
		return JobStats{}, err
	}
	if !kind.HasJobStats() {
		return JobStats{}, ErrJobStatsNotApplicable
	}
	query := fmt.Sprintf(`
SELECT COALESCE(SUM(ch.job_count), 0), COALESCE(SUM(ch.core_hours), 0)
FROM %s ch
JOIN accounts a ON a.id = ch.account_id AND NOT a.deleted
JOIN projects p ON p.id = a.project_id
WHERE a.resource_id = $1
  AND p.tree_root = $2 AND p.tree_left >= $3 AND p.tree_right <= $4
  AND ch.activity_date BETWEEN $5 AND $6`, table)
	var stats JobStats
	if err := r.pool.QueryRow(ctx, query, resourceID, bounds.TreeRoot, bounds.TreeLeft, bounds.TreeRight, start, end).Scan(&stats.JobCount, &stats.CoreHours); err != nil {
		return JobStats{}, fmt.Errorf("charges: sum %s job stats by subtree: %w", kind, err)
	}
	return stats, nil
}
