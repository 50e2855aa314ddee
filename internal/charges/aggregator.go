package charges

import (
	"context"
	"errors"
	"time"

	"github.com/tallyhq/tally/internal/projects"
	"github.com/tallyhq/tally/internal/resources"
)

// ErrEmptyScope indicates neither account ids nor a subtree filter were given.
var ErrEmptyScope = errors.New("charges: empty aggregation scope")

// SubtreeScope filters charge records through the project subtree joined via
// accounts of one concrete resource.
type SubtreeScope struct {
	Bounds     projects.SubtreeBounds
	ResourceID int64
}

// Scope selects the charge records to aggregate. Exactly one of AccountIDs
// or Subtree must be set. The two scopes intentionally filter at different
// granularity: account scope carries the id set a resource-type dispatch
// produced, while subtree scope pins one concrete resource id.
type Scope struct {
	AccountIDs []int64
	Subtree    *SubtreeScope
}

func (s Scope) validate() error {
	if s.Subtree == nil && len(s.AccountIDs) == 0 {
		return ErrEmptyScope
	}
	return nil
}

// Store is the narrow query surface the aggregator depends on. Implementations
// must distinguish infrastructure failures from empty results: zero rows sum
// to zero, they are not an error.
type Store interface {
	SumChargesByAccounts(ctx context.Context, kind Kind, accountIDs []int64, start, end time.Time) (float64, error)
	SumChargesBySubtree(ctx context.Context, kind Kind, bounds projects.SubtreeBounds, resourceID int64, start, end time.Time) (float64, error)
	SumAdjustmentsByAccounts(ctx context.Context, accountIDs []int64, start, end time.Time) (float64, error)
	SumAdjustmentsBySubtree(ctx context.Context, bounds projects.SubtreeBounds, resourceID int64, start, end time.Time) (float64, error)
	SumJobStatsByAccounts(ctx context.Context, kind Kind, accountIDs []int64, start, end time.Time) (JobStats, error)
	SumJobStatsBySubtree(ctx context.Context, kind Kind, bounds projects.SubtreeBounds, resourceID int64, start, end time.Time) (JobStats, error)
}

// Aggregator sums charges, adjustments and job statistics over a scope.
type Aggregator struct {
	store Store
}

// NewAggregator wires a Store into the aggregator.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// SumCharges sums each kind's charge amounts over [start, end]. A kind whose
// sum is zero is omitted from the result map, so "no usage recorded" and
// "exactly zero usage" are indistinguishable downstream. That matches the
// historical reporting output and consumers rely on it.
func (a *Aggregator) SumCharges(ctx context.Context, kinds []Kind, scope Scope, start, end time.Time) (map[Kind]float64, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	sums := make(map[Kind]float64, len(kinds))
	for _, kind := range kinds {
		var (
			sum float64
			err error
		)
		if scope.Subtree != nil {
			sum, err = a.store.SumChargesBySubtree(ctx, kind, scope.Subtree.Bounds, scope.Subtree.ResourceID, start, end)
		} else {
			sum, err = a.store.SumChargesByAccounts(ctx, kind, scope.AccountIDs, start, end)
		}
		if err != nil {
			return nil, err
		}
		if sum != 0 {
			sums[kind] = sum
		}
	}
	return sums, nil
}

// SumAdjustments sums signed adjustment amounts over [start, end].
func (a *Aggregator) SumAdjustments(ctx context.Context, scope Scope, start, end time.Time) (float64, error) {
	if err := scope.validate(); err != nil {
		return 0, err
	}
	if scope.Subtree != nil {
		return a.store.SumAdjustmentsBySubtree(ctx, scope.Subtree.Bounds, scope.Subtree.ResourceID, start, end)
	}
	return a.store.SumAdjustmentsByAccounts(ctx, scope.AccountIDs, start, end)
}

// JobStatistics sums job counts and core-hours for resource types that record
// them; other types yield ErrJobStatsNotApplicable.
func (a *Aggregator) JobStatistics(ctx context.Context, rtype resources.Type, scope Scope, start, end time.Time) (JobStats, error) {
	if !rtype.SupportsJobStats() {
		return JobStats{}, ErrJobStatsNotApplicable
	}
	if err := scope.validate(); err != nil {
		return JobStats{}, err
	}
	kinds, err := KindsForType(rtype)
	if err != nil {
		return JobStats{}, err
	}
	var total JobStats
	for _, kind := range kinds {
		if !kind.HasJobStats() {
			continue
		}
		var stats JobStats
		if scope.Subtree != nil {
			stats, err = a.store.SumJobStatsBySubtree(ctx, kind, scope.Subtree.Bounds, scope.Subtree.ResourceID, start, end)
		} else {
			stats, err = a.store.SumJobStatsByAccounts(ctx, kind, scope.AccountIDs, start, end)
		}
		if err != nil {
			return JobStats{}, err
		}
		total = total.add(stats)
	}
	return total, nil
}
