package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/tallyhq/tally/internal/allocations"
	"github.com/tallyhq/tally/internal/charges"
	"github.com/tallyhq/tally/internal/projects"
)

// maxAccountFanout bounds concurrent per-account aggregation; the pgx pool is
// the real limit, this just keeps one report from monopolising it.
const maxAccountFanout = 4

// ProjectResolver resolves a project by code, surfacing corrupted bounds.
type ProjectResolver interface {
	Get(ctx context.Context, code string) (projects.Project, error)
}

// AccountStore provides the accounts and allocations of a project.
type AccountStore interface {
	FetchAccounts(ctx context.Context, projectID int64) ([]allocations.Account, error)
	FetchAllocations(ctx context.Context, accountID int64) ([]allocations.Allocation, error)
}

// Params controls one report build. Now must carry the single timestamp
// captured at invocation; every temporal decision below uses it unchanged.
type Params struct {
	ProjectCode        string
	Resource           string
	IncludeAdjustments bool
	Hierarchical       bool
	Now                time.Time
}

// Builder composes tree lookup, allocation selection and charge aggregation
// into a per-resource usage report.
type Builder struct {
	projects ProjectResolver
	accounts AccountStore
	selector *allocations.Selector
	agg      *charges.Aggregator
	logger   *slog.Logger
}

// NewBuilder wires the report builder.
func NewBuilder(resolver ProjectResolver, accounts AccountStore, selector *allocations.Selector, agg *charges.Aggregator, logger *slog.Logger) *Builder {
	return &Builder{projects: resolver, accounts: accounts, selector: selector, agg: agg, logger: logger}
}

// Build produces the usage report for a project, keyed by resource name.
// Accounts without a governing allocation are skipped silently; should two
// accounts of the project map to the same resource name, the later account
// overwrites the earlier entry.
func (b *Builder) Build(ctx context.Context, params Params) (Report, error) {
	if params.Now.IsZero() {
		params.Now = time.Now().UTC()
	}

	project, err := b.projects.Get(ctx, params.ProjectCode)
	if err != nil {
		return nil, err
	}
	if params.Hierarchical {
		if err := project.ValidateBounds(); err != nil {
			return nil, err
		}
	}
	if project.ChargingExempt {
		return Report{}, nil
	}

	accounts, err := b.accounts.FetchAccounts(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if params.Resource != "" {
		fold := cases.Fold()
		want := fold.String(params.Resource)
		filtered := accounts[:0]
		for _, acct := range accounts {
			if fold.String(acct.Resource.Name) == want {
				filtered = append(filtered, acct)
			}
		}
		accounts = filtered
	}

	// Non-hierarchical aggregation dispatches by resource type: the account
	// id set for a type spans every project account sharing it. The
	// hierarchical path instead pins the concrete resource id; the mismatch
	// is deliberate and kept.
	accountsByType := make(map[string][]int64)
	for _, acct := range accounts {
		key := string(acct.Resource.Type)
		accountsByType[key] = append(accountsByType[key], acct.ID)
	}

	entries := make([]*Entry, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxAccountFanout)
	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			entry, err := b.buildEntry(gctx, project, acct, accountsByType[string(acct.Resource.Type)], params)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := make(Report, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		report[entry.Resource] = *entry
	}
	return report, nil
}

func (b *Builder) buildEntry(ctx context.Context, project projects.Project, acct allocations.Account, typeAccountIDs []int64, params Params) (*Entry, error) {
	allocs, err := b.accounts.FetchAllocations(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	alloc, ok := b.selector.SelectActive(allocs, params.Now)
	if !ok {
		if b.logger != nil {
			b.logger.Debug("no governing allocation, account excluded",
				slog.String("project", project.Code),
				slog.String("resource", acct.Resource.Name))
		}
		return nil, nil
	}

	start := alloc.StartDate
	end := params.Now
	if alloc.EndDate != nil {
		end = *alloc.EndDate
	}

	kinds, err := charges.KindsForType(acct.Resource.Type)
	if err != nil {
		return nil, err
	}
	scope := charges.Scope{AccountIDs: typeAccountIDs}
	if params.Hierarchical {
		scope = charges.Scope{Subtree: &charges.SubtreeScope{
			Bounds:     project.Bounds(),
			ResourceID: acct.Resource.ID,
		}}
	}

	sums, err := b.agg.SumCharges(ctx, kinds, scope, start, end)
	if err != nil {
		return nil, err
	}
	var adjustments float64
	if params.IncludeAdjustments {
		adjustments, err = b.agg.SumAdjustments(ctx, scope, start, end)
		if err != nil {
			return nil, err
		}
	}

	var used float64
	for _, sum := range sums {
		used += sum
	}
	used += adjustments

	entry := Entry{
		Resource:      acct.Resource.Name,
		ResourceType:  string(acct.Resource.Type),
		Allocated:     alloc.Amount,
		Used:          used,
		Remaining:     alloc.Amount - used,
		ChargesByType: sums,
		Adjustments:   adjustments,
		StartDate:     alloc.StartDate,
		EndDate:       alloc.EndDate,
		DaysElapsed:   daysBetween(alloc.StartDate, params.Now),
	}
	if alloc.Amount > 0 {
		entry.PercentUsed = used / alloc.Amount * 100
	}
	if alloc.EndDate != nil {
		remaining := daysBetween(params.Now, *alloc.EndDate)
		total := daysBetween(alloc.StartDate, *alloc.EndDate)
		entry.DaysRemaining = &remaining
		entry.DaysTotal = &total
	}

	if acct.Resource.Type.SupportsJobStats() {
		stats, err := b.agg.JobStatistics(ctx, acct.Resource.Type, scope, start, end)
		if err != nil && !errors.Is(err, charges.ErrJobStatsNotApplicable) {
			return nil, err
		}
		if err == nil {
			entry.JobStats = &stats
		}
	}
	return &entry, nil
}
