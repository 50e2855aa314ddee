package allocations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyhq/tally/internal/resources"
)

// Repository provides persistence helpers for accounts and allocations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs an allocations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FetchAccounts returns the non-deleted accounts of a project with their
// resources resolved.
func (r *Repository) FetchAccounts(ctx context.Context, projectID int64) ([]Account, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("allocations repo not initialised")
	}
	const query = `
SELECT a.id, a.project_id, res.id, res.name, res.type
FROM accounts a
JOIN resources res ON res.id = a.resource_id
WHERE a.project_id = $1 AND NOT a.deleted
ORDER BY res.name, a.id`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var (
			acct    Account
			rawType string
		)
		if err := rows.Scan(&acct.ID, &acct.ProjectID, &acct.Resource.ID, &acct.Resource.Name, &rawType); err != nil {
			return nil, err
		}
		rtype, err := resources.ParseType(rawType)
		if err != nil {
			return nil, err
		}
		acct.Resource.Type = rtype
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// FetchAllocations returns every non-deleted allocation of an account.
func (r *Repository) FetchAllocations(ctx context.Context, accountID int64) ([]Allocation, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("allocations repo not initialised")
	}
	const query = `
SELECT id, account_id, amount, start_date, end_date, parent_allocation_id
FROM allocations
WHERE account_id = $1 AND NOT deleted
ORDER BY start_date, id`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var allocs []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.AccountID, &a.Amount, &a.StartDate, &a.EndDate, &a.ParentAllocationID); err != nil {
			return nil, err
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}
