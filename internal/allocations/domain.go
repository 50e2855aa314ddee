// Package allocations models accounts and their resource allocations.
package allocations

import (
	"time"

	"github.com/tallyhq/tally/internal/resources"
)

// Account links one project to one resource.
type Account struct {
	ID        int64
	ProjectID int64
	Resource  resources.Resource
	Deleted   bool
}

// Allocation grants an amount of a resource to an account for a validity
// window. A nil EndDate means the window is open-ended. ParentAllocationID
// chains adjustments: a new record represents a change to a prior one.
type Allocation struct {
	ID                 int64
	AccountID          int64
	Amount             float64
	StartDate          time.Time
	EndDate            *time.Time
	ParentAllocationID *int64
	Deleted            bool
}

// ActiveAt reports whether the allocation's window contains t.
func (a Allocation) ActiveAt(t time.Time) bool {
	if a.Deleted {
		return false
	}
	if t.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || !t.After(*a.EndDate)
}

// endsAfter orders end dates with nil (open-ended) sorting after everything.
func endsAfter(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.After(*b)
}
