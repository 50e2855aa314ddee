package allocations

import (
	"time"
)

// DefaultGracePeriod is how long an expired allocation still governs reporting.
const DefaultGracePeriod = 365 * 24 * time.Hour

// Selector picks the allocation governing an account at a point in time.
type Selector struct {
	grace time.Duration
}

// NewSelector constructs a Selector. A non-positive grace period falls back
// to the default.
func NewSelector(grace time.Duration) *Selector {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Selector{grace: grace}
}

// SelectActive returns the allocation whose window contains atTime. Among
// overlapping candidates the one ending last wins, and an open-ended window
// counts as ending after every bounded one. When nothing is active the most
// recently ended allocation is returned instead, provided it expired less
// than the grace period before atTime; otherwise ok is false and the account
// contributes nothing to reporting. That outcome is expected, not an error.
func (s *Selector) SelectActive(allocs []Allocation, atTime time.Time) (Allocation, bool) {
	var (
		active   *Allocation
		fallback *Allocation
	)
	for i := range allocs {
		a := &allocs[i]
		if a.Deleted {
			continue
		}
		if a.ActiveAt(atTime) {
			if active == nil || endsAfter(a.EndDate, active.EndDate) {
				active = a
			}
			continue
		}
		if fallback == nil || endsAfter(a.EndDate, fallback.EndDate) {
			fallback = a
		}
	}
	if active != nil {
		return *active, true
	}
	if fallback == nil {
		return Allocation{}, false
	}
	if fallback.EndDate != nil && atTime.Sub(*fallback.EndDate) >= s.grace {
		return Allocation{}, false
	}
	return *fallback, true
}
