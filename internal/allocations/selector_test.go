package allocations

import (
	"testing"
	"time"
)

func day(offset int) time.Time {
	base := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func datePtr(t time.Time) *time.Time { return &t }

func TestSelectActiveWithinWindow(t *testing.T) {
	now := day(0)
	allocs := []Allocation{
		{ID: 1, Amount: 1000, StartDate: day(-30), EndDate: datePtr(day(30))},
	}
	got, ok := NewSelector(0).SelectActive(allocs, now)
	if !ok {
		t.Fatalf("expected an active allocation")
	}
	if got.ID != 1 {
		t.Fatalf("selected allocation %d, want 1", got.ID)
	}
	if !got.ActiveAt(now) {
		t.Fatalf("selected allocation is not active at now")
	}
}

func TestSelectActiveOpenEndedWinsTie(t *testing.T) {
	now := day(0)
	allocs := []Allocation{
		{ID: 1, Amount: 500, StartDate: day(-60), EndDate: datePtr(day(2))},
		{ID: 2, Amount: 800, StartDate: day(-10), EndDate: nil},
	}
	got, ok := NewSelector(0).SelectActive(allocs, now)
	if !ok || got.ID != 2 {
		t.Fatalf("expected open-ended allocation 2, got %+v ok=%v", got, ok)
	}
}

func TestSelectActivePrefersLatestEnd(t *testing.T) {
	now := day(0)
	allocs := []Allocation{
		{ID: 1, StartDate: day(-90), EndDate: datePtr(day(10))},
		{ID: 2, StartDate: day(-90), EndDate: datePtr(day(90))},
	}
	got, ok := NewSelector(0).SelectActive(allocs, now)
	if !ok || got.ID != 2 {
		t.Fatalf("expected allocation 2 with the later end, got %+v ok=%v", got, ok)
	}
}

func TestSelectActiveSkipsDeleted(t *testing.T) {
	now := day(0)
	allocs := []Allocation{
		{ID: 1, StartDate: day(-30), EndDate: datePtr(day(30)), Deleted: true},
	}
	if _, ok := NewSelector(0).SelectActive(allocs, now); ok {
		t.Fatalf("deleted allocation must never be selected")
	}
}

func TestSelectActiveGraceFallback(t *testing.T) {
	now := day(0)
	allocs := []Allocation{
		{ID: 1, StartDate: day(-400), EndDate: datePtr(day(-100))},
		{ID: 2, StartDate: day(-700), EndDate: datePtr(day(-500))},
	}
	got, ok := NewSelector(0).SelectActive(allocs, now)
	if !ok {
		t.Fatalf("expected grace fallback to the most recently ended allocation")
	}
	if got.ID != 1 {
		t.Fatalf("fallback picked allocation %d, want 1", got.ID)
	}
}

func TestSelectActiveFallbackOutsideGrace(t *testing.T) {
	now := day(0)
	allocs := []Allocation{
		{ID: 1, StartDate: day(-800), EndDate: datePtr(day(-400))},
	}
	if _, ok := NewSelector(365 * 24 * time.Hour).SelectActive(allocs, now); ok {
		t.Fatalf("allocation ended 400 days ago must not survive a 365-day grace period")
	}
}

func TestSelectActiveNoAllocations(t *testing.T) {
	if _, ok := NewSelector(0).SelectActive(nil, day(0)); ok {
		t.Fatalf("no allocations must yield no selection")
	}
}

func TestSelectActiveBoundaryDates(t *testing.T) {
	now := day(0)
	allocs := []Allocation{
		{ID: 1, StartDate: now, EndDate: datePtr(now)},
	}
	got, ok := NewSelector(0).SelectActive(allocs, now)
	if !ok || got.ID != 1 {
		t.Fatalf("window boundaries are inclusive, got %+v ok=%v", got, ok)
	}
}
