// Package usage assembles per-resource allocation usage reports.
package usage

import (
	"time"

	"github.com/tallyhq/tally/internal/charges"
)

// Entry is the usage summary for one resource of a project.
type Entry struct {
	Resource     string  `json:"resource"`
	ResourceType string  `json:"resource_type"`
	Allocated    float64 `json:"allocated"`
	Used         float64 `json:"used"`
	Remaining    float64 `json:"remaining"`
	PercentUsed  float64 `json:"percent_used"`

	// ChargesByType omits kinds that summed to zero, so a consumer cannot
	// tell "no usage recorded" from "exactly zero usage". Historical output
	// behaves this way and downstream tooling depends on it.
	ChargesByType map[charges.Kind]float64 `json:"charges_by_type"`
	Adjustments   float64                  `json:"adjustments"`

	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	DaysElapsed   int        `json:"days_elapsed"`
	DaysRemaining *int       `json:"days_remaining,omitempty"`
	DaysTotal     *int       `json:"days_total,omitempty"`

	JobStats *charges.JobStats `json:"job_stats,omitempty"`
}

// Report maps resource name to its usage entry.
type Report map[string]Entry

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
