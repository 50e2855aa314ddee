// Package charges aggregates consumption recorded across the per-kind charge
// sources.
package charges

import (
	"errors"
	"fmt"

	"github.com/tallyhq/tally/internal/resources"
)

// Kind is a category of consumption a resource type can accrue.
type Kind string

// Known charge kinds, each backed by its own charge table.
const (
	KindCompute Kind = "compute"
	KindDAV     Kind = "dav"
	KindDisk    Kind = "disk"
	KindArchive Kind = "archive"
)

// ErrJobStatsNotApplicable is returned for resource types that do not record
// job counts or core-hours.
var ErrJobStatsNotApplicable = errors.New("charges: job statistics not applicable")

// chargeTables maps each kind to its backing table and whether the table
// carries job count and core-hour columns.
var chargeTables = map[Kind]struct {
	table       string
	hasJobStats bool
}{
	KindCompute: {table: "charges_compute", hasJobStats: true},
	KindDAV:     {table: "charges_dav", hasJobStats: true},
	KindDisk:    {table: "charges_disk", hasJobStats: false},
	KindArchive: {table: "charges_archive", hasJobStats: false},
}

// kindsByType is the closed dispatch table from resource type to the ordered
// charge kinds it can accrue. New types or kinds are added here, not in
// branching logic.
var kindsByType = map[resources.Type][]Kind{
	resources.TypeHPC:     {KindCompute, KindDAV},
	resources.TypeDAV:     {KindCompute, KindDAV},
	resources.TypeDisk:    {KindDisk},
	resources.TypeArchive: {KindArchive},
}

// KindsForType returns the ordered charge kinds a resource type can accrue.
func KindsForType(t resources.Type) ([]Kind, error) {
	kinds, ok := kindsByType[t]
	if !ok {
		return nil, fmt.Errorf("charges: no charge kinds for resource type %q", t)
	}
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out, nil
}

// HasJobStats reports whether the kind's charge records carry job statistics.
func (k Kind) HasJobStats() bool {
	return chargeTables[k].hasJobStats
}

// JobStats accumulates job counts and core-hours across charge records.
type JobStats struct {
	JobCount  int64   `json:"job_count"`
	CoreHours float64 `json:"core_hours"`
}

func (s JobStats) add(other JobStats) JobStats {
	return JobStats{JobCount: s.JobCount + other.JobCount, CoreHours: s.CoreHours + other.CoreHours}
}
