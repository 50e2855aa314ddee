// Package jobs hosts background task definitions and the Asynq worker.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTreeIntegrity scans every project tree for nested-set violations.
	TaskTreeIntegrity = "tree:integrity"
	// TaskUsageWarmup pre-populates the usage report cache.
	TaskUsageWarmup = "usage:warmup"
)

// TreeIntegrityPayload selects which trees to scan; empty means all.
type TreeIntegrityPayload struct {
	TreeRoots []int64 `json:"tree_roots,omitempty"`
}

// NewTreeIntegrityTask constructs an Asynq task for the integrity scan.
func NewTreeIntegrityTask(payload TreeIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTreeIntegrity, data), nil
}

// UsageWarmupPayload selects which projects to warm; empty means every
// active root project.
type UsageWarmupPayload struct {
	ProjectCodes []string `json:"project_codes,omitempty"`
	Hierarchical bool     `json:"hierarchical"`
}

// NewUsageWarmupTask constructs an Asynq task for the cache warmup.
func NewUsageWarmupTask(payload UsageWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUsageWarmup, data), nil
}
