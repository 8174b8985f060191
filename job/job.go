package job

import (
	"encoding/json"
	"time"

	"github.com/lemon-tea-ai/arena/id"
)

// Kind selects which runner executes a job and the shape of its result.
type Kind string

const (
	// KindCompare runs one document/prompt pair across the selected models.
	KindCompare Kind = "compare"
	// KindBatchCompare runs the cross-product of documents and prompts.
	KindBatchCompare Kind = "batch_compare"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusPending means the job is persisted but not yet started.
	StatusPending Status = "pending"
	// StatusRunning means the job's workload is executing.
	StatusRunning Status = "running"
	// StatusCompleted means the job finished and its result is available.
	StatusCompleted Status = "completed"
	// StatusFailed means the job hit a systemic fault and will not produce
	// a result.
	StatusFailed Status = "failed"
	// StatusCancelled means the job was cancelled before finishing.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is absorbing: no transition ever
// leaves a terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job is the persisted record of one comparison workload. It is the sole
// entity the store keeps; everything a poller can observe lives here.
//
// Payload holds the immutable input the job was created with, encoded by
// kind (CompareInput or BatchCompareInput). Result is set when the job
// completes — and, for a cancelled batch, holds the combinations that
// finished before the cancellation signal. Error is set only on failure.
type Job struct {
	ID              id.JobID        `json:"id"`
	Kind            Kind            `json:"kind"`
	Status          Status          `json:"status"`
	Progress        int             `json:"progress"`
	ProgressMessage string          `json:"progress_message,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
