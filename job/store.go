package job

import (
	"context"

	"github.com/lemon-tea-ai/arena/id"
)

// Store defines the persistence contract for job records. Records for
// different ids are fully independent: no ordering or locking is required
// across ids, and a write to one record never blocks access to another.
type Store interface {
	// PutJob replaces the record for the job's id atomically. A concurrent
	// reader never observes a partially written record.
	PutJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID. Returns arena.ErrJobNotFound if no
	// record exists.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// ListJobs returns a snapshot of all current records, in no guaranteed
	// order.
	ListJobs(ctx context.Context) ([]*Job, error)

	// DeleteJob removes the record. Deleting a missing id is not an error.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store.
	Close() error
}
