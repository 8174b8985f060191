package job

import (
	"context"
	"sync"

	"github.com/lemon-tea-ai/arena/id"
)

// Registry tracks the cancellation handle of every currently executing
// job workload. It is the only process-wide mutable view of live jobs,
// is never persisted, and is safe for concurrent use.
//
// Register is called by the engine when it spawns a workload; Unregister
// when the workload reaches a terminal state; Cancel by any caller asking
// for cooperative cancellation. Cancellation is a signal only — the
// workload observes it at its next suspension point and exits on its own.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]context.CancelFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]context.CancelFunc),
	}
}

// Register stores the cancellation handle for a spawned job.
func (r *Registry) Register(jobID id.JobID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[jobID.String()] = cancel
}

// Unregister removes the handle for a job. Removing a missing id is a no-op.
func (r *Registry) Unregister(jobID id.JobID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, jobID.String())
}

// Cancel signals the job's workload if a live handle exists. It reports
// whether a handle was found; false means the job is not currently
// executing (never spawned, or already terminal).
func (r *Registry) Cancel(jobID id.JobID) bool {
	r.mu.RLock()
	cancel, ok := r.handles[jobID.String()]
	r.mu.RUnlock()

	if ok {
		cancel()
	}
	return ok
}

// Active reports whether a live handle exists for the job.
func (r *Registry) Active(jobID id.JobID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[jobID.String()]
	return ok
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
