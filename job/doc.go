// Package job defines the persisted job record, its lifecycle states, the
// persistence contract (Store), and the in-memory registry of running
// workloads used for cooperative cancellation.
//
// Only the engine mutates records; runners report back through it and never
// touch the store directly.
package job
