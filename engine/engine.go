// Package engine owns the job lifecycle: it creates records, spawns and
// cancels workloads, reports progress, exposes results, and sweeps expired
// records. It is the only writer of job state; runners report back through
// it and never touch the store.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/id"
	"github.com/lemon-tea-ai/arena/invoke"
	"github.com/lemon-tea-ai/arena/job"
	mw "github.com/lemon-tea-ai/arena/middleware"
	"github.com/lemon-tea-ai/arena/runner"
)

// instrumentationName is the OTel scope for engine-owned middleware.
const instrumentationName = "github.com/lemon-tea-ai/arena"

// Engine coordinates job records in the store with the workloads running
// against them.
type Engine struct {
	store    job.Store
	registry *job.Registry
	runner   *runner.Runner
	catalog  *invoke.Catalog
	logger   *slog.Logger
	chain    mw.Middleware

	mws []mw.Middleware

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMiddleware appends middleware to the engine's chain, after the
// built-in recover/tracing/metrics/logging stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// If not set, the global provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// New creates an Engine over the given store and collaborators.
func New(store job.Store, invoker arena.Invoker, evaluator arena.Evaluator, catalog *invoke.Catalog, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, arena.ErrNoStore
	}

	e := &Engine{
		store:    store,
		registry: job.NewRegistry(),
		catalog:  catalog,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	// The engine is the runner's progress reporter.
	e.runner = runner.New(invoker, evaluator, e, runner.WithLogger(e.logger))

	var tracingMw mw.Middleware
	if e.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(e.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	var metricsMw mw.Middleware
	if e.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(e.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	allMws := []mw.Middleware{
		mw.Recover(e.logger),
		tracingMw,
		metricsMw,
		mw.Logging(e.logger),
	}
	allMws = append(allMws, e.mws...)
	e.chain = mw.Chain(allMws...)

	return e, nil
}

// Registry returns the live workload registry.
func (e *Engine) Registry() *job.Registry { return e.registry }

// Catalog returns the model catalog.
func (e *Engine) Catalog() *invoke.Catalog { return e.catalog }

// ──────────────────────────────────────────────────
// Creation
// ──────────────────────────────────────────────────

// CreateCompare validates the input and persists a pending compare job.
// An empty model list expands to the full catalog before persisting, so
// the payload always carries the concrete set. The job does not run until
// Start is called.
func (e *Engine) CreateCompare(ctx context.Context, in arena.CompareInput) (*job.Job, error) {
	if len(in.Models) == 0 {
		in.Models = e.catalog.Names()
	}
	if err := in.Validate(e.catalog.Known); err != nil {
		return nil, err
	}
	return e.create(ctx, job.KindCompare, in)
}

// CreateBatch validates the input and persists a pending batch job.
func (e *Engine) CreateBatch(ctx context.Context, in arena.BatchCompareInput) (*job.Job, error) {
	if len(in.Models) == 0 {
		in.Models = e.catalog.Names()
	}
	if err := in.Validate(e.catalog.Known); err != nil {
		return nil, err
	}
	return e.create(ctx, job.KindBatchCompare, in)
}

func (e *Engine) create(ctx context.Context, kind job.Kind, payload any) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("arena: marshal %s payload: %w", kind, err)
	}

	now := time.Now().UTC()
	j := &job.Job{
		ID:        id.NewJobID(),
		Kind:      kind,
		Status:    job.StatusPending,
		Payload:   data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.PutJob(ctx, j); err != nil {
		return nil, err
	}

	e.logger.Info("job created",
		slog.String("job_id", j.ID.String()),
		slog.String("job_kind", string(kind)),
	)
	return j, nil
}

// ──────────────────────────────────────────────────
// Execution
// ──────────────────────────────────────────────────

// Start transitions a pending job to running and spawns its workload.
// It returns as soon as the record is persisted; the workload runs on its
// own goroutine with a context detached from the caller's.
func (e *Engine) Start(ctx context.Context, jobID id.JobID) error {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusPending {
		return fmt.Errorf("%w: job %s is %s, only pending jobs can start", arena.ErrValidation, jobID, j.Status)
	}

	now := time.Now().UTC()
	j.Status = job.StatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	if err := e.store.PutJob(ctx, j); err != nil {
		return err
	}

	// The workload outlives the request that started it.
	runCtx, cancel := context.WithCancel(context.Background())
	e.registry.Register(jobID, cancel)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		defer e.registry.Unregister(jobID)

		err := e.chain(runCtx, j, func(ctx context.Context) error {
			return e.execute(ctx, j)
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			e.fail(context.WithoutCancel(runCtx), jobID, err)
		}
	}()

	return nil
}

// execute runs the job's workload to a terminal state. Completion and
// cancellation persist their own terminal records here; any returned
// non-cancellation error is persisted as failed by the caller.
func (e *Engine) execute(ctx context.Context, j *job.Job) error {
	switch j.Kind {
	case job.KindCompare:
		var in arena.CompareInput
		if err := json.Unmarshal(j.Payload, &in); err != nil {
			return fmt.Errorf("arena: decode compare payload: %w", err)
		}
		models, err := e.catalog.Resolve(in.Models)
		if err != nil {
			return err
		}

		cmp, err := e.runner.RunCompare(ctx, j.ID, in, models)
		if err != nil {
			if isCancellation(err) {
				e.markCancelled(context.WithoutCancel(ctx), j.ID, nil)
			}
			return err
		}
		return e.complete(ctx, j.ID, cmp)

	case job.KindBatchCompare:
		var in arena.BatchCompareInput
		if err := json.Unmarshal(j.Payload, &in); err != nil {
			return fmt.Errorf("arena: decode batch payload: %w", err)
		}
		models, err := e.catalog.Resolve(in.Models)
		if err != nil {
			return err
		}

		batch, err := e.runner.RunBatch(ctx, j.ID, in, models)
		if err != nil {
			if isCancellation(err) {
				// Keep whatever completed before the cancel.
				e.markCancelled(context.WithoutCancel(ctx), j.ID, batch)
			}
			return err
		}
		return e.complete(ctx, j.ID, batch)

	default:
		return fmt.Errorf("arena: unknown job kind %q", j.Kind)
	}
}

// Progress records a progress update for a running job. Percent is clamped
// so progress never moves backwards and never exceeds 100. Updates for jobs
// that are no longer running are dropped. Implements runner.Reporter.
func (e *Engine) Progress(ctx context.Context, jobID id.JobID, percent int, message string) error {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, arena.ErrJobNotFound) {
			return nil // deleted mid-run
		}
		return err
	}
	if j.Status != job.StatusRunning {
		return nil
	}

	if percent < j.Progress {
		percent = j.Progress
	}
	if percent > 100 {
		percent = 100
	}

	j.Progress = percent
	j.ProgressMessage = message
	j.UpdatedAt = time.Now().UTC()
	return e.store.PutJob(ctx, j)
}

// complete persists the terminal completed record with its result payload.
func (e *Engine) complete(ctx context.Context, jobID id.JobID, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("arena: marshal result: %w", err)
	}

	return e.transition(ctx, jobID, func(j *job.Job) {
		now := time.Now().UTC()
		j.Status = job.StatusCompleted
		j.Progress = 100
		j.ProgressMessage = ""
		j.Result = data
		j.CompletedAt = &now
		j.UpdatedAt = now
	})
}

// fail persists the terminal failed record.
func (e *Engine) fail(ctx context.Context, jobID id.JobID, cause error) {
	err := e.transition(ctx, jobID, func(j *job.Job) {
		now := time.Now().UTC()
		j.Status = job.StatusFailed
		j.Error = cause.Error()
		j.CompletedAt = &now
		j.UpdatedAt = now
	})
	if err != nil {
		e.logger.Error("failed to persist job failure",
			slog.String("job_id", jobID.String()),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()),
		)
	}
}

// markCancelled persists the terminal cancelled record. A batch job keeps
// its partial result so completed combinations are not lost, but the result
// is only served once a job completes.
func (e *Engine) markCancelled(ctx context.Context, jobID id.JobID, partial *arena.BatchComparison) {
	var data json.RawMessage
	if partial != nil && len(partial.Comparisons) > 0 {
		if b, err := json.Marshal(partial); err == nil {
			data = b
		}
	}

	err := e.transition(ctx, jobID, func(j *job.Job) {
		now := time.Now().UTC()
		j.Status = job.StatusCancelled
		if data != nil {
			j.Result = data
		}
		j.CompletedAt = &now
		j.UpdatedAt = now
	})
	if err != nil {
		e.logger.Error("failed to persist job cancellation",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// transition re-reads the record and applies mutate before writing, so a
// job deleted mid-run is never resurrected and a terminal record is never
// overwritten.
func (e *Engine) transition(ctx context.Context, jobID id.JobID, mutate func(*job.Job)) error {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, arena.ErrJobNotFound) {
			return nil
		}
		return err
	}
	if j.Status.Terminal() {
		return nil
	}

	mutate(j)
	return e.store.PutJob(ctx, j)
}

// ──────────────────────────────────────────────────
// Control
// ──────────────────────────────────────────────────

// Cancel requests cancellation of a job. A live workload is signalled and
// persists the cancelled record itself; a pending job (or a running record
// with no live workload, e.g. after a crash) is marked cancelled directly.
// Cancelling a terminal job is a no-op.
func (e *Engine) Cancel(ctx context.Context, jobID id.JobID) error {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return nil
	}

	if e.registry.Cancel(jobID) {
		e.logger.Info("cancellation signalled", slog.String("job_id", jobID.String()))
		return nil
	}

	// No live workload: mark the record directly.
	e.markCancelled(ctx, jobID, nil)
	return nil
}

// Get returns the job record.
func (e *Engine) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return e.store.GetJob(ctx, jobID)
}

// Result returns the result payload of a completed job. Any other state
// returns ErrNotReady, including cancelled jobs that carry a partial result.
func (e *Engine) Result(ctx context.Context, jobID id.JobID) (json.RawMessage, error) {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != job.StatusCompleted {
		return nil, fmt.Errorf("%w: job %s is %s", arena.ErrNotReady, jobID, j.Status)
	}
	return j.Result, nil
}

// List returns all job records, newest first.
func (e *Engine) List(ctx context.Context) ([]*job.Job, error) {
	jobs, err := e.store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
		}
		return jobs[i].ID.String() < jobs[k].ID.String()
	})
	return jobs, nil
}

// Delete cancels any live workload and removes the record. Deleting a
// missing id is not an error.
func (e *Engine) Delete(ctx context.Context, jobID id.JobID) error {
	// Best-effort: the workload will observe cancellation and find its
	// record gone when it tries to persist a terminal state.
	e.registry.Cancel(jobID)
	return e.store.DeleteJob(ctx, jobID)
}

// ──────────────────────────────────────────────────
// Maintenance
// ──────────────────────────────────────────────────

// Cleanup deletes terminal records whose last update is older than
// retention and returns how many were removed. Pending and running records
// are never touched.
func (e *Engine) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	jobs, err := e.store.ListJobs(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-retention)
	removed := 0
	for _, j := range jobs {
		if !j.Status.Terminal() || !j.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := e.store.DeleteJob(ctx, j.ID); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		e.logger.Info("cleanup removed expired jobs", slog.Int("count", removed))
	}
	return removed, nil
}

// MarkOrphans fails running records that have no live workload. Called once
// at startup so jobs interrupted by a restart do not report running forever.
func (e *Engine) MarkOrphans(ctx context.Context) (int, error) {
	jobs, err := e.store.ListJobs(ctx)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, j := range jobs {
		if j.Status != job.StatusRunning || e.registry.Active(j.ID) {
			continue
		}
		now := time.Now().UTC()
		j.Status = job.StatusFailed
		j.Error = "interrupted by restart"
		j.CompletedAt = &now
		j.UpdatedAt = now
		if err := e.store.PutJob(ctx, j); err != nil {
			return marked, err
		}
		marked++
	}

	if marked > 0 {
		e.logger.Warn("marked orphaned jobs as failed", slog.Int("count", marked))
	}
	return marked, nil
}

// Shutdown waits for in-flight workloads to finish, or returns ctx.Err()
// if the deadline expires first. It does not cancel them; callers that want
// a hard stop should Cancel jobs first.
func (e *Engine) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
