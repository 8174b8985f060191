// Package runner executes comparison workloads: fanning models out over a
// document/prompt pair, judging the collected responses, and walking batch
// cross-products one combination at a time.
//
// The runner never touches the job store. Progress flows back through a
// Reporter owned by the engine, which is also the only writer of terminal
// states.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/id"
)

// Reporter receives progress updates during a run. Implementations must
// tolerate updates arriving after the job left the running state.
type Reporter interface {
	Progress(ctx context.Context, jobID id.JobID, percent int, message string) error
}

// Option configures the Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// Runner drives comparison workloads against an Invoker and an Evaluator.
type Runner struct {
	invoker   arena.Invoker
	evaluator arena.Evaluator
	reporter  Reporter
	logger    *slog.Logger
}

// New creates a Runner. All three collaborators are required.
func New(invoker arena.Invoker, evaluator arena.Evaluator, reporter Reporter, opts ...Option) *Runner {
	r := &Runner{
		invoker:   invoker,
		evaluator: evaluator,
		reporter:  reporter,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunCompare executes a single comparison: concurrent fan-out over models,
// then one evaluation pass over the collected results. Returns ctx.Err()
// if cancelled; every other outcome, including per-model failures and a
// failed evaluation, is data in the returned Comparison.
func (r *Runner) RunCompare(ctx context.Context, jobID id.JobID, in arena.CompareInput, models []arena.Model) (*arena.Comparison, error) {
	r.report(ctx, jobID, 10, "starting comparison")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmp := r.compare(ctx, jobID, in.DocumentID, in.Prompt, models, true)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cmp, nil
}

// RunBatch walks the document × prompt cross-product in document-major
// order, one combination at a time. Cancellation is honored at combination
// boundaries: the partial result accumulated so far is returned alongside
// ctx.Err() so the caller can persist it.
func (r *Runner) RunBatch(ctx context.Context, jobID id.JobID, in arena.BatchCompareInput, models []arena.Model) (*arena.BatchComparison, error) {
	total := in.Combinations()
	batch := &arena.BatchComparison{
		Comparisons:       make([]arena.Comparison, 0, total),
		TotalDocuments:    len(in.DocumentIDs),
		TotalPrompts:      len(in.Prompts),
		TotalCombinations: total,
	}

	r.report(ctx, jobID, 10, fmt.Sprintf("starting batch of %d combinations", total))

	done := 0
	for _, docID := range in.DocumentIDs {
		for _, prompt := range in.Prompts {
			if err := ctx.Err(); err != nil {
				return batch, err
			}

			cmp := r.compare(ctx, jobID, docID, prompt, models, false)
			if err := ctx.Err(); err != nil {
				return batch, err
			}

			batch.Comparisons = append(batch.Comparisons, *cmp)
			if cmp.Failed() {
				batch.Failed++
			} else {
				batch.Succeeded++
			}

			done++
			percent := 10 + (80*done)/total
			r.report(ctx, jobID, percent, fmt.Sprintf("combination %d/%d", done, total))
		}
	}

	return batch, nil
}

// compare runs one (document, prompt) combination to completion. Per-model
// errors and evaluation failures are recorded on the Comparison, never
// returned: failure isolation is the point.
func (r *Runner) compare(ctx context.Context, jobID id.JobID, documentID, prompt string, models []arena.Model, reportPhases bool) *arena.Comparison {
	cmp := &arena.Comparison{
		DocumentID: documentID,
		Prompt:     prompt,
		Results:    make([]arena.ModelResult, len(models)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range models {
		g.Go(func() error {
			cmp.Results[i] = r.invoker.Invoke(gctx, m, documentID, prompt)
			return nil
		})
	}
	// Goroutines never return errors; Wait is a join point.
	_ = g.Wait() //nolint:errcheck

	if ctx.Err() != nil {
		return cmp
	}

	allFailed := true
	for _, res := range cmp.Results {
		if !res.Failed() {
			allFailed = false
			break
		}
	}
	if allFailed {
		cmp.Error = "all model invocations failed"
		r.logger.Warn("combination failed, skipping evaluation",
			slog.String("job_id", jobID.String()),
			slog.String("document_id", documentID),
		)
		return cmp
	}

	if reportPhases {
		r.report(ctx, jobID, 80, "evaluating responses")
	}

	ev, err := r.evaluator.Evaluate(ctx, prompt, cmp.Results)
	if err != nil {
		if ctx.Err() != nil {
			return cmp
		}
		// A failed judge does not fail the comparison: the model
		// responses are still the primary output.
		r.logger.Warn("evaluation failed",
			slog.String("job_id", jobID.String()),
			slog.String("document_id", documentID),
			slog.String("error", err.Error()),
		)
		cmp.OverallSummary = fmt.Sprintf("evaluation failed: %v", err)
		return cmp
	}

	cmp.Evaluation = ev.Scores
	cmp.OverallSummary = ev.OverallSummary
	return cmp
}

func (r *Runner) report(ctx context.Context, jobID id.JobID, percent int, message string) {
	if r.reporter == nil {
		return
	}
	if err := r.reporter.Progress(ctx, jobID, percent, message); err != nil {
		r.logger.Warn("progress report failed",
			slog.String("job_id", jobID.String()),
			slog.Int("percent", percent),
			slog.String("error", err.Error()),
		)
	}
}
