package runner_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/id"
	"github.com/lemon-tea-ai/arena/runner"
)

// fakeInvoker returns canned results keyed by model name, or an error result
// for names in failing.
type fakeInvoker struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   []string

	// onInvoke, when set, runs before each invocation. Used to trigger
	// cancellation mid-run.
	onInvoke func(documentID, prompt string)
}

func (f *fakeInvoker) Invoke(_ context.Context, m arena.Model, documentID, prompt string) arena.ModelResult {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%s|%s|%s", m.Name, documentID, prompt))
	hook := f.onInvoke
	failing := f.failing[m.Name]
	f.mu.Unlock()

	if hook != nil {
		hook(documentID, prompt)
	}

	if failing {
		return arena.ModelResult{ModelName: m.Name, ModelID: m.ID, Error: "invocation failed"}
	}
	return arena.ModelResult{
		ModelName: m.Name,
		ModelID:   m.ID,
		Response:  "response from " + m.Name,
		LatencyMS: 12.5,
	}
}

type fakeEvaluator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ string, results []arena.ModelResult) (arena.Evaluation, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return arena.Evaluation{}, f.err
	}

	scores := make([]arena.EvaluationScore, 0, len(results))
	for _, r := range results {
		if r.Failed() {
			continue
		}
		scores = append(scores, arena.EvaluationScore{
			ModelName: r.ModelName,
			Score:     7,
			Reasoning: "adequate",
		})
	}
	return arena.Evaluation{Scores: scores, OverallSummary: "summary"}, nil
}

func (f *fakeEvaluator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeReporter records every progress update.
type fakeReporter struct {
	mu      sync.Mutex
	updates []update
}

type update struct {
	percent int
	message string
}

func (f *fakeReporter) Progress(_ context.Context, _ id.JobID, percent int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update{percent, message})
	return nil
}

func (f *fakeReporter) all() []update {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]update, len(f.updates))
	copy(out, f.updates)
	return out
}

var testModels = []arena.Model{
	{Name: "gpt-4o", ID: "gpt-4o"},
	{Name: "gpt-4o-mini", ID: "gpt-4o-mini"},
}

func TestRunCompare_PartialFailureIsData(t *testing.T) {
	inv := &fakeInvoker{failing: map[string]bool{"gpt-4o": true}}
	ev := &fakeEvaluator{}
	rep := &fakeReporter{}
	r := runner.New(inv, ev, rep)

	in := arena.CompareInput{DocumentID: "doc_1", Prompt: "summarize", Models: []string{"gpt-4o", "gpt-4o-mini"}}
	cmp, err := r.RunCompare(context.Background(), id.NewJobID(), in, testModels)
	if err != nil {
		t.Fatalf("RunCompare: %v", err)
	}

	if len(cmp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(cmp.Results))
	}
	if cmp.Failed() {
		t.Fatalf("comparison should not fail when one model succeeds, got error %q", cmp.Error)
	}

	// Results keep the model order regardless of completion order.
	if cmp.Results[0].ModelName != "gpt-4o" || !cmp.Results[0].Failed() {
		t.Errorf("results[0] = %+v, want failed gpt-4o entry", cmp.Results[0])
	}
	if cmp.Results[1].ModelName != "gpt-4o-mini" || cmp.Results[1].Failed() {
		t.Errorf("results[1] = %+v, want successful gpt-4o-mini entry", cmp.Results[1])
	}

	// Evaluation ran over the surviving result.
	if ev.callCount() != 1 {
		t.Errorf("evaluator called %d times, want 1", ev.callCount())
	}
	if len(cmp.Evaluation) != 1 || cmp.Evaluation[0].ModelName != "gpt-4o-mini" {
		t.Errorf("evaluation = %+v, want one score for gpt-4o-mini", cmp.Evaluation)
	}
	if cmp.OverallSummary != "summary" {
		t.Errorf("OverallSummary = %q, want %q", cmp.OverallSummary, "summary")
	}
}

func TestRunCompare_AllFailedSkipsEvaluation(t *testing.T) {
	inv := &fakeInvoker{failing: map[string]bool{"gpt-4o": true, "gpt-4o-mini": true}}
	ev := &fakeEvaluator{}
	r := runner.New(inv, ev, &fakeReporter{})

	in := arena.CompareInput{DocumentID: "doc_1", Prompt: "summarize", Models: []string{"gpt-4o", "gpt-4o-mini"}}
	cmp, err := r.RunCompare(context.Background(), id.NewJobID(), in, testModels)
	if err != nil {
		t.Fatalf("RunCompare: %v", err)
	}

	if !cmp.Failed() {
		t.Fatal("expected combination error when every invocation failed")
	}
	if ev.callCount() != 0 {
		t.Errorf("evaluator called %d times, want 0", ev.callCount())
	}
	// The per-model entries are still present.
	if len(cmp.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(cmp.Results))
	}
}

func TestRunCompare_EvaluationFailureIsData(t *testing.T) {
	inv := &fakeInvoker{}
	ev := &fakeEvaluator{err: errors.New("judge unavailable")}
	r := runner.New(inv, ev, &fakeReporter{})

	in := arena.CompareInput{DocumentID: "doc_1", Prompt: "summarize", Models: []string{"gpt-4o"}}
	cmp, err := r.RunCompare(context.Background(), id.NewJobID(), in, testModels[:1])
	if err != nil {
		t.Fatalf("RunCompare: %v", err)
	}

	if cmp.Failed() {
		t.Fatal("evaluation failure must not fail the comparison")
	}
	if len(cmp.Evaluation) != 0 {
		t.Errorf("expected no scores, got %+v", cmp.Evaluation)
	}
	if !strings.HasPrefix(cmp.OverallSummary, "evaluation failed:") {
		t.Errorf("OverallSummary = %q, want evaluation-failed note", cmp.OverallSummary)
	}
}

func TestRunCompare_ReportsPhases(t *testing.T) {
	rep := &fakeReporter{}
	r := runner.New(&fakeInvoker{}, &fakeEvaluator{}, rep)

	in := arena.CompareInput{DocumentID: "doc_1", Prompt: "p", Models: []string{"gpt-4o"}}
	if _, err := r.RunCompare(context.Background(), id.NewJobID(), in, testModels[:1]); err != nil {
		t.Fatalf("RunCompare: %v", err)
	}

	updates := rep.all()
	if len(updates) != 2 {
		t.Fatalf("expected 2 progress updates, got %d: %+v", len(updates), updates)
	}
	if updates[0].percent != 10 {
		t.Errorf("first update percent = %d, want 10", updates[0].percent)
	}
	if updates[1].percent != 80 {
		t.Errorf("second update percent = %d, want 80", updates[1].percent)
	}
}

func TestRunBatch_DocumentMajorOrder(t *testing.T) {
	inv := &fakeInvoker{}
	rep := &fakeReporter{}
	r := runner.New(inv, &fakeEvaluator{}, rep)

	in := arena.BatchCompareInput{
		DocumentIDs: []string{"doc_a", "doc_b"},
		Prompts:     []string{"p1", "p2"},
		Models:      []string{"gpt-4o"},
	}
	batch, err := r.RunBatch(context.Background(), id.NewJobID(), in, testModels[:1])
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if batch.TotalCombinations != 4 || len(batch.Comparisons) != 4 {
		t.Fatalf("expected 4 combinations, got total=%d len=%d", batch.TotalCombinations, len(batch.Comparisons))
	}
	if batch.Succeeded != 4 || batch.Failed != 0 {
		t.Errorf("succeeded=%d failed=%d, want 4/0", batch.Succeeded, batch.Failed)
	}

	wantOrder := []struct{ doc, prompt string }{
		{"doc_a", "p1"}, {"doc_a", "p2"}, {"doc_b", "p1"}, {"doc_b", "p2"},
	}
	for i, want := range wantOrder {
		got := batch.Comparisons[i]
		if got.DocumentID != want.doc || got.Prompt != want.prompt {
			t.Errorf("comparisons[%d] = (%s, %s), want (%s, %s)",
				i, got.DocumentID, got.Prompt, want.doc, want.prompt)
		}
	}

	// Progress: 10% start, then one update per combination ending at 90.
	updates := rep.all()
	if len(updates) != 5 {
		t.Fatalf("expected 5 updates, got %d: %+v", len(updates), updates)
	}
	wantPercents := []int{10, 30, 50, 70, 90}
	for i, want := range wantPercents {
		if updates[i].percent != want {
			t.Errorf("updates[%d].percent = %d, want %d", i, updates[i].percent, want)
		}
	}
	if updates[4].message != "combination 4/4" {
		t.Errorf("final message = %q, want %q", updates[4].message, "combination 4/4")
	}
}

func TestRunBatch_CombinationFailureDoesNotAbort(t *testing.T) {
	inv := &fakeInvoker{failing: map[string]bool{"gpt-4o": true}}
	r := runner.New(inv, &fakeEvaluator{}, &fakeReporter{})

	in := arena.BatchCompareInput{
		DocumentIDs: []string{"doc_a", "doc_b"},
		Prompts:     []string{"p1"},
		Models:      []string{"gpt-4o"},
	}
	batch, err := r.RunBatch(context.Background(), id.NewJobID(), in, testModels[:1])
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if len(batch.Comparisons) != 2 {
		t.Fatalf("expected 2 comparisons despite failures, got %d", len(batch.Comparisons))
	}
	if batch.Failed != 2 || batch.Succeeded != 0 {
		t.Errorf("succeeded=%d failed=%d, want 0/2", batch.Succeeded, batch.Failed)
	}
	for i, cmp := range batch.Comparisons {
		if !cmp.Failed() {
			t.Errorf("comparisons[%d] should carry a combination error", i)
		}
	}
}

func TestRunBatch_CancelledAtBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	inv := &fakeInvoker{}
	// Cancel while the first combination is in flight; the runner must
	// stop at the next boundary.
	inv.onInvoke = func(documentID, prompt string) {
		if documentID == "doc_a" && prompt == "p1" {
			cancel()
		}
	}
	r := runner.New(inv, &fakeEvaluator{}, &fakeReporter{})

	in := arena.BatchCompareInput{
		DocumentIDs: []string{"doc_a", "doc_b"},
		Prompts:     []string{"p1"},
		Models:      []string{"gpt-4o"},
	}
	batch, err := r.RunBatch(ctx, id.NewJobID(), in, testModels[:1])
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if batch == nil {
		t.Fatal("expected partial batch alongside the cancellation error")
	}
	if len(batch.Comparisons) >= 2 {
		t.Fatalf("expected fewer than 2 comparisons after cancel, got %d", len(batch.Comparisons))
	}

	// doc_b must never have been invoked.
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, call := range inv.calls {
		if strings.Contains(call, "doc_b") {
			t.Errorf("doc_b invoked after cancellation: %s", call)
		}
	}
}
