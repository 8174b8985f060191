package arena

import "context"

// Model identifies one entrant in a comparison: a human-facing name and the
// provider-side model id used for API calls.
type Model struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ModelResult is the outcome of one model invocation over one
// document/prompt pair. A failed invocation carries Error and an empty
// Response; it is data, not a fault, so one bad model never aborts the
// fan-out it belongs to.
type ModelResult struct {
	ModelName string  `json:"model_name"`
	ModelID   string  `json:"model_id"`
	Response  string  `json:"response,omitempty"`
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

// Failed reports whether the invocation errored.
func (r ModelResult) Failed() bool { return r.Error != "" }

// EvaluationScore is the judge's verdict on one model's response.
// Scores range 1-10.
type EvaluationScore struct {
	ModelName  string   `json:"model_name"`
	Score      int      `json:"score"`
	Reasoning  string   `json:"reasoning"`
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
}

// Evaluation is the judge's full output for one combination.
type Evaluation struct {
	Scores         []EvaluationScore `json:"scores,omitempty"`
	OverallSummary string            `json:"overall_summary,omitempty"`
}

// Comparison is the complete outcome for one (document, prompt) combination:
// every model's response plus the judge's evaluation. Error is set only when
// the combination as a whole could not proceed (every invocation failed);
// the batch runner records it and moves on.
type Comparison struct {
	DocumentID     string            `json:"document_id"`
	Prompt         string            `json:"prompt"`
	Results        []ModelResult     `json:"results,omitempty"`
	Evaluation     []EvaluationScore `json:"evaluation,omitempty"`
	OverallSummary string            `json:"overall_summary,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Failed reports whether the combination as a whole failed.
func (c Comparison) Failed() bool { return c.Error != "" }

// BatchComparison is the result payload of a batch job: one Comparison per
// (document, prompt) combination in document-major order, plus summary
// counts so partial success is visible without inspecting every entry.
type BatchComparison struct {
	Comparisons       []Comparison `json:"comparisons"`
	TotalDocuments    int          `json:"total_documents"`
	TotalPrompts      int          `json:"total_prompts"`
	TotalCombinations int          `json:"total_combinations"`
	Succeeded         int          `json:"succeeded"`
	Failed            int          `json:"failed"`
}

// Invoker runs one model over one document/prompt pair. Implementations own
// resolving the document reference; a resolution failure surfaces as an
// invocation-time error on the returned ModelResult. Safe for many
// concurrent calls against the same document.
type Invoker interface {
	Invoke(ctx context.Context, model Model, documentID, prompt string) ModelResult
}

// Evaluator judges a full set of per-model results for one prompt. It is
// called once per combination, after all invocations have settled, and
// receives errored entries too so it can account for missing data.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string, results []ModelResult) (Evaluation, error)
}
