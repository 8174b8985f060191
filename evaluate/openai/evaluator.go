// Package openai implements the evaluator on the OpenAI chat completions
// API. One judge call scores every model's response for a combination.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	arena "github.com/lemon-tea-ai/arena"
)

var _ arena.Evaluator = (*Evaluator)(nil)

// DefaultJudgeModel is the model used to score responses unless overridden.
const DefaultJudgeModel = "gpt-4o"

// judgeTemperature is kept low so scores are stable across runs.
const judgeTemperature = 0.0

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithJudgeModel overrides the judge model.
func WithJudgeModel(model string) Option {
	return func(e *Evaluator) { e.model = model }
}

// Evaluator scores a set of model responses with a single judge call.
type Evaluator struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// New creates an Evaluator over the given client.
func New(client openai.Client, opts ...Option) *Evaluator {
	e := &Evaluator{
		client: client,
		model:  DefaultJudgeModel,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// judgeReply is the JSON shape the judge is instructed to produce.
type judgeReply struct {
	Evaluations []struct {
		ModelName  string   `json:"model_name"`
		Score      int      `json:"score"`
		Reasoning  string   `json:"reasoning"`
		Strengths  []string `json:"strengths"`
		Weaknesses []string `json:"weaknesses"`
	} `json:"evaluations"`
	OverallSummary string `json:"overall_summary"`
}

// Evaluate sends every response (including errored entries, marked as such)
// to the judge and parses its verdict.
func (e *Evaluator) Evaluate(ctx context.Context, prompt string, results []arena.ModelResult) (arena.Evaluation, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildJudgePrompt(prompt, results)),
		},
		Temperature: openai.Float(judgeTemperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}

	completion, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return arena.Evaluation{}, fmt.Errorf("judge call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return arena.Evaluation{}, fmt.Errorf("judge returned no choices")
	}

	ev, err := parseJudgeReply(completion.Choices[0].Message.Content)
	if err != nil {
		return arena.Evaluation{}, err
	}
	return ev, nil
}

// buildJudgePrompt lays out the task and every model's response (or error)
// and pins down the exact JSON shape expected back.
func buildJudgePrompt(prompt string, results []arena.ModelResult) string {
	var b strings.Builder

	b.WriteString("You are an impartial judge comparing responses from multiple AI models ")
	b.WriteString("to the same task over the same document.\n\n")
	fmt.Fprintf(&b, "The task given to each model was:\n%s\n\n", prompt)
	b.WriteString("The responses to evaluate:\n")

	for _, r := range results {
		fmt.Fprintf(&b, "\n### Model: %s\n", r.ModelName)
		if r.Failed() {
			fmt.Fprintf(&b, "[ERROR: this model failed to produce a response: %s]\n", r.Error)
			continue
		}
		b.WriteString(r.Response)
		b.WriteString("\n")
	}

	b.WriteString(`
Score each model's response from 1 to 10 on accuracy, completeness, and
usefulness for the task. A model that failed to respond scores 1.

Reply with a JSON object of exactly this shape:
{
  "evaluations": [
    {
      "model_name": "<name>",
      "score": <1-10>,
      "reasoning": "<one paragraph>",
      "strengths": ["<strength>", ...],
      "weaknesses": ["<weakness>", ...]
    }
  ],
  "overall_summary": "<which model did best and why>"
}`)

	return b.String()
}

// parseJudgeReply decodes the judge's JSON, tolerating a markdown code
// fence around it.
func parseJudgeReply(raw string) (arena.Evaluation, error) {
	cleaned := stripCodeFence(raw)

	var reply judgeReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return arena.Evaluation{}, fmt.Errorf("decode judge reply: %w", err)
	}

	ev := arena.Evaluation{
		Scores:         make([]arena.EvaluationScore, 0, len(reply.Evaluations)),
		OverallSummary: reply.OverallSummary,
	}
	for _, item := range reply.Evaluations {
		ev.Scores = append(ev.Scores, arena.EvaluationScore{
			ModelName:  item.ModelName,
			Score:      item.Score,
			Reasoning:  item.Reasoning,
			Strengths:  item.Strengths,
			Weaknesses: item.Weaknesses,
		})
	}
	return ev, nil
}

// stripCodeFence removes a surrounding ```json ... ``` fence if present.
// Models sometimes wrap JSON output in one despite instructions.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
