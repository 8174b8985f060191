// Package openai implements the model invoker on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"golang.org/x/time/rate"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/backoff"
)

var _ arena.Invoker = (*Invoker)(nil)

// DocumentResolver turns a document id into its text content. The document
// library implements this.
type DocumentResolver interface {
	Content(ctx context.Context, documentID string) (string, error)
}

const (
	// defaultMaxRetries bounds retries after rate-limit responses.
	defaultMaxRetries = 3

	// defaultTemperature keeps responses comparable across models.
	defaultTemperature = 0.2
)

// Option configures the Invoker.
type Option func(*Invoker)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Invoker) { i.logger = l }
}

// WithRateLimit caps outbound completion calls across all concurrent
// invocations.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(i *Invoker) { i.limiter = rate.NewLimiter(limit, burst) }
}

// WithBackoff sets the delay strategy for rate-limit retries.
func WithBackoff(s backoff.Strategy) Option {
	return func(i *Invoker) { i.strategy = s }
}

// WithMaxRetries sets how many times a rate-limited call is retried.
func WithMaxRetries(n int) Option {
	return func(i *Invoker) { i.maxRetries = n }
}

// WithTemperature sets the sampling temperature for all invocations.
func WithTemperature(t float64) Option {
	return func(i *Invoker) { i.temperature = t }
}

// Invoker runs one model over one document/prompt pair via the OpenAI API.
// Safe for concurrent use.
type Invoker struct {
	client      openai.Client
	resolver    DocumentResolver
	limiter     *rate.Limiter
	strategy    backoff.Strategy
	maxRetries  int
	temperature float64
	logger      *slog.Logger
}

// New creates an Invoker over the given client and document resolver.
func New(client openai.Client, resolver DocumentResolver, opts ...Option) *Invoker {
	i := &Invoker{
		client:      client,
		resolver:    resolver,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		strategy:    backoff.DefaultStrategy(),
		maxRetries:  defaultMaxRetries,
		temperature: defaultTemperature,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Invoke resolves the document, sends one chat completion request, and
// returns the outcome as data. Failures never propagate as errors: a bad
// model or a missing document yields a ModelResult with Error set, so one
// entrant can never abort the fan-out around it.
func (i *Invoker) Invoke(ctx context.Context, m arena.Model, documentID, prompt string) arena.ModelResult {
	start := time.Now()
	res := arena.ModelResult{ModelName: m.Name, ModelID: m.ID}

	content, err := i.resolver.Content(ctx, documentID)
	if err != nil {
		res.Error = fmt.Sprintf("resolve document %s: %v", documentID, err)
		res.LatencyMS = msSince(start)
		return res
	}

	text, err := i.complete(ctx, m, content, prompt)
	res.LatencyMS = msSince(start)
	if err != nil {
		i.logger.Warn("model invocation failed",
			slog.String("model", m.Name),
			slog.String("document_id", documentID),
			slog.String("error", err.Error()),
		)
		res.Error = err.Error()
		return res
	}

	res.Response = text
	return res
}

// complete sends the chat completion request, retrying rate-limited calls
// with backoff.
func (i *Invoker) complete(ctx context.Context, m arena.Model, content, prompt string) (string, error) {
	if err := i.limiter.Wait(ctx); err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(m.ID),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildUserMessage(content, prompt)),
		},
		Temperature: openai.Float(i.temperature),
	}

	var lastErr error
	for attempt := 0; attempt <= i.maxRetries; attempt++ {
		if attempt > 0 {
			delay := i.strategy.Delay(attempt)
			i.logger.Debug("rate limited, backing off",
				slog.String("model", m.Name),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		completion, err := i.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("completion call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", errors.New("no completion choices returned")
		}
		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("rate limited after %d retries: %w", i.maxRetries, lastErr)
}

// buildUserMessage frames the document so the model treats the prompt as an
// instruction over it rather than free conversation.
func buildUserMessage(content, prompt string) string {
	return fmt.Sprintf(
		"You are given a document to analyze.\n\n--- DOCUMENT ---\n%s\n--- END DOCUMENT ---\n\nTask: %s",
		content, prompt,
	)
}

// isRateLimitError reports whether err is an HTTP 429 from the API.
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
