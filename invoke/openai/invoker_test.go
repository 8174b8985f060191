package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3"

	arena "github.com/lemon-tea-ai/arena"
)

type failingResolver struct{}

func (failingResolver) Content(_ context.Context, documentID string) (string, error) {
	return "", fmt.Errorf("document %s gone", documentID)
}

func TestInvoke_ResolveFailureIsData(t *testing.T) {
	inv := New(openai.Client{}, failingResolver{})

	res := inv.Invoke(context.Background(), arena.Model{Name: "gpt-4o", ID: "gpt-4o"}, "doc_1", "summarize")
	if !res.Failed() {
		t.Fatal("expected a failed result for an unresolvable document")
	}
	if !strings.HasPrefix(res.Error, "resolve document doc_1:") {
		t.Errorf("Error = %q, want resolve-document message", res.Error)
	}
	if res.Response != "" {
		t.Errorf("Response = %q, want empty", res.Response)
	}
}

func TestBuildUserMessage(t *testing.T) {
	msg := buildUserMessage("the document body", "summarize it")

	if !strings.Contains(msg, "the document body") {
		t.Error("message missing document content")
	}
	if !strings.Contains(msg, "Task: summarize it") {
		t.Error("message missing the task")
	}
	if !strings.Contains(msg, "--- DOCUMENT ---") {
		t.Error("message missing document framing")
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &openai.Error{StatusCode: 429}, true},
		{"wrapped 429", fmt.Errorf("call: %w", &openai.Error{StatusCode: 429}), true},
		{"500", &openai.Error{StatusCode: 500}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRateLimitError(tt.err); got != tt.want {
				t.Errorf("isRateLimitError = %v, want %v", got, tt.want)
			}
		})
	}
}
