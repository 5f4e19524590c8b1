package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/contractiq/server/internal/apperr"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json",
			input:    `{"answer": "yes"}`,
			expected: `{"answer": "yes"}`,
		},
		{
			name:     "json fence",
			input:    "```json\n{\"answer\": \"yes\"}\n```",
			expected: `{"answer": "yes"}`,
		},
		{
			name:     "bare fence",
			input:    "```\n{\"answer\": \"yes\"}\n```",
			expected: `{"answer": "yes"}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "  \n{\"a\": 1}\n  ",
			expected: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.expected {
				t.Errorf("ExtractJSON() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestNewOpenAIClient_NoKeyDegrades(t *testing.T) {
	c, err := NewOpenAIClient("")
	if err != nil {
		t.Fatalf("missing api key must not prevent construction: %v", err)
	}

	_, err = c.Generate(context.Background(), "hello", GenerateOptions{})
	if err == nil {
		t.Fatal("degraded Generate should error")
	}
	if apperr.IsRetryable(err) {
		t.Error("missing key error must not be retryable")
	}

	var out map[string]any
	err = c.GenerateObject(context.Background(), "hello", "s", map[string]any{"type": "object"}, &out, GenerateOptions{})
	if err == nil {
		t.Fatal("degraded GenerateObject should error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeExternalService {
		t.Errorf("expected external service error, got %v", err)
	}
}

func TestNewOpenAIClient_ModelOption(t *testing.T) {
	c, err := NewOpenAIClient("sk-test", WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", c.model)
	}
}
