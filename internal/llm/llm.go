// Package llm provides interfaces and implementations for Large Language Model clients.
package llm

import (
	"context"
)

// GenerateOptions configures the LLM generation request.
type GenerateOptions struct {
	// Model specifies the LLM model to use (e.g., "gpt-4o-mini").
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness in generation (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int
}

// LLM defines the interface for Large Language Model clients.
type LLM interface {
	// Generate sends a prompt to the LLM and returns the complete response text.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateObject sends a prompt with a JSON schema response format and
	// unmarshals the model output into out. schemaName labels the schema for
	// the API; schema is a JSON-schema object definition.
	GenerateObject(ctx context.Context, prompt string, schemaName string, schema map[string]any, out any, opts GenerateOptions) error
}
