package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/contractiq/server/internal/apperr"
)

const (
	// DefaultModel is the default chat model.
	DefaultModel = "gpt-4o-mini"

	// DefaultTemperature keeps extraction and analysis deterministic.
	DefaultTemperature = 0.1
)

// OpenAIClient implements the LLM interface using the OpenAI API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// OpenAIOption is a functional option for configuring OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithModel sets the default model for the client.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

// NewOpenAIClient creates a new OpenAI LLM client with the given options.
// Without an API key the client is constructed in a degraded state where
// every call fails with a non-retryable error, so LLM-dependent features
// fall back to their error paths while the rest of the service runs.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) (*OpenAIClient, error) {
	c := &OpenAIClient{model: DefaultModel}
	if apiKey == "" {
		slog.Warn("no OpenAI API key configured, LLM calls disabled")
	} else {
		// NewClient returns a value, not a pointer
		client := openai.NewClient(option.WithAPIKey(apiKey))
		c.client = &client
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func errNoAPIKey() error {
	return apperr.ExternalService("OpenAI", "no API key configured", false)
}

// Generate sends a prompt to the model and returns the complete response text.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if c.client == nil {
		return "", errNoAPIKey()
	}
	params := c.buildParams(prompt, opts)

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", mapAPIError(err)
	}
	if len(completion.Choices) == 0 {
		return "", apperr.ExternalService("OpenAI", "no choices in response", true)
	}
	return completion.Choices[0].Message.Content, nil
}

// GenerateObject sends a prompt with a JSON schema response format and
// unmarshals the model output into out.
func (c *OpenAIClient) GenerateObject(ctx context.Context, prompt string, schemaName string, schema map[string]any, out any, opts GenerateOptions) error {
	if c.client == nil {
		return errNoAPIKey()
	}
	params := c.buildParams(prompt, opts)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   schemaName,
				Schema: schema,
				Strict: openai.Bool(true),
			},
		},
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return mapAPIError(err)
	}
	if len(completion.Choices) == 0 {
		return apperr.ExternalService("OpenAI", "no choices in response", true)
	}

	content := ExtractJSON(completion.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return apperr.ExternalService("OpenAI", fmt.Sprintf("invalid structured response: %v", err), true).WithCause(err)
	}
	return nil
}

func (c *OpenAIClient) buildParams(prompt string, opts GenerateOptions) openai.ChatCompletionNewParams {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(opts.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	return params
}

// mapAPIError converts OpenAI API errors into the application taxonomy.
// Rate limits carry a retry hint; other API failures are retryable upstream
// errors.
func mapAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return apperr.RateLimit("OpenAI rate limit exceeded", 60).WithCause(err)
		}
		return apperr.ExternalService("OpenAI", apiErr.Error(), apiErr.StatusCode >= 500).WithCause(err)
	}
	return apperr.ExternalService("OpenAI", err.Error(), true).WithCause(err)
}

// ExtractJSON strips markdown code fences that some models wrap around JSON
// output.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(strings.TrimSpace(response), "```")

	return strings.TrimSpace(response)
}

var _ LLM = (*OpenAIClient)(nil)
