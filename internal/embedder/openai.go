package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/contractiq/server/internal/apperr"
	"github.com/contractiq/server/internal/cache"
	"github.com/contractiq/server/internal/retry"
)

// DefaultEmbeddingModel is the default OpenAI embedding model.
const DefaultEmbeddingModel = "text-embedding-3-small"

// OpenAIEmbedder implements the Embedder interface using the OpenAI API.
// Single-text embeddings are cached by content fingerprint.
type OpenAIEmbedder struct {
	client   *openai.Client
	model    string
	config   ModelConfig
	cache    *cache.Cache
	cacheTTL time.Duration
}

// OpenAIOption is a functional option for configuring OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithModel sets the embedding model.
func WithModel(model string) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.model = model
		e.config = GetModelConfig(model)
	}
}

// WithCache enables embedding caching with the given TTL.
func WithCache(c *cache.Cache, ttl time.Duration) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// NewOpenAIEmbedder creates a new OpenAI embedder with the given options.
// Without an API key the embedder runs degraded: every text embeds to nil, so
// documents index zero vectors but the service stays up.
func NewOpenAIEmbedder(apiKey string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	e := &OpenAIEmbedder{
		model:  DefaultEmbeddingModel,
		config: GetModelConfig(DefaultEmbeddingModel),
	}
	if apiKey == "" {
		slog.Warn("no OpenAI API key configured, embeddings disabled")
	} else {
		client := openai.NewClient(option.WithAPIKey(apiKey))
		e.client = &client
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *OpenAIEmbedder) retryConfig() retry.Config {
	return retry.Config{
		MaxRetries:      3,
		InitialDelay:    time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Embed generates an embedding for a single text. Empty text embeds to nil
// without error.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.client == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("embedding:%s:%s", e.model, cache.HashText(text))
	if e.cache != nil {
		var cached []float32
		if e.cache.Get(ctx, cacheKey, &cached) {
			return cached, nil
		}
	}

	if len(text) > e.config.MaxChars {
		text = text[:e.config.MaxChars]
	}

	var vector []float32
	err := retry.Do(ctx, "embed", e.retryConfig(), func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(e.model),
			Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		})
		if err != nil {
			return mapEmbeddingError(err)
		}
		if len(resp.Data) == 0 {
			return apperr.ExternalService("OpenAI Embeddings", "empty response", true)
		}
		vector = toFloat32(resp.Data[0].Embedding)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Set(ctx, cacheKey, vector, e.cacheTTL)
	}
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts in a single API call.
// Positions with empty text stay nil. A failed batch logs the error and
// returns all-nil so callers can skip unembedded entries.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	if e.client == nil {
		return result, nil
	}

	var validTexts []string
	var validIndices []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if len(text) > e.config.MaxChars {
			text = text[:e.config.MaxChars]
		}
		validTexts = append(validTexts, text)
		validIndices = append(validIndices, i)
	}
	if len(validTexts) == 0 {
		return result, nil
	}

	var data []openai.Embedding
	err := retry.Do(ctx, "embed_batch", e.retryConfig(), func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(e.model),
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: validTexts},
		})
		if err != nil {
			return mapEmbeddingError(err)
		}
		if len(resp.Data) != len(validTexts) {
			return apperr.ExternalService("OpenAI Embeddings",
				fmt.Sprintf("expected %d embeddings, got %d", len(validTexts), len(resp.Data)), true)
		}
		data = resp.Data
		return nil
	})
	if err != nil {
		slog.Error("batch embedding failed", "texts", len(validTexts), "error", err)
		return result, nil
	}

	for i, d := range data {
		result[validIndices[i]] = toFloat32(d.Embedding)
	}
	return result, nil
}

// Dimension returns the embedding dimension for the configured model.
func (e *OpenAIEmbedder) Dimension() int {
	return e.config.Dimension
}

// ModelName returns the configured model name.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

func mapEmbeddingError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return apperr.RateLimit("OpenAI rate limit exceeded", 60).WithCause(err)
		}
		return apperr.ExternalService("OpenAI Embeddings", apiErr.Error(), apiErr.StatusCode >= 500).WithCause(err)
	}
	return apperr.ExternalService("OpenAI Embeddings", err.Error(), true).WithCause(err)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

var _ Embedder = (*OpenAIEmbedder)(nil)
