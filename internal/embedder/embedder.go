// Package embedder provides interfaces and implementations for text embedding.
package embedder

import "context"

// Embedder defines the interface for text embedding services.
//
// Empty or whitespace-only input has no embedding: Embed returns a nil vector
// with no error, and EmbedBatch leaves a nil at that position.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs.
	// Returns a slice of embeddings in the same order as the input texts;
	// positions that could not be embedded are nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// ModelConfig holds configuration for a specific embedding model.
type ModelConfig struct {
	Dimension     int // Embedding dimension
	ContextLength int // Max tokens the model can process
	MaxChars      int // Max input characters before truncation
}

// KnownModels maps embedding model names to their configurations.
// The character caps are conservative to stay under the token limits.
var KnownModels = map[string]ModelConfig{
	"text-embedding-3-small": {
		Dimension:     1536,
		ContextLength: 8192,
		MaxChars:      32000, // ~8K tokens
	},
	"text-embedding-3-large": {
		Dimension:     3072,
		ContextLength: 8192,
		MaxChars:      32000,
	},
	"text-embedding-ada-002": {
		Dimension:     1536,
		ContextLength: 8192,
		MaxChars:      32000,
	},
}

// GetModelConfig returns the configuration for a model, or defaults if unknown.
func GetModelConfig(modelName string) ModelConfig {
	if cfg, ok := KnownModels[modelName]; ok {
		return cfg
	}
	return ModelConfig{
		Dimension:     1536,
		ContextLength: 8192,
		MaxChars:      32000,
	}
}
