// Package vectorstore provides interfaces and implementations for vector similarity search.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// IndexChunk is a document chunk queued for indexing.
type IndexChunk struct {
	ID          string
	Text        string
	PageNumber  int
	SectionName string
	ChunkType   string

	// CoordinatesJSON is an optional pre-encoded bounding box for highlighting.
	CoordinatesJSON string
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	ID           string
	Text         string
	Similarity   float32 // cosine similarity, 1 - distance; may be negative
	Metadata     map[string]string
	PageNumber   int
	SectionName  string
	DocumentID   string
	DocumentName string
}

// VectorStore defines the interface for per-workspace vector storage.
type VectorStore interface {
	// IndexChunks embeds and stores chunks for a document, returning the
	// number actually indexed. Chunks with empty text or absent embeddings
	// are skipped.
	IndexChunks(ctx context.Context, workspaceID, documentID, documentName string, chunks []IndexChunk) (int, error)

	// Search returns the chunks most similar to the query within a workspace.
	// filter optionally restricts by metadata equality.
	Search(ctx context.Context, workspaceID, query string, nResults int, filter map[string]string) ([]SearchResult, error)

	// DeleteDocument removes all indexed chunks for a document.
	DeleteDocument(ctx context.Context, workspaceID, documentID string) error

	// DeleteWorkspace removes a workspace's entire collection.
	DeleteWorkspace(ctx context.Context, workspaceID string) error
}

// CollectionName returns the collection name for a workspace.
func CollectionName(workspaceID string) string {
	return fmt.Sprintf("workspace_%s", workspaceID)
}

// CleanMetadata normalizes metadata for storage: nil values are dropped,
// scalars become strings, and composite values are JSON encoded.
func CleanMetadata(metadata map[string]any) map[string]string {
	cleaned := make(map[string]string, len(metadata))
	for key, value := range metadata {
		if value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			cleaned[key] = v
		case bool:
			cleaned[key] = strconv.FormatBool(v)
		case int:
			cleaned[key] = strconv.Itoa(v)
		case int64:
			cleaned[key] = strconv.FormatInt(v, 10)
		case float64:
			cleaned[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case float32:
			cleaned[key] = strconv.FormatFloat(float64(v), 'f', -1, 32)
		case []any, map[string]any:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			cleaned[key] = string(raw)
		default:
			cleaned[key] = fmt.Sprintf("%v", v)
		}
	}
	return cleaned
}
