package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/contractiq/server/internal/cache"
	"github.com/contractiq/server/internal/embedder"
)

// ChromemStore implements VectorStore with an embedded persistent chromem-go
// database. Each workspace gets its own collection named workspace_<id>.
type ChromemStore struct {
	db             *chromem.DB
	embedder       embedder.Embedder
	cache          *cache.Cache
	searchCacheTTL time.Duration
}

// ChromemOption is a functional option for configuring ChromemStore.
type ChromemOption func(*ChromemStore)

// WithSearchCache enables search result caching with the given TTL.
func WithSearchCache(c *cache.Cache, ttl time.Duration) ChromemOption {
	return func(s *ChromemStore) {
		s.cache = c
		s.searchCacheTTL = ttl
	}
}

// NewChromemStore opens (or creates) a persistent chromem database at
// persistDir.
func NewChromemStore(persistDir string, emb embedder.Embedder, opts ...ChromemOption) (*ChromemStore, error) {
	if err := os.MkdirAll(persistDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating persist directory %s: %w", persistDir, err)
	}

	db, err := chromem.NewPersistentDB(persistDir, false)
	if err != nil {
		return nil, fmt.Errorf("opening chromem db: %w", err)
	}

	s := &ChromemStore{db: db, embedder: emb}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// embeddingFunc adapts the embedder for chromem's query path.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if vec == nil {
			return nil, fmt.Errorf("no embedding for empty text")
		}
		return vec, nil
	}
}

func (s *ChromemStore) getOrCreateCollection(workspaceID string) (*chromem.Collection, error) {
	name := CollectionName(workspaceID)
	collection, err := s.db.GetOrCreateCollection(name, map[string]string{"workspace_id": workspaceID}, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting collection %s: %w", name, err)
	}
	return collection, nil
}

// IndexChunks embeds and stores document chunks. Empty texts and chunks whose
// embedding comes back absent are skipped; the indexed count is returned.
func (s *ChromemStore) IndexChunks(ctx context.Context, workspaceID, documentID, documentName string, chunks []IndexChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	collection, err := s.getOrCreateCollection(workspaceID)
	if err != nil {
		return 0, err
	}

	var texts []string
	var kept []IndexChunk
	for i, chunk := range chunks {
		if chunk.Text == "" {
			continue
		}
		if chunk.ID == "" {
			chunk.ID = fmt.Sprintf("chunk_%s_%d", documentID, i)
		}
		texts = append(texts, chunk.Text)
		kept = append(kept, chunk)
	}
	if len(kept) == 0 {
		return 0, nil
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	var docs []chromem.Document
	for i, chunk := range kept {
		if embeddings[i] == nil {
			continue
		}
		metadata := map[string]any{
			"workspace_id":  workspaceID,
			"document_id":   documentID,
			"document_name": documentName,
			"page_number":   chunk.PageNumber,
			"section_name":  chunk.SectionName,
			"chunk_type":    chunk.ChunkType,
			"type":          "chunk",
		}
		if chunk.CoordinatesJSON != "" {
			metadata["coordinates"] = chunk.CoordinatesJSON
		}
		docs = append(docs, chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Text,
			Metadata:  CleanMetadata(metadata),
			Embedding: embeddings[i],
		})
	}
	if len(docs) == 0 {
		return 0, nil
	}

	// Embeddings are precomputed, so no concurrency needed here.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return 0, fmt.Errorf("adding documents: %w", err)
	}
	return len(docs), nil
}

// Search embeds the query and returns the most similar chunks. Results are
// cached per workspace, query, and filter.
func (s *ChromemStore) Search(ctx context.Context, workspaceID, query string, nResults int, filter map[string]string) ([]SearchResult, error) {
	cacheKey := s.searchCacheKey(workspaceID, query, nResults, filter)
	if s.cache != nil {
		var cached []SearchResult
		if s.cache.Get(ctx, cacheKey, &cached) {
			return cached, nil
		}
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if queryVec == nil {
		return nil, nil
	}

	collection := s.db.GetCollection(CollectionName(workspaceID), s.embeddingFunc())
	if collection == nil {
		return nil, nil
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if nResults > count {
		nResults = count
	}

	results, err := collection.QueryEmbedding(ctx, queryVec, nResults, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	formatted := make([]SearchResult, 0, len(results))
	for _, r := range results {
		page, _ := strconv.Atoi(r.Metadata["page_number"])
		formatted = append(formatted, SearchResult{
			ID:           r.ID,
			Text:         r.Content,
			Similarity:   r.Similarity,
			Metadata:     r.Metadata,
			PageNumber:   page,
			SectionName:  r.Metadata["section_name"],
			DocumentID:   r.Metadata["document_id"],
			DocumentName: r.Metadata["document_name"],
		})
	}

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, formatted, s.searchCacheTTL)
	}
	return formatted, nil
}

func (s *ChromemStore) searchCacheKey(workspaceID, query string, nResults int, filter map[string]string) string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	filterStr := ""
	for _, k := range keys {
		filterStr += k + "=" + filter[k] + ";"
	}
	return fmt.Sprintf("vector_search:%s:%s:%d:%s",
		workspaceID, cache.HashText(query), nResults, cache.HashText(filterStr)[:8])
}

// DeleteDocument removes all indexed chunks for a document.
func (s *ChromemStore) DeleteDocument(ctx context.Context, workspaceID, documentID string) error {
	collection := s.db.GetCollection(CollectionName(workspaceID), s.embeddingFunc())
	if collection == nil {
		return nil
	}
	if err := collection.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return fmt.Errorf("deleting document vectors: %w", err)
	}
	return nil
}

// DeleteWorkspace drops the workspace's collection entirely.
func (s *ChromemStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	name := CollectionName(workspaceID)
	if err := s.db.DeleteCollection(name); err != nil {
		slog.Warn("failed to delete collection", "collection", name, "error", err)
		return err
	}
	return nil
}

var _ VectorStore = (*ChromemStore)(nil)
