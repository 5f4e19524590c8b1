package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/server/internal/cache"
	"github.com/contractiq/server/internal/clauses"
	"github.com/contractiq/server/internal/extract"
	"github.com/contractiq/server/internal/llm"
	"github.com/contractiq/server/internal/repository"
	"github.com/contractiq/server/internal/vectorstore"
)

// stubLLM fails every call so extraction falls back to deterministic
// chunking and clause extraction yields nothing.
type stubLLM struct{}

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	return "", errors.New("model unavailable")
}

func (s *stubLLM) GenerateObject(ctx context.Context, prompt, schemaName string, schema map[string]any, out any, opts llm.GenerateOptions) error {
	return errors.New("model unavailable")
}

type fakeDocumentRepo struct {
	mu            sync.Mutex
	docs          map[uuid.UUID]*repository.Document
	statusUpdates []string
	processingErr error
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[uuid.UUID]*repository.Document)}
}

func (r *fakeDocumentRepo) Create(ctx context.Context, doc *repository.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeDocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *fakeDocumentRepo) List(ctx context.Context, workspaceID uuid.UUID) ([]*repository.Document, error) {
	return nil, nil
}

func (r *fakeDocumentRepo) Update(ctx context.Context, doc *repository.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeDocumentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status == repository.StatusProcessing && r.processingErr != nil {
		return r.processingErr
	}
	doc, ok := r.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	r.statusUpdates = append(r.statusUpdates, status)
	return nil
}

func (r *fakeDocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

func (r *fakeDocumentRepo) status(t *testing.T, id uuid.UUID) *repository.Document {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		t.Fatal("document missing from repository")
	}
	cp := *doc
	return &cp
}

type fakeClauseRepo struct {
	mu      sync.Mutex
	created []*repository.Clause
}

func (r *fakeClauseRepo) CreateBatch(ctx context.Context, rows []*repository.Clause) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, rows...)
	return nil
}

func (r *fakeClauseRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Clause, error) {
	return nil, repository.ErrNotFound
}

func (r *fakeClauseRepo) ListByDocument(ctx context.Context, documentID uuid.UUID, filter repository.ClauseFilter) ([]*repository.Clause, error) {
	return nil, nil
}

func (r *fakeClauseRepo) CountByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	return 0, nil
}

func (r *fakeClauseRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (r *fakeClauseRepo) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	return nil
}

type fakeVectorStore struct {
	mu         sync.Mutex
	indexCalls int
	indexErr   error
}

func (s *fakeVectorStore) IndexChunks(ctx context.Context, workspaceID, documentID, documentName string, chunks []vectorstore.IndexChunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexCalls++
	if s.indexErr != nil {
		return 0, s.indexErr
	}
	return len(chunks), nil
}

func (s *fakeVectorStore) Search(ctx context.Context, workspaceID, query string, nResults int, filter map[string]string) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (s *fakeVectorStore) DeleteDocument(ctx context.Context, workspaceID, documentID string) error {
	return nil
}

func (s *fakeVectorStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	return nil
}

// writeContractDOCX writes a minimal DOCX archive containing one paragraph.
func writeContractDOCX(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contract.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(w, `<?xml version="1.0"?><document><body><p><r><t>%s</t></r></p></body></document>`, text)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func newProcessingService(docs *fakeDocumentRepo, clauseRepo *fakeClauseRepo, store *fakeVectorStore) *DocumentService {
	model := &stubLLM{}
	disabled := cache.New(context.Background(), "not-a-redis-url", time.Minute)
	return NewDocumentService(
		docs,
		nil,
		clauseRepo,
		extract.New(model, "test-model"),
		clauses.NewExtractor(model, "test-model"),
		clauses.NewDeduplicator(model, "test-model"),
		store,
		disabled,
		DocumentConfig{MaxPages: 100, DocumentsTTL: time.Minute},
	)
}

func seedDocument(t *testing.T, docs *fakeDocumentRepo, filePath string) *repository.Document {
	t.Helper()
	doc := &repository.Document{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Name:        "contract.docx",
		FilePath:    filePath,
		FileType:    repository.FileTypeDOCX,
		Status:      repository.StatusUploaded,
	}
	if err := docs.Create(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestProcessDocument_Processes(t *testing.T) {
	docs := newFakeDocumentRepo()
	store := &fakeVectorStore{}
	svc := newProcessingService(docs, &fakeClauseRepo{}, store)

	doc := seedDocument(t, docs, writeContractDOCX(t,
		"The supplier shall deliver all goods within thirty days of the purchase order date."))
	svc.processDocument(context.Background(), doc)

	got := docs.status(t, doc.ID)
	if got.Status != repository.StatusProcessed {
		t.Fatalf("expected status processed, got %q (error %q)", got.Status, got.ErrorMessage)
	}
	if got.PageCount == nil || *got.PageCount != 1 {
		t.Errorf("expected page count 1, got %v", got.PageCount)
	}
	if store.indexCalls != 1 {
		t.Errorf("expected one indexing call, got %d", store.indexCalls)
	}
}

func TestProcessDocument_IndexingFailureStillProcessed(t *testing.T) {
	docs := newFakeDocumentRepo()
	store := &fakeVectorStore{indexErr: errors.New("vector store down")}
	svc := newProcessingService(docs, &fakeClauseRepo{}, store)

	doc := seedDocument(t, docs, writeContractDOCX(t,
		"The contractor shall maintain commercial general liability insurance at all times."))
	svc.processDocument(context.Background(), doc)

	got := docs.status(t, doc.ID)
	if got.Status != repository.StatusProcessed {
		t.Fatalf("indexing outage must not fail the document, got status %q (error %q)",
			got.Status, got.ErrorMessage)
	}
	if got.ErrorMessage != "" {
		t.Errorf("expected no error message, got %q", got.ErrorMessage)
	}
}

func TestProcessDocument_DeletedBeforeStart(t *testing.T) {
	docs := newFakeDocumentRepo()
	store := &fakeVectorStore{}
	svc := newProcessingService(docs, &fakeClauseRepo{}, store)

	// Never created in the repository, as if deleted before the goroutine ran.
	doc := &repository.Document{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		FilePath:    writeContractDOCX(t, "Either party may terminate for convenience."),
		FileType:    repository.FileTypeDOCX,
	}
	svc.processDocument(context.Background(), doc)

	if store.indexCalls != 0 {
		t.Errorf("deleted document must not be indexed, got %d calls", store.indexCalls)
	}
	if len(docs.statusUpdates) != 0 {
		t.Errorf("deleted document must not get status updates, got %v", docs.statusUpdates)
	}
}

func TestProcessDocument_StatusUpdateErrorFailsDocument(t *testing.T) {
	docs := newFakeDocumentRepo()
	docs.processingErr = errors.New("database busy")
	store := &fakeVectorStore{}
	svc := newProcessingService(docs, &fakeClauseRepo{}, store)

	doc := seedDocument(t, docs, writeContractDOCX(t,
		"Payment is due within thirty days of invoice receipt."))
	svc.processDocument(context.Background(), doc)

	got := docs.status(t, doc.ID)
	if got.Status != repository.StatusFailed {
		t.Fatalf("expected status failed, got %q", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "failed to update status") {
		t.Errorf("unexpected error message %q", got.ErrorMessage)
	}
	if store.indexCalls != 0 {
		t.Errorf("processing must stop before indexing, got %d calls", store.indexCalls)
	}
}
