package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/server/internal/apperr"
	"github.com/contractiq/server/internal/cache"
	"github.com/contractiq/server/internal/clauses"
	"github.com/contractiq/server/internal/extract"
	"github.com/contractiq/server/internal/repository"
	"github.com/contractiq/server/internal/vectorstore"
)

// DocumentConfig carries upload and processing limits. An empty AllowedTypes
// permits every supported file type.
type DocumentConfig struct {
	UploadDir    string
	MaxFileSize  int64
	MaxPages     int
	AllowedTypes []string
	DocumentsTTL time.Duration
}

// DocumentService handles document upload, processing, and lifecycle.
type DocumentService struct {
	docs       repository.DocumentRepository
	workspaces repository.WorkspaceRepository
	clauseRepo repository.ClauseRepository
	extractor  *extract.Extractor
	clauseExt  *clauses.Extractor
	dedup      *clauses.Deduplicator
	store      vectorstore.VectorStore
	cache      *cache.Cache
	config     DocumentConfig
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	docs repository.DocumentRepository,
	workspaces repository.WorkspaceRepository,
	clauseRepo repository.ClauseRepository,
	extractor *extract.Extractor,
	clauseExt *clauses.Extractor,
	dedup *clauses.Deduplicator,
	store vectorstore.VectorStore,
	c *cache.Cache,
	config DocumentConfig,
) *DocumentService {
	return &DocumentService{
		docs:       docs,
		workspaces: workspaces,
		clauseRepo: clauseRepo,
		extractor:  extractor,
		clauseExt:  clauseExt,
		dedup:      dedup,
		store:      store,
		cache:      c,
		config:     config,
	}
}

// Upload stores an uploaded file, creates the document row, and starts
// background processing.
func (s *DocumentService) Upload(ctx context.Context, userID, workspaceID uuid.UUID, filename string, size int64, file io.Reader) (*repository.Document, error) {
	if err := s.requireWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	fileType, err := fileTypeFor(filename, s.config.AllowedTypes)
	if err != nil {
		return nil, err
	}
	if size > s.config.MaxFileSize {
		return nil, apperr.Validation(
			fmt.Sprintf("File exceeds the maximum size of %d MB", s.config.MaxFileSize/(1024*1024)), "file")
	}

	docID := uuid.New()
	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return nil, apperr.Internal(err)
	}
	path := filepath.Join(s.config.UploadDir, fmt.Sprintf("%s.%s", docID, fileType))

	dst, err := os.Create(path)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	written, err := io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, apperr.Internal(err)
	}

	now := time.Now()
	doc := &repository.Document{
		ID:               docID,
		WorkspaceID:      workspaceID,
		Name:             filename,
		OriginalFilename: filename,
		FilePath:         path,
		FileType:         fileType,
		Status:           repository.StatusUploaded,
		FileSize:         written,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		os.Remove(path)
		return nil, apperr.Internal(err)
	}

	s.cache.InvalidateWorkspace(ctx, workspaceID.String())

	// Processing outlives the request.
	go s.processDocument(context.Background(), doc)

	return doc, nil
}

// List returns all documents in a workspace, served from cache when possible.
func (s *DocumentService) List(ctx context.Context, userID, workspaceID uuid.UUID) ([]*repository.Document, error) {
	if err := s.requireWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("workspace:%s:documents", workspaceID)
	var cached []*repository.Document
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	docs, err := s.docs.List(ctx, workspaceID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.cache.Set(ctx, key, docs, s.config.DocumentsTTL)
	return docs, nil
}

// Get loads a document, enforcing workspace ownership.
func (s *DocumentService) Get(ctx context.Context, userID, documentID uuid.UUID) (*repository.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("document", documentID.String())
		}
		return nil, apperr.Internal(err)
	}
	if err := s.requireWorkspace(ctx, userID, doc.WorkspaceID); err != nil {
		return nil, apperr.NotFound("document", documentID.String())
	}
	return doc, nil
}

// FilePath returns the on-disk path of a document's original file.
func (s *DocumentService) FilePath(ctx context.Context, userID, documentID uuid.UUID) (string, *repository.Document, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return "", nil, err
	}
	if _, err := os.Stat(doc.FilePath); err != nil {
		return "", nil, apperr.NotFound("document file", documentID.String())
	}
	return doc.FilePath, doc, nil
}

// Delete removes a document, its file, its vectors, and its clauses.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID uuid.UUID) error {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}

	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove document file", "document_id", documentID, "error", err)
	}
	if err := s.store.DeleteDocument(ctx, doc.WorkspaceID.String(), documentID.String()); err != nil {
		slog.Warn("failed to delete document vectors", "document_id", documentID, "error", err)
	}
	if err := s.docs.Delete(ctx, documentID); err != nil {
		return apperr.Internal(err)
	}

	s.cache.InvalidateDocument(ctx, documentID.String(), doc.WorkspaceID.String())
	return nil
}

// processDocument runs the ingest pipeline: text extraction, chunk indexing,
// and clause extraction. Failures mark the document failed instead of
// returning an error.
func (s *DocumentService) processDocument(ctx context.Context, doc *repository.Document) {
	slog.Info("processing document", "document_id", doc.ID, "file_type", doc.FileType)

	// The document may already be gone by the time the goroutine runs.
	if _, err := s.docs.GetByID(ctx, doc.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("document deleted before processing started", "document_id", doc.ID)
			return
		}
		s.markDocumentFailed(ctx, doc, fmt.Sprintf("failed to load document: %v", err))
		return
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, repository.StatusProcessing, ""); err != nil {
		s.markDocumentFailed(ctx, doc, fmt.Sprintf("failed to update status: %v", err))
		return
	}

	result, err := s.extractDocument(ctx, doc)
	if err != nil {
		s.markDocumentFailed(ctx, doc, fmt.Sprintf("text extraction failed: %v", err))
		return
	}
	if s.config.MaxPages > 0 && result.PageCount > s.config.MaxPages {
		s.markDocumentFailed(ctx, doc, fmt.Sprintf(
			"document has %d pages, exceeding the limit of %d", result.PageCount, s.config.MaxPages))
		return
	}

	// Indexing is best effort. A document with no vectors still carries its
	// clauses, so a vector store outage must not fail the ingest.
	indexed, err := s.store.IndexChunks(ctx, doc.WorkspaceID.String(), doc.ID.String(), doc.Name, indexChunks(result.Chunks))
	if err != nil {
		slog.Error("chunk indexing failed, continuing without vectors", "document_id", doc.ID, "error", err)
	} else {
		slog.Info("indexed document chunks", "document_id", doc.ID, "chunks", indexed)
	}

	extracted := s.clauseExt.ExtractFromChunks(ctx, doc.ID.String(), result.Chunks)
	extracted = s.dedup.Dedup(ctx, doc.ID.String(), extracted)
	rows := clauseRows(doc.ID, validateClauses(extracted))

	// The document may have been deleted while we were processing. Reload
	// before committing results so a deleted document leaves no orphans.
	if _, err := s.docs.GetByID(ctx, doc.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("document deleted during processing, discarding results", "document_id", doc.ID)
			_ = s.store.DeleteDocument(ctx, doc.WorkspaceID.String(), doc.ID.String())
			return
		}
		s.markDocumentFailed(ctx, doc, fmt.Sprintf("failed to reload document: %v", err))
		return
	}

	if err := s.clauseRepo.CreateBatch(ctx, rows); err != nil {
		s.markDocumentFailed(ctx, doc, fmt.Sprintf("failed to store clauses: %v", err))
		return
	}

	pageCount := result.PageCount
	doc.PageCount = &pageCount
	doc.ContractType = result.ContractType
	doc.Status = repository.StatusProcessed
	doc.ErrorMessage = ""
	if err := s.docs.Update(ctx, doc); err != nil {
		slog.Error("failed to mark document processed", "document_id", doc.ID, "error", err)
		return
	}

	s.cache.InvalidateDocument(ctx, doc.ID.String(), doc.WorkspaceID.String())
	slog.Info("document processed",
		"document_id", doc.ID,
		"pages", result.PageCount,
		"chunks", len(result.Chunks),
		"clauses", len(rows))
}

func (s *DocumentService) extractDocument(ctx context.Context, doc *repository.Document) (*extract.Result, error) {
	switch doc.FileType {
	case repository.FileTypePDF:
		return s.extractor.ProcessPDF(ctx, doc.FilePath)
	case repository.FileTypeDOCX:
		return s.extractor.ProcessDOCX(ctx, doc.FilePath)
	default:
		return nil, fmt.Errorf("unsupported file type %q", doc.FileType)
	}
}

// markDocumentFailed marks a document as failed with an error message
func (s *DocumentService) markDocumentFailed(ctx context.Context, doc *repository.Document, errorMsg string) {
	slog.Error("document processing failed", "document_id", doc.ID, "error", errorMsg)
	if err := s.docs.UpdateStatus(ctx, doc.ID, repository.StatusFailed, errorMsg); err != nil {
		slog.Error("failed to mark document failed", "document_id", doc.ID, "error", err)
	}
	s.cache.InvalidateDocument(ctx, doc.ID.String(), doc.WorkspaceID.String())
}

func (s *DocumentService) requireWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) error {
	ws, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("workspace", workspaceID.String())
		}
		return apperr.Internal(err)
	}
	if ws.UserID != userID {
		return apperr.NotFound("workspace", workspaceID.String())
	}
	return nil
}

// indexChunks converts extracted chunks to the vector store's input form.
func indexChunks(chunks []extract.Chunk) []vectorstore.IndexChunk {
	out := make([]vectorstore.IndexChunk, 0, len(chunks))
	for _, c := range chunks {
		ic := vectorstore.IndexChunk{
			ID:          c.ChunkID,
			Text:        c.Text,
			PageNumber:  c.PageNumber,
			SectionName: c.SectionName,
			ChunkType:   c.ChunkType,
		}
		if c.Coordinates != nil {
			if raw, err := json.Marshal(c.Coordinates); err == nil {
				ic.CoordinatesJSON = string(raw)
			}
		}
		out = append(out, ic)
	}
	return out
}

func fileTypeFor(filename string, allowed []string) (string, error) {
	var fileType string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		fileType = repository.FileTypePDF
	case ".docx":
		fileType = repository.FileTypeDOCX
	default:
		return "", apperr.Validation("Only PDF and DOCX files are supported", "file")
	}

	if len(allowed) == 0 {
		return fileType, nil
	}
	for _, a := range allowed {
		if strings.EqualFold(a, fileType) {
			return fileType, nil
		}
	}
	return "", apperr.Validation(
		fmt.Sprintf("File type %q is not allowed. Allowed types: %s", fileType, strings.Join(allowed, ", ")), "file")
}

// validateClauses drops fragments and fills in missing risk reasoning.
func validateClauses(extracted []clauses.ExtractedClause) []clauses.ExtractedClause {
	valid := make([]clauses.ExtractedClause, 0, len(extracted))
	for _, c := range extracted {
		if len(strings.TrimSpace(c.ExtractedText)) < 10 {
			continue
		}
		if c.RiskScore < 0 {
			c.RiskScore = 0
		} else if c.RiskScore > 100 {
			c.RiskScore = 100
		}
		if strings.TrimSpace(c.RiskReasoning) == "" {
			c.RiskReasoning = fallbackRiskReasoning(c.RiskScore)
		}
		valid = append(valid, c)
	}
	return valid
}

func fallbackRiskReasoning(score float64) string {
	switch clauses.RiskBand(score) {
	case clauses.RiskCritical:
		return fmt.Sprintf("Critical risk (score: %g) - This clause requires immediate attention and negotiation.", score)
	case clauses.RiskHigh:
		return fmt.Sprintf("High risk (score: %g) - Significant concerns identified. Review and negotiation recommended.", score)
	case clauses.RiskMedium:
		return fmt.Sprintf("Medium risk (score: %g) - Some concerns identified. Review recommended.", score)
	default:
		return fmt.Sprintf("Low risk (score: %g) - Standard or acceptable clause terms.", score)
	}
}

func clauseRows(documentID uuid.UUID, extracted []clauses.ExtractedClause) []*repository.Clause {
	rows := make([]*repository.Clause, 0, len(extracted))
	now := time.Now()
	for _, c := range extracted {
		flags := c.RiskFlags
		if flags == nil {
			flags = []string{}
		}
		rows = append(rows, &repository.Clause{
			ID:              uuid.New(),
			DocumentID:      documentID,
			ClauseType:      c.ClauseType,
			ExtractedText:   c.ExtractedText,
			PageNumber:      c.PageNumber,
			Section:         c.SectionName,
			ConfidenceScore: c.ConfidenceScore,
			RiskScore:       c.RiskScore,
			RiskFlags:       flags,
			RiskReasoning:   c.RiskReasoning,
			ClauseSubtype:   c.ClauseSubtype,
			CreatedAt:       now,
		})
	}
	return rows
}
