package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/contractiq/server/internal/apperr"
	"github.com/contractiq/server/internal/repository"
)

// ExtractClausesResult reports the outcome of a clause extraction request.
type ExtractClausesResult struct {
	DocumentID       uuid.UUID            `json:"document_id"`
	ClausesExtracted int                  `json:"clauses_extracted"`
	Clauses          []*repository.Clause `json:"clauses"`
	Message          string               `json:"message"`
}

// ExtractClauses extracts clauses for a processed document. Existing clauses
// are returned as-is unless force is set, in which case they are replaced.
func (s *DocumentService) ExtractClauses(ctx context.Context, userID, documentID uuid.UUID, force bool) (*ExtractClausesResult, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != repository.StatusProcessed {
		return nil, apperr.Validation(
			fmt.Sprintf("Document must be processed before clause extraction. Current status: %s", doc.Status), "status")
	}

	existing, err := s.clauseRepo.CountByDocument(ctx, documentID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if existing > 0 && !force {
		list, err := s.clauseRepo.ListByDocument(ctx, documentID, repository.ClauseFilter{})
		if err != nil {
			return nil, apperr.Internal(err)
		}
		return &ExtractClausesResult{
			DocumentID:       documentID,
			ClausesExtracted: len(list),
			Clauses:          list,
			Message:          "Using existing clauses. Set force_re_extract=true to re-extract.",
		}, nil
	}
	if existing > 0 {
		if err := s.clauseRepo.DeleteByDocument(ctx, documentID); err != nil {
			return nil, apperr.Internal(err)
		}
	}

	// Re-derive chunks from the stored file.
	result, err := s.extractDocument(ctx, doc)
	if err != nil {
		return nil, apperr.Processing(fmt.Sprintf("text extraction failed: %v", err), "extraction")
	}
	if len(result.Chunks) == 0 {
		return nil, apperr.NotFound("document chunks", documentID.String())
	}

	extracted := s.clauseExt.ExtractFromChunks(ctx, documentID.String(), result.Chunks)
	extracted = s.dedup.Dedup(ctx, documentID.String(), extracted)
	rows := clauseRows(documentID, validateClauses(extracted))

	// The document may have been deleted while extraction was running.
	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Gone("Document was deleted during clause extraction. Please re-upload the document.")
		}
		return nil, apperr.Internal(err)
	}

	if err := s.clauseRepo.CreateBatch(ctx, rows); err != nil {
		return nil, apperr.Internal(err)
	}

	s.cache.InvalidateDocument(ctx, documentID.String(), doc.WorkspaceID.String())

	return &ExtractClausesResult{
		DocumentID:       documentID,
		ClausesExtracted: len(rows),
		Clauses:          rows,
		Message:          fmt.Sprintf("Successfully extracted %d clauses", len(rows)),
	}, nil
}

// ListClauses returns a document's clauses with optional filtering.
func (s *DocumentService) ListClauses(ctx context.Context, userID, documentID uuid.UUID, filter repository.ClauseFilter) ([]*repository.Clause, error) {
	if _, err := s.Get(ctx, userID, documentID); err != nil {
		return nil, err
	}
	list, err := s.clauseRepo.ListByDocument(ctx, documentID, filter)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return list, nil
}

// GetClause loads a single clause, enforcing ownership through its document.
func (s *DocumentService) GetClause(ctx context.Context, userID, clauseID uuid.UUID) (*repository.Clause, error) {
	clause, err := s.clauseRepo.GetByID(ctx, clauseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("clause", clauseID.String())
		}
		return nil, apperr.Internal(err)
	}
	if _, err := s.Get(ctx, userID, clause.DocumentID); err != nil {
		return nil, apperr.NotFound("clause", clauseID.String())
	}
	return clause, nil
}

// DeleteClause removes a single clause.
func (s *DocumentService) DeleteClause(ctx context.Context, userID, clauseID uuid.UUID) error {
	clause, err := s.GetClause(ctx, userID, clauseID)
	if err != nil {
		return err
	}
	if err := s.clauseRepo.Delete(ctx, clause.ID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
