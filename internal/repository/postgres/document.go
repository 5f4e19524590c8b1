package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/contractiq/server/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DocumentRepo implements repository.DocumentRepository
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new document repository
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Create creates a new document
func (r *DocumentRepo) Create(ctx context.Context, doc *repository.Document) error {
	query := `
		INSERT INTO documents (id, workspace_id, name, original_filename, file_path, file_type,
			status, page_count, file_size, contract_type, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		doc.ID, doc.WorkspaceID, doc.Name, doc.OriginalFilename, doc.FilePath,
		doc.FileType, doc.Status, doc.PageCount, doc.FileSize, doc.ContractType,
		doc.ErrorMessage, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Document, error) {
	query := `
		SELECT id, workspace_id, name, original_filename, file_path, file_type,
			status, page_count, file_size, contract_type, error_message, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var doc repository.Document
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.WorkspaceID, &doc.Name, &doc.OriginalFilename, &doc.FilePath,
		&doc.FileType, &doc.Status, &doc.PageCount, &doc.FileSize, &doc.ContractType,
		&doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// List retrieves all documents in a workspace, newest first
func (r *DocumentRepo) List(ctx context.Context, workspaceID uuid.UUID) ([]*repository.Document, error) {
	query := `
		SELECT id, workspace_id, name, original_filename, file_path, file_type,
			status, page_count, file_size, contract_type, error_message, created_at, updated_at
		FROM documents
		WHERE workspace_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*repository.Document
	for rows.Next() {
		var doc repository.Document
		if err := rows.Scan(&doc.ID, &doc.WorkspaceID, &doc.Name, &doc.OriginalFilename,
			&doc.FilePath, &doc.FileType, &doc.Status, &doc.PageCount, &doc.FileSize,
			&doc.ContractType, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// Update updates a document
func (r *DocumentRepo) Update(ctx context.Context, doc *repository.Document) error {
	query := `
		UPDATE documents
		SET name = $2, status = $3, page_count = $4, contract_type = $5,
		    error_message = $6, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query,
		doc.ID, doc.Name, doc.Status, doc.PageCount, doc.ContractType, doc.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateStatus updates only the status and error message of a document
func (r *DocumentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	query := `
		UPDATE documents
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query, id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete deletes a document. Clauses cascade.
func (r *DocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ensure DocumentRepo implements the interface
var _ repository.DocumentRepository = (*DocumentRepo)(nil)
