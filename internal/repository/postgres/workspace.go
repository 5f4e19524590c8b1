package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/contractiq/server/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WorkspaceRepo implements repository.WorkspaceRepository
type WorkspaceRepo struct {
	db *DB
}

// NewWorkspaceRepo creates a new workspace repository
func NewWorkspaceRepo(db *DB) *WorkspaceRepo {
	return &WorkspaceRepo{db: db}
}

// Create creates a new workspace
func (r *WorkspaceRepo) Create(ctx context.Context, ws *repository.Workspace) error {
	query := `
		INSERT INTO workspaces (id, user_id, name, description, is_temporary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		ws.ID, ws.UserID, ws.Name, ws.Description, ws.IsTemporary,
		ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

// GetByID retrieves a workspace by ID
func (r *WorkspaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Workspace, error) {
	query := `
		SELECT id, user_id, name, description, is_temporary, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`
	var ws repository.Workspace
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&ws.ID, &ws.UserID, &ws.Name, &ws.Description, &ws.IsTemporary,
		&ws.CreatedAt, &ws.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &ws, nil
}

// ListByUser retrieves all workspaces owned by a user
func (r *WorkspaceRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*repository.Workspace, error) {
	query := `
		SELECT id, user_id, name, description, is_temporary, created_at, updated_at
		FROM workspaces
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []*repository.Workspace
	for rows.Next() {
		var ws repository.Workspace
		if err := rows.Scan(&ws.ID, &ws.UserID, &ws.Name, &ws.Description,
			&ws.IsTemporary, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		workspaces = append(workspaces, &ws)
	}
	return workspaces, nil
}

// Update updates a workspace's name and description
func (r *WorkspaceRepo) Update(ctx context.Context, ws *repository.Workspace) error {
	query := `
		UPDATE workspaces
		SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query, ws.ID, ws.Name, ws.Description)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete deletes a workspace. Documents, clauses, and conversations cascade.
func (r *WorkspaceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Stats aggregates document, clause, and conversation counts for a workspace
func (r *WorkspaceRepo) Stats(ctx context.Context, id uuid.UUID) (*repository.WorkspaceStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM documents WHERE workspace_id = $1),
			(SELECT COUNT(*) FROM documents WHERE workspace_id = $1 AND status = $2),
			(SELECT COUNT(*) FROM documents WHERE workspace_id = $1 AND status = $3),
			(SELECT COUNT(*) FROM clauses c JOIN documents d ON c.document_id = d.id WHERE d.workspace_id = $1),
			(SELECT COUNT(*) FROM clauses c JOIN documents d ON c.document_id = d.id WHERE d.workspace_id = $1 AND c.risk_score >= 50),
			(SELECT COUNT(*) FROM conversations WHERE workspace_id = $1)
	`
	var stats repository.WorkspaceStats
	err := r.db.Pool.QueryRow(ctx, query, id, repository.StatusProcessed, repository.StatusFailed).Scan(
		&stats.DocumentCount, &stats.ProcessedDocuments, &stats.FailedDocuments,
		&stats.ClauseCount, &stats.HighRiskClauses, &stats.ConversationCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace stats: %w", err)
	}
	return &stats, nil
}

// Ensure WorkspaceRepo implements the interface
var _ repository.WorkspaceRepository = (*WorkspaceRepo)(nil)
