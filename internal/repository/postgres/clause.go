package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/contractiq/server/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ClauseRepo implements repository.ClauseRepository
type ClauseRepo struct {
	db *DB
}

// NewClauseRepo creates a new clause repository
func NewClauseRepo(db *DB) *ClauseRepo {
	return &ClauseRepo{db: db}
}

// CreateBatch inserts clauses in a single batch
func (r *ClauseRepo) CreateBatch(ctx context.Context, clauses []*repository.Clause) error {
	if len(clauses) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, clause := range clauses {
		flagsJSON, err := json.Marshal(clause.RiskFlags)
		if err != nil {
			return fmt.Errorf("failed to marshal risk flags: %w", err)
		}
		var coordsJSON []byte
		if clause.Coordinates != nil {
			coordsJSON, err = json.Marshal(clause.Coordinates)
			if err != nil {
				return fmt.Errorf("failed to marshal coordinates: %w", err)
			}
		}
		batch.Queue(`
			INSERT INTO clauses (id, document_id, clause_type, extracted_text, page_number,
				section, confidence_score, risk_score, risk_flags, risk_reasoning,
				clause_subtype, coordinates, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, clause.ID, clause.DocumentID, clause.ClauseType, clause.ExtractedText,
			clause.PageNumber, clause.Section, clause.ConfidenceScore, clause.RiskScore,
			flagsJSON, clause.RiskReasoning, clause.ClauseSubtype, coordsJSON, clause.CreatedAt)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range clauses {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to create clause: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a clause by ID
func (r *ClauseRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Clause, error) {
	query := `
		SELECT id, document_id, clause_type, extracted_text, page_number, section,
			confidence_score, risk_score, risk_flags, risk_reasoning, clause_subtype,
			coordinates, created_at
		FROM clauses
		WHERE id = $1
	`
	clause, err := scanClause(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get clause: %w", err)
	}
	return clause, nil
}

// ListByDocument retrieves clauses for a document with optional filtering,
// ordered by page then type
func (r *ClauseRepo) ListByDocument(ctx context.Context, documentID uuid.UUID, filter repository.ClauseFilter) ([]*repository.Clause, error) {
	query := `
		SELECT id, document_id, clause_type, extracted_text, page_number, section,
			confidence_score, risk_score, risk_flags, risk_reasoning, clause_subtype,
			coordinates, created_at
		FROM clauses
		WHERE document_id = $1
	`
	args := []any{documentID}

	if filter.ClauseType != "" {
		args = append(args, filter.ClauseType)
		query += fmt.Sprintf(` AND clause_type = $%d`, len(args))
	}
	if filter.PageNumber != nil {
		args = append(args, *filter.PageNumber)
		query += fmt.Sprintf(` AND page_number = $%d`, len(args))
	}
	if filter.MinRiskScore != nil {
		args = append(args, *filter.MinRiskScore)
		query += fmt.Sprintf(` AND risk_score >= $%d`, len(args))
	}
	if filter.MaxRiskScore != nil {
		args = append(args, *filter.MaxRiskScore)
		query += fmt.Sprintf(` AND risk_score <= $%d`, len(args))
	}
	if filter.HasRiskFlags != nil {
		if *filter.HasRiskFlags {
			query += ` AND risk_flags::text != '[]'`
		} else {
			query += ` AND risk_flags::text = '[]'`
		}
	}
	query += ` ORDER BY page_number, clause_type`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clauses: %w", err)
	}
	defer rows.Close()

	var clauses []*repository.Clause
	for rows.Next() {
		clause, err := scanClause(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clause: %w", err)
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// CountByDocument counts clauses for a document
func (r *ClauseRepo) CountByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM clauses WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count clauses: %w", err)
	}
	return count, nil
}

// Delete deletes a clause
func (r *ClauseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM clauses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete clause: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByDocument deletes all clauses for a document
func (r *ClauseRepo) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM clauses WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete clauses: %w", err)
	}
	return nil
}

func scanClause(row pgx.Row) (*repository.Clause, error) {
	var clause repository.Clause
	var flagsJSON, coordsJSON []byte
	err := row.Scan(
		&clause.ID, &clause.DocumentID, &clause.ClauseType, &clause.ExtractedText,
		&clause.PageNumber, &clause.Section, &clause.ConfidenceScore, &clause.RiskScore,
		&flagsJSON, &clause.RiskReasoning, &clause.ClauseSubtype, &coordsJSON,
		&clause.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	clause.RiskFlags = []string{}
	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &clause.RiskFlags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal risk flags: %w", err)
		}
	}
	if len(coordsJSON) > 0 {
		if err := json.Unmarshal(coordsJSON, &clause.Coordinates); err != nil {
			return nil, fmt.Errorf("failed to unmarshal coordinates: %w", err)
		}
	}
	return &clause, nil
}

// Ensure ClauseRepo implements the interface
var _ repository.ClauseRepository = (*ClauseRepo)(nil)
