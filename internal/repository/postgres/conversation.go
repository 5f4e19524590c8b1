package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/contractiq/server/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ConversationRepo implements repository.ConversationRepository
type ConversationRepo struct {
	db *DB
}

// NewConversationRepo creates a new conversation repository
func NewConversationRepo(db *DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Create creates a new conversation
func (r *ConversationRepo) Create(ctx context.Context, conv *repository.Conversation) error {
	query := `
		INSERT INTO conversations (id, workspace_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		conv.ID, conv.WorkspaceID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Conversation, error) {
	query := `
		SELECT id, workspace_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`
	var conv repository.Conversation
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.WorkspaceID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// ListByWorkspace retrieves conversations for a workspace, most recently updated first
func (r *ConversationRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*repository.Conversation, error) {
	query := `
		SELECT id, workspace_id, title, created_at, updated_at
		FROM conversations
		WHERE workspace_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*repository.Conversation
	for rows.Next() {
		var conv repository.Conversation
		if err := rows.Scan(&conv.ID, &conv.WorkspaceID, &conv.Title,
			&conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, &conv)
	}
	return conversations, nil
}

// Update updates a conversation's title and bumps updated_at
func (r *ConversationRepo) Update(ctx context.Context, conv *repository.Conversation) error {
	query := `
		UPDATE conversations
		SET title = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query, conv.ID, conv.Title)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete deletes a conversation. Messages cascade.
func (r *ConversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateMessage appends a message to a conversation and bumps the
// conversation's updated_at
func (r *ConversationRepo) CreateMessage(ctx context.Context, msg *repository.ConversationMessage) error {
	query := `
		INSERT INTO conversation_messages (id, conversation_id, role, content, citations, message_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Citations,
		msg.MessageIndex, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx,
		`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// GetMessages retrieves all messages for a conversation ordered by index
func (r *ConversationRepo) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*repository.ConversationMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, citations, message_index, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY message_index
	`
	rows, err := r.db.Pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []*repository.ConversationMessage
	for rows.Next() {
		var msg repository.ConversationMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.Citations, &msg.MessageIndex, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// Ensure ConversationRepo implements the interface
var _ repository.ConversationRepository = (*ConversationRepo)(nil)
