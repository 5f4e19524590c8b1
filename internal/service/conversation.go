package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/server/internal/apperr"
	"github.com/contractiq/server/internal/rag"
	"github.com/contractiq/server/internal/repository"
)

// errorFallbackAnswer is stored when the pipeline fails outright, so the
// conversation keeps a consistent user/assistant message rhythm.
const errorFallbackAnswer = "I apologize, but I encountered an error while processing your question. Please try again."

// ConversationService manages Q&A threads and runs the RAG pipeline.
type ConversationService struct {
	conversations repository.ConversationRepository
	workspaces    repository.WorkspaceRepository
	pipeline      *rag.Pipeline
}

// NewConversationService creates a new ConversationService
func NewConversationService(conversations repository.ConversationRepository, workspaces repository.WorkspaceRepository, pipeline *rag.Pipeline) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		workspaces:    workspaces,
		pipeline:      pipeline,
	}
}

// Answer is the result of asking a question.
type Answer struct {
	Answer              string         `json:"answer"`
	Citations           []rag.Citation `json:"citations"`
	MessageID           uuid.UUID      `json:"message_id"`
	ConversationID      uuid.UUID      `json:"conversation_id"`
	RetrievedChunkCount int            `json:"retrieved_chunks_count"`
}

// Create creates a conversation in a workspace.
func (s *ConversationService) Create(ctx context.Context, userID, workspaceID uuid.UUID, title string) (*repository.Conversation, error) {
	if err := s.requireWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	now := time.Now()
	conv := &repository.Conversation{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Title:       title,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, apperr.Internal(err)
	}
	return conv, nil
}

// List returns all conversations in a workspace, most recently active first.
func (s *ConversationService) List(ctx context.Context, userID, workspaceID uuid.UUID) ([]*repository.Conversation, error) {
	if err := s.requireWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	list, err := s.conversations.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return list, nil
}

// Get loads a conversation, enforcing workspace ownership.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID uuid.UUID) (*repository.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("conversation", conversationID.String())
		}
		return nil, apperr.Internal(err)
	}
	if err := s.requireWorkspace(ctx, userID, conv.WorkspaceID); err != nil {
		return nil, apperr.NotFound("conversation", conversationID.String())
	}
	return conv, nil
}

// Messages returns a conversation's messages in order.
func (s *ConversationService) Messages(ctx context.Context, userID, conversationID uuid.UUID) ([]*repository.ConversationMessage, error) {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.conversations.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return messages, nil
}

// Rename updates a conversation's title.
func (s *ConversationService) Rename(ctx context.Context, userID, conversationID uuid.UUID, title string) (*repository.Conversation, error) {
	conv, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	conv.Title = title
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, apperr.Internal(err)
	}
	return conv, nil
}

// Delete removes a conversation and its messages.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if err := s.conversations.Delete(ctx, conv.ID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Ask records the user's question, runs the RAG pipeline with the
// conversation's history, and records the assistant's answer.
func (s *ConversationService) Ask(ctx context.Context, userID, conversationID uuid.UUID, question string, documentIDs []string) (*Answer, error) {
	if question == "" {
		return nil, apperr.Validation("Question is required", "question")
	}

	conv, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	existing, err := s.conversations.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	history := make([]rag.HistoryMessage, 0, len(existing))
	for _, msg := range existing {
		history = append(history, rag.HistoryMessage{Role: msg.Role, Content: msg.Content})
	}
	nextIndex := len(existing)

	userMsg := &repository.ConversationMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           "user",
		Content:        question,
		MessageIndex:   nextIndex,
		CreatedAt:      time.Now(),
	}
	if err := s.conversations.CreateMessage(ctx, userMsg); err != nil {
		return nil, apperr.Internal(err)
	}

	result := s.pipeline.Ask(ctx, question, conv.WorkspaceID.String(), documentIDs, history)
	answer := result.Answer
	if answer == "" {
		slog.Error("pipeline returned no answer",
			"conversation_id", conversationID,
			"workspace_id", conv.WorkspaceID,
			"error", result.Err)
		answer = errorFallbackAnswer
	}

	var citationsJSON json.RawMessage
	if len(result.Citations) > 0 {
		citationsJSON, err = json.Marshal(result.Citations)
		if err != nil {
			return nil, apperr.Internal(err)
		}
	}

	assistantMsg := &repository.ConversationMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        answer,
		Citations:      citationsJSON,
		MessageIndex:   nextIndex + 1,
		CreatedAt:      time.Now(),
	}
	if err := s.conversations.CreateMessage(ctx, assistantMsg); err != nil {
		return nil, apperr.Internal(err)
	}

	return &Answer{
		Answer:              answer,
		Citations:           result.Citations,
		MessageID:           assistantMsg.ID,
		ConversationID:      conversationID,
		RetrievedChunkCount: result.RetrievedChunkCount,
	}, nil
}

func (s *ConversationService) requireWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) error {
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
