package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/contractiq/server/internal/repository"
)

type conversationRequest struct {
	Title string `json:"title"`
}

type conversationResponse struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toConversationResponse(conv *repository.Conversation) conversationResponse {
	return conversationResponse{
		ID:          conv.ID.String(),
		WorkspaceID: conv.WorkspaceID.String(),
		Title:       conv.Title,
		CreatedAt:   conv.CreatedAt,
		UpdatedAt:   conv.UpdatedAt,
	}
}

type messageResponse struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Citations      json.RawMessage `json:"citations,omitempty"`
	MessageIndex   int             `json:"message_index"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toMessageResponse(msg *repository.ConversationMessage) messageResponse {
	return messageResponse{
		ID:             msg.ID.String(),
		ConversationID: msg.ConversationID.String(),
		Role:           msg.Role,
		Content:        msg.Content,
		Citations:      msg.Citations,
		MessageIndex:   msg.MessageIndex,
		CreatedAt:      msg.CreatedAt,
	}
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := pathID(r, "workspaceID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	var req conversationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	conv, err := s.convSvc.Create(r.Context(), userFromContext(r.Context()), workspaceID, req.Title)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, toConversationResponse(conv))
}

type conversationListResponse struct {
	Total         int                    `json:"total"`
	Conversations []conversationResponse `json:"conversations"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := pathID(r, "workspaceID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	list, err := s.convSvc.List(r.Context(), userFromContext(r.Context()), workspaceID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	out := make([]conversationResponse, 0, len(list))
	for _, conv := range list {
		out = append(out, toConversationResponse(conv))
	}
	renderJSON(w, http.StatusOK, conversationListResponse{Total: len(out), Conversations: out})
}

type conversationDetailResponse struct {
	conversationResponse
	Messages []messageResponse `json:"messages"`
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "conversationID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	userID := userFromContext(r.Context())

	conv, err := s.convSvc.Get(r.Context(), userID, conversationID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	messages, err := s.convSvc.Messages(r.Context(), userID, conversationID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	out := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		out = append(out, toMessageResponse(msg))
	}
	renderJSON(w, http.StatusOK, conversationDetailResponse{
		conversationResponse: toConversationResponse(conv),
		Messages:             out,
	})
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "conversationID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	var req conversationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	conv, err := s.convSvc.Rename(r.Context(), userFromContext(r.Context()), conversationID, req.Title)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, toConversationResponse(conv))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "conversationID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	if err := s.convSvc.Delete(r.Context(), userFromContext(r.Context()), conversationID); err != nil {
		s.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type askRequest struct {
	Question    string   `json:"question"`
	DocumentIDs []string `json:"document_ids"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "conversationID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	answer, err := s.convSvc.Ask(r.Context(), userFromContext(r.Context()), conversationID, req.Question, req.DocumentIDs)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, answer)
}
