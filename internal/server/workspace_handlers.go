package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/contractiq/server/internal/apperr"
	"github.com/contractiq/server/internal/repository"
)

type workspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsTemporary bool   `json:"is_temporary"`
}

type workspaceResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsTemporary bool      `json:"is_temporary"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toWorkspaceResponse(ws *repository.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:          ws.ID.String(),
		Name:        ws.Name,
		Description: ws.Description,
		IsTemporary: ws.IsTemporary,
		CreatedAt:   ws.CreatedAt,
		UpdatedAt:   ws.UpdatedAt,
	}
}

// pathID parses a UUID path parameter.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation("Invalid identifier in URL", name)
	}
	return id, nil
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req workspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	ws, err := s.workspaceSvc.Create(r.Context(), userFromContext(r.Context()), req.Name, req.Description, req.IsTemporary)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, toWorkspaceResponse(ws))
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := s.workspaceSvc.List(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	out := make([]workspaceResponse, 0, len(workspaces))
	for _, ws := range workspaces {
		out = append(out, toWorkspaceResponse(ws))
	}
	renderJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "workspaceID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	ws, err := s.workspaceSvc.Get(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

func (s *Server) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "workspaceID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	var req workspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	ws, err := s.workspaceSvc.Update(r.Context(), userFromContext(r.Context()), id, req.Name, req.Description)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "workspaceID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	if err := s.workspaceSvc.Delete(r.Context(), userFromContext(r.Context()), id); err != nil {
		s.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWorkspaceStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "workspaceID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	stats, err := s.workspaceSvc.Stats(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, stats)
}
