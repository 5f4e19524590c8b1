package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/server/internal/apperr"
	"github.com/contractiq/server/internal/cache"
	"github.com/contractiq/server/internal/repository"
	"github.com/contractiq/server/internal/vectorstore"
)

// WorkspaceService manages workspaces and their aggregate stats.
type WorkspaceService struct {
	workspaces repository.WorkspaceRepository
	store      vectorstore.VectorStore
	cache      *cache.Cache
	statsTTL   time.Duration
}

// NewWorkspaceService creates a new WorkspaceService
func NewWorkspaceService(workspaces repository.WorkspaceRepository, store vectorstore.VectorStore, c *cache.Cache, statsTTL time.Duration) *WorkspaceService {
	return &WorkspaceService{workspaces: workspaces, store: store, cache: c, statsTTL: statsTTL}
}

// Create creates a workspace owned by the user.
func (s *WorkspaceService) Create(ctx context.Context, userID uuid.UUID, name, description string, isTemporary bool) (*repository.Workspace, error) {
	if name == "" {
		return nil, apperr.Validation("Workspace name is required", "name")
	}

	now := time.Now()
	ws := &repository.Workspace{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Description: description,
		IsTemporary: isTemporary,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.workspaces.Create(ctx, ws); err != nil {
		return nil, apperr.Internal(err)
	}

	s.cache.Delete(ctx, userWorkspacesKey(userID))
	return ws, nil
}

// List returns the user's workspaces, served from cache when possible.
func (s *WorkspaceService) List(ctx context.Context, userID uuid.UUID) ([]*repository.Workspace, error) {
	key := userWorkspacesKey(userID)

	var cached []*repository.Workspace
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	workspaces, err := s.workspaces.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.cache.Set(ctx, key, workspaces, 0)
	return workspaces, nil
}

// Get loads a workspace, enforcing ownership.
func (s *WorkspaceService) Get(ctx context.Context, userID, workspaceID uuid.UUID) (*repository.Workspace, error) {
	ws, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("workspace", workspaceID.String())
		}
		return nil, apperr.Internal(err)
	}
	if ws.UserID != userID {
		// Hide other users' workspaces entirely.
		return nil, apperr.NotFound("workspace", workspaceID.String())
	}
	return ws, nil
}

// Update changes a workspace's name and description.
func (s *WorkspaceService) Update(ctx context.Context, userID, workspaceID uuid.UUID, name, description string) (*repository.Workspace, error) {
	ws, err := s.Get(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		ws.Name = name
	}
	ws.Description = description

	if err := s.workspaces.Update(ctx, ws); err != nil {
		return nil, apperr.Internal(err)
	}
	s.cache.Delete(ctx, userWorkspacesKey(userID))
	return ws, nil
}

// Delete removes a workspace, its database rows, and its vector collection.
func (s *WorkspaceService) Delete(ctx context.Context, userID, workspaceID uuid.UUID) error {
	ws, err := s.Get(ctx, userID, workspaceID)
	if err != nil {
		return err
	}

	slog.Info("deleting workspace", "workspace_id", workspaceID, "user_id", userID)

	if err := s.workspaces.Delete(ctx, ws.ID); err != nil {
		return apperr.Internal(err)
	}
	if err := s.store.DeleteWorkspace(ctx, workspaceID.String()); err != nil {
		slog.Warn("failed to delete workspace vectors", "workspace_id", workspaceID, "error", err)
	}

	s.cache.InvalidateWorkspace(ctx, workspaceID.String())
	s.cache.Delete(ctx, userWorkspacesKey(userID))
	return nil
}

// Stats returns aggregate counts for a workspace, cached briefly.
func (s *WorkspaceService) Stats(ctx context.Context, userID, workspaceID uuid.UUID) (*repository.WorkspaceStats, error) {
	if _, err := s.Get(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("workspace:%s:stats", workspaceID)
	var cached repository.WorkspaceStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	stats, err := s.workspaces.Stats(ctx, workspaceID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.cache.Set(ctx, key, stats, s.statsTTL)
	return stats, nil
}

func userWorkspacesKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:workspaces", userID)
}
