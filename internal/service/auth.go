// Package service implements the application's business logic on top of the
// repository, vector store, and LLM layers.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/server/internal/apperr"
	"github.com/contractiq/server/internal/auth"
	"github.com/contractiq/server/internal/repository"
)

// AuthService handles registration, login, and session tokens.
type AuthService struct {
	users repository.UserRepository
	jwt   *auth.JWTManager
}

// NewAuthService creates a new AuthService
func NewAuthService(users repository.UserRepository, jwt *auth.JWTManager) *AuthService {
	return &AuthService{users: users, jwt: jwt}
}

// Token is an issued session token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*repository.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation("A valid email address is required", "email")
	}
	if len(password) < 8 {
		return nil, apperr.Validation("Password must be at least 8 characters", "password")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Validation("An account with this email already exists", "email")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := time.Now()
	user := &repository.User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hashed,
		FullName:       fullName,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// Login verifies credentials and issues a JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Token, *repository.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperr.Unauthorized("Incorrect email or password")
		}
		return nil, nil, apperr.Internal(err)
	}
	if !user.IsActive {
		return nil, nil, apperr.Unauthorized("This account has been deactivated")
	}
	if !auth.VerifyPassword(user.HashedPassword, password) {
		return nil, nil, apperr.Unauthorized("Incorrect email or password")
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	return &Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   s.jwt.TokenExpiry(),
	}, user, nil
}

// GetUser loads a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user", id.String())
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}
