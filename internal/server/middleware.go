package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/contractiq/server/internal/apperr"
	"github.com/contractiq/server/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const userContextKey contextKey = "user_id"

// authMiddleware validates the bearer token and stores the user ID in the
// request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.renderError(w, r, apperr.Unauthorized("Authentication required"))
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			s.renderError(w, r, apperr.Unauthorized("Authorization header must use the Bearer scheme"))
			return
		}

		claims, err := s.jwt.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				s.renderError(w, r, apperr.Unauthorized("Session has expired, please log in again"))
				return
			}
			s.renderError(w, r, apperr.Unauthorized("Invalid authentication token"))
			return
		}

		userID, err := claims.GetUserID()
		if err != nil {
			s.renderError(w, r, apperr.Unauthorized("Invalid authentication token"))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFromContext extracts the authenticated user ID.
func userFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userContextKey).(uuid.UUID)
	return id
}
