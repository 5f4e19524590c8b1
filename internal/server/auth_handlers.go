package server

import (
	"net/http"
	"time"

	"github.com/contractiq/server/internal/repository"
	"github.com/contractiq/server/internal/service"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type loginResponse struct {
	*service.Token
	User userResponse `json:"user"`
}

func toUserResponse(u *repository.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	user, err := s.authSvc.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	token, user, err := s.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, loginResponse{Token: token, User: toUserResponse(user)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.authSvc.GetUser(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, toUserResponse(user))
}
