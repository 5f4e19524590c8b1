// Package server exposes the HTTP API: authentication, workspaces, document
// upload and processing, clause listings, and conversational Q&A.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/contractiq/server/internal/auth"
	"github.com/contractiq/server/internal/repository/postgres"
	"github.com/contractiq/server/internal/service"
)

// Server wraps the HTTP server and its route handlers
type Server struct {
	server *http.Server
	router *chi.Mux
	logger *slog.Logger

	jwt           *auth.JWTManager
	authSvc       *service.AuthService
	workspaceSvc  *service.WorkspaceService
	documentSvc   *service.DocumentService
	convSvc       *service.ConversationService
	db            *postgres.DB
	maxUploadSize int64
	environment   string
}

// Config holds configuration for the HTTP server
type Config struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string
	MaxUploadSize  int64
	Environment    string

	JWT           *auth.JWTManager
	Auth          *service.AuthService
	Workspaces    *service.WorkspaceService
	Documents     *service.DocumentService
	Conversations *service.ConversationService
	DB            *postgres.DB
}

// New creates the HTTP server and mounts all routes
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	s := &Server{
		router:        router,
		logger:        logger,
		jwt:           cfg.JWT,
		authSvc:       cfg.Auth,
		workspaceSvc:  cfg.Workspaces,
		documentSvc:   cfg.Documents,
		convSvc:       cfg.Conversations,
		db:            cfg.DB,
		maxUploadSize: cfg.MaxUploadSize,
		environment:   cfg.Environment,
	}

	router.Get("/healthz", healthCheckHandler())
	router.Get("/readyz", s.readinessCheckHandler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			r.Route("/workspaces", func(r chi.Router) {
				r.Post("/", s.handleCreateWorkspace)
				r.Get("/", s.handleListWorkspaces)
				r.Get("/{workspaceID}", s.handleGetWorkspace)
				r.Patch("/{workspaceID}", s.handleUpdateWorkspace)
				r.Delete("/{workspaceID}", s.handleDeleteWorkspace)
				r.Get("/{workspaceID}/stats", s.handleWorkspaceStats)

				r.Post("/{workspaceID}/documents", s.handleUploadDocument)
				r.Get("/{workspaceID}/documents", s.handleListDocuments)

				r.Post("/{workspaceID}/conversations", s.handleCreateConversation)
				r.Get("/{workspaceID}/conversations", s.handleListConversations)
			})

			r.Route("/documents", func(r chi.Router) {
				r.Post("/", s.handleUploadDocument)
				r.Post("/upload", s.handleUploadDocument)
				r.Get("/", s.handleListDocuments)
				r.Get("/{documentID}", s.handleGetDocument)
				r.Get("/{documentID}/file", s.handleDownloadDocument)
				r.Delete("/{documentID}", s.handleDeleteDocument)
				r.Post("/{documentID}/extract-clauses", s.handleExtractClauses)
				r.Get("/{documentID}/clauses", s.handleListClauses)
			})

			r.Route("/clauses", func(r chi.Router) {
				r.Get("/{clauseID}", s.handleGetClause)
				r.Delete("/{clauseID}", s.handleDeleteClause)
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/{conversationID}", s.handleGetConversation)
				r.Patch("/{conversationID}", s.handleUpdateConversation)
				r.Delete("/{conversationID}", s.handleDeleteConversation)
				r.Post("/{conversationID}/ask", s.handleAsk)
			})
		})
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // LLM-backed answers can be slow
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying chi router for additional route registration
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", duration,
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// corsMiddleware handles CORS headers
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			allowed := false
			if len(allowedOrigins) == 0 {
				// If no origins specified, allow all in development
				allowed = true
				origin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token, X-Request-ID")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// healthCheckHandler returns a handler for the /healthz endpoint
func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

// readinessCheckHandler verifies database connectivity
func (s *Server) readinessCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.db != nil {
			if err := s.db.Pool.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unavailable",
					"reason": "database unreachable",
				})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
		})
	}
}
