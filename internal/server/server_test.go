package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/server/internal/apperr"
	"github.com/contractiq/server/internal/auth"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	jwtManager := auth.NewJWTManager(auth.DefaultJWTConfig("test-secret"))
	return New(Config{
		Port:          0,
		JWT:           jwtManager,
		MaxUploadSize: 1 << 20,
	})
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected status healthy, got %q", body["status"])
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !body.Error {
		t.Error("expected error flag set")
	}
	if body.ErrorCode != apperr.CodeUnauthorized {
		t.Errorf("expected code %s, got %s", apperr.CodeUnauthorized, body.ErrorCode)
	}
}

func TestAuthMiddleware_BadScheme(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	cfg := auth.DefaultJWTConfig("test-secret")
	cfg.Expiry = -time.Hour
	expired := auth.NewJWTManager(cfg)

	token, err := expired.GenerateToken(uuid.New(), "user@example.com")
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "log in") {
		t.Errorf("expected login message, got %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func TestRenderError_Envelope(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	s.renderError(rec, req, apperr.NotFound("document", "abc"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.ErrorCode != apperr.CodeNotFound {
		t.Errorf("expected code %s, got %s", apperr.CodeNotFound, body.ErrorCode)
	}
	if body.Details["resource_type"] != "document" {
		t.Errorf("expected resource_type detail, got %v", body.Details)
	}
	if body.Timestamp == "" {
		t.Error("expected timestamp in error body")
	}
}

func TestRenderError_RateLimitHeader(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	s.renderError(rec, req, apperr.RateLimit("", 30))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("expected Retry-After 30, got %q", got)
	}
}

func TestRenderError_ServerErrorDetail(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("development exposes the exception", func(t *testing.T) {
		s := newTestServer(t)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)

		s.renderError(rec, req, apperr.Internal(boom))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		var body errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if id, _ := body.Details["error_id"].(string); id == "" {
			t.Error("expected error_id in details")
		}
		exc, _ := body.Details["exception"].(string)
		if !strings.Contains(exc, "connection refused") {
			t.Errorf("expected exception detail, got %v", body.Details)
		}
	})

	t.Run("production hides the exception", func(t *testing.T) {
		s := newTestServer(t)
		s.environment = "production"
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)

		s.renderError(rec, req, apperr.Internal(boom))

		var body errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if id, _ := body.Details["error_id"].(string); id == "" {
			t.Error("expected error_id in details")
		}
		if _, ok := body.Details["exception"]; ok {
			t.Error("exception detail must not leak in production")
		}
		if strings.Contains(rec.Body.String(), "connection refused") {
			t.Error("internal error text must not leak in production")
		}
	})
}
