package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		code   string
		status int
	}{
		{"not found", NotFound("document", "abc"), CodeNotFound, http.StatusNotFound},
		{"unauthorized", Unauthorized(""), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden(""), CodeForbidden, http.StatusForbidden},
		{"validation", Validation("name is required", "name"), CodeValidation, http.StatusBadRequest},
		{"external", ExternalService("openai", "timeout", true), CodeExternalService, http.StatusServiceUnavailable},
		{"processing", Processing("extract failed", "extraction"), CodeProcessing, http.StatusInternalServerError},
		{"rate limit", RateLimit("", 60), CodeRateLimit, http.StatusTooManyRequests},
		{"internal", Internal(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.Status)
			}
			if tt.err.UserMessage == "" {
				t.Error("expected non-empty user message")
			}
		})
	}
}

func TestNotFound_Messages(t *testing.T) {
	err := NotFound("workspace", "ws-1")
	if err.Message != "workspace not found: ws-1" {
		t.Errorf("unexpected internal message: %s", err.Message)
	}
	if err.UserMessage != "The requested workspace was not found." {
		t.Errorf("unexpected user message: %s", err.UserMessage)
	}
}

func TestFrom_PassthroughAndWrap(t *testing.T) {
	orig := NotFound("clause", "c1")
	if got := From(fmt.Errorf("wrapped: %w", orig)); got != orig {
		t.Error("From should unwrap to the original *Error")
	}

	plain := errors.New("plain")
	got := From(plain)
	if got.Code != CodeInternal {
		t.Errorf("expected internal code, got %s", got.Code)
	}
	if !errors.Is(got, plain) {
		t.Error("wrapped error should match with errors.Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"plain error", errors.New("dial tcp"), true},
		{"rate limit", RateLimit("", 30), true},
		{"retryable external", ExternalService("openai", "503", true), true},
		{"non-retryable external", ExternalService("openai", "401", false), false},
		{"validation", Validation("bad", ""), false},
		{"not found", NotFound("document", "x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestRateLimit_RetryAfter(t *testing.T) {
	err := RateLimit("OpenAI rate limit exceeded", 60)
	if err.RetryAfter != 60 {
		t.Errorf("expected retry_after 60, got %d", err.RetryAfter)
	}
	if err.Details["retry_after"] != 60 {
		t.Errorf("expected retry_after detail, got %v", err.Details)
	}
}
