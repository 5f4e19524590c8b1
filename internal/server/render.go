package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/server/internal/apperr"
)

// renderJSON writes a JSON response with the given status code.
func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// errorResponse is the wire format for all error responses.
type errorResponse struct {
	Error     bool           `json:"error"`
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// renderError maps any error to the error response body. Server errors get a
// correlation ID that appears in both the log entry and the response; the
// underlying error text is only exposed outside production.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	details := e.Details

	if e.Status >= http.StatusInternalServerError {
		errorID := uuid.New().String()
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error_code", e.Code,
			"error_id", errorID,
			"error", e.Error())

		details = make(map[string]any, len(e.Details)+2)
		for k, v := range e.Details {
			details[k] = v
		}
		details["error_id"] = errorID
		if s.environment != "production" {
			details["exception"] = e.Error()
		}
	}

	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}

	renderJSON(w, e.Status, errorResponse{
		Error:     true,
		ErrorCode: e.Code,
		Message:   e.UserMessage,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeJSON parses a request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.RequestValidation([]map[string]any{
			{"field": "body", "message": err.Error(), "code": "json_invalid"},
		})
	}
	return nil
}
