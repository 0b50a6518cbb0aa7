package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/interne/internal/model"
)

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusNotFound, model.NewEntryNotFoundError("entry-1"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	for _, key := range []string{"code", "message", "category", "action"} {
		if body[key] == "" {
			t.Errorf("field %q should be present", key)
		}
	}
	if body["code"] != model.ErrCodeEntryNotFound || body["category"] != "entry" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if code := decodeErrorCode(t, w); code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  *model.APIError
		want int
	}{
		{"unauthorized", model.NewUnauthorizedError(), http.StatusUnauthorized},
		{"forbidden", model.NewForbiddenError("delete"), http.StatusForbidden},
		{"ssrf", model.NewSSRFBlockedError(), http.StatusForbidden},
		{"csrf", model.NewCSRFTokenInvalidError(), http.StatusForbidden},
		{"validation", model.NewValidationError("title", "too long"), http.StatusBadRequest},
		{"interval", model.NewInvalidIntervalError("fortnights"), http.StatusBadRequest},
		{"entry not found", model.NewEntryNotFoundError("entry-1"), http.StatusNotFound},
		{"owner cannot leave", model.NewOwnerCannotLeaveError(), http.StatusConflict},
		{"rate limit", model.NewRateLimitExceededError(), http.StatusTooManyRequests},
		{"fetch failed", model.NewFetchFailedError("timeout"), http.StatusBadGateway},
		{"unknown", &model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestWriteError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, fmt.Errorf("update entry: %w", model.NewEntryNotFoundError("entry-1")))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if code := decodeErrorCode(t, w); code != model.ErrCodeEntryNotFound {
		t.Errorf("code = %q, want %q", code, model.ErrCodeEntryNotFound)
	}
}

func TestWriteError_PlainErrorHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Errorf("internal detail leaked: %s", w.Body.String())
	}
}
