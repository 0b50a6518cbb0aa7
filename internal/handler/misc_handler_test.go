package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/interne/internal/model"
	"github.com/hitoshi/interne/internal/tag"
)

type mockTagService struct {
	items []tag.CloudItem
	err   error
}

func (m *mockTagService) Cloud(context.Context, string) ([]tag.CloudItem, error) {
	return m.items, m.err
}

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

type mockPinger struct{ err error }

func (m *mockPinger) PingContext(context.Context) error { return m.err }

func TestTagHandler_Cloud(t *testing.T) {
	h := NewTagHandler(&mockTagService{items: []tag.CloudItem{{Name: "go", Count: 3, FontSize: "2.50rem", Color: "hsl(260, 60%, 35%)"}}})
	w := httptest.NewRecorder()
	h.Cloud(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/tags", nil), "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Tags []tag.CloudItem `json:"tags"`
	}
	decodeBody(t, w, &body)
	if len(body.Tags) != 1 || body.Tags[0].Name != "go" {
		t.Errorf("unexpected body: %+v", body)
	}

	h = NewTagHandler(&mockTagService{})
	w = httptest.NewRecorder()
	h.Cloud(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/tags", nil), "user-1"))
	if !strings.Contains(w.Body.String(), `"tags":[]`) {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}
}

func TestUserHandler_Withdraw(t *testing.T) {
	var withdrawn string
	h := NewUserHandler(&mockUserService{withdrawFn: func(_ context.Context, id string) error {
		withdrawn = id
		return nil
	}}, testAuthConfig)

	w := httptest.NewRecorder()
	h.Withdraw(w, withUserID(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "user-1"))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if withdrawn != "user-1" {
		t.Errorf("withdrawn = %q", withdrawn)
	}
	if c := sessionCookieFrom(w.Result()); c == nil || c.MaxAge >= 0 {
		t.Errorf("session cookie should be cleared: %+v", c)
	}
}

func TestUserHandler_Withdraw_Errors(t *testing.T) {
	h := NewUserHandler(&mockUserService{withdrawFn: func(context.Context, string) error {
		return model.NewUserNotFoundError()
	}}, testAuthConfig)

	w := httptest.NewRecorder()
	h.Withdraw(w, withUserID(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "ghost"))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	h.Withdraw(w, httptest.NewRequest(http.MethodDelete, "/api/users/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name    string
		checker HealthChecker
		want    int
	}{
		{name: "ok", checker: &mockPinger{}, want: http.StatusOK},
		{name: "db down", checker: &mockPinger{err: errors.New("connection refused")}, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.checker).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewForbiddenError("update"), http.StatusForbidden},
		{model.NewValidationError("title", "required"), http.StatusBadRequest},
		{model.NewInvalidURLError("scheme"), http.StatusBadRequest},
		{model.NewEntryNotFoundError("e1"), http.StatusNotFound},
		{model.NewOwnerCannotLeaveError(), http.StatusConflict},
		{model.NewFetchFailedError("timeout"), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		handleServiceError(w, tt.err)
		if w.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}
