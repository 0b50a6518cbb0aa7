package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/interne/internal/entry"
	"github.com/hitoshi/interne/internal/model"
)

type mockEntryService struct {
	listFn       func(ctx context.Context, userID string, opts entry.ListOptions) ([]entryResponse, error)
	createFn     func(ctx context.Context, userID string, in model.EntryInput) (*entryResponse, error)
	getFn        func(ctx context.Context, userID, entryID string) (*entryResponse, error)
	updateFn     func(ctx context.Context, userID, entryID string, in model.EntryInput) (*entryResponse, error)
	deleteFn     func(ctx context.Context, userID, entryID string) error
	visitFn      func(ctx context.Context, userID, entryID string) (*entryResponse, error)
	listVisitsFn func(ctx context.Context, userID, entryID string) ([]visitResponse, error)
	exportFn     func(ctx context.Context, userID string) (*entry.ExportDocument, error)
}

func (m *mockEntryService) ListEntries(ctx context.Context, userID string, opts entry.ListOptions) ([]entryResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, opts)
	}
	return nil, nil
}

func (m *mockEntryService) CreateEntry(ctx context.Context, userID string, in model.EntryInput) (*entryResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEntryService) GetEntry(ctx context.Context, userID, entryID string) (*entryResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, entryID)
	}
	return nil, model.NewEntryNotFoundError(entryID)
}

func (m *mockEntryService) UpdateEntry(ctx context.Context, userID, entryID string, in model.EntryInput) (*entryResponse, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, entryID, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEntryService) DeleteEntry(ctx context.Context, userID, entryID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, entryID)
	}
	return nil
}

func (m *mockEntryService) VisitEntry(ctx context.Context, userID, entryID string) (*entryResponse, error) {
	if m.visitFn != nil {
		return m.visitFn(ctx, userID, entryID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEntryService) ListVisits(ctx context.Context, userID, entryID string) ([]visitResponse, error) {
	if m.listVisitsFn != nil {
		return m.listVisitsFn(ctx, userID, entryID)
	}
	return nil, nil
}

func (m *mockEntryService) Export(ctx context.Context, userID string) (*entry.ExportDocument, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func sampleEntryResponse(id string) *entryResponse {
	return &entryResponse{
		ID:       id,
		OwnerID:  "user-1",
		URL:      "https://example.com/" + id,
		Title:    "Example " + id,
		Duration: 3,
		Interval: "days",
		Tags:     []string{"go"},
		CanEdit:  true,
	}
}

func TestEntryHandler_ListEntries_PassesOptions(t *testing.T) {
	var got entry.ListOptions
	svc := &mockEntryService{listFn: func(_ context.Context, userID string, opts entry.ListOptions) ([]entryResponse, error) {
		if userID != "user-1" {
			t.Errorf("userID = %q", userID)
		}
		got = opts
		return []entryResponse{*sampleEntryResponse("e1")}, nil
	}}
	h := NewEntryHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/entries?filter=hidden&tag=Go&collection_id=col-1", nil)
	w := httptest.NewRecorder()
	h.ListEntries(w, withUserID(req, "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.Filter != model.EntryFilterHidden || got.Tag != "Go" || got.CollectionID != "col-1" {
		t.Errorf("unexpected options: %+v", got)
	}

	var body struct {
		Entries []map[string]any `json:"entries"`
		Filter  string           `json:"filter"`
	}
	decodeBody(t, w, &body)
	if len(body.Entries) != 1 || body.Filter != "hidden" {
		t.Fatalf("unexpected body: %+v", body)
	}
	for _, key := range []string{"id", "owner_id", "collection_id", "url", "title", "description", "duration",
		"interval", "dismissed_at", "available", "available_in", "last_viewed", "visit_count", "tags",
		"can_edit", "created_at", "updated_at"} {
		if _, ok := body.Entries[0][key]; !ok {
			t.Errorf("entry JSON missing %q", key)
		}
	}
}

func TestEntryHandler_ListEntries_DefaultFilterAndEmpty(t *testing.T) {
	var got entry.ListOptions
	h := NewEntryHandler(&mockEntryService{listFn: func(_ context.Context, _ string, opts entry.ListOptions) ([]entryResponse, error) {
		got = opts
		return nil, nil
	}})

	w := httptest.NewRecorder()
	h.ListEntries(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/entries", nil), "user-1"))

	if got.Filter != model.EntryFilterAvailable {
		t.Errorf("filter = %q, want available", got.Filter)
	}
	if !strings.Contains(w.Body.String(), `"entries":[]`) {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}
}

func TestEntryHandler_ListEntries_InvalidFilter(t *testing.T) {
	h := NewEntryHandler(&mockEntryService{})
	w := httptest.NewRecorder()
	h.ListEntries(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/entries?filter=soon", nil), "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if code := parseAPIErrorResponse(t, w)["code"]; code != model.ErrCodeInvalidFilter {
		t.Errorf("code = %q", code)
	}
}

func TestEntryHandler_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewEntryHandler(&mockEntryService{})
	handlers := map[string]http.HandlerFunc{
		"list":   h.ListEntries,
		"create": h.CreateEntry,
		"get":    h.GetEntry,
		"update": h.UpdateEntry,
		"delete": h.DeleteEntry,
		"visit":  h.VisitEntry,
		"visits": h.ListVisits,
		"export": h.Export,
	}
	for name, fn := range handlers {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestEntryHandler_CreateEntry_ParsesBody(t *testing.T) {
	var got model.EntryInput
	h := NewEntryHandler(&mockEntryService{createFn: func(_ context.Context, _ string, in model.EntryInput) (*entryResponse, error) {
		got = in
		return sampleEntryResponse("e1"), nil
	}})

	body := `{"url":"https://example.com","title":"T","duration":2,"interval":"Weeks","collection_id":"col-1","tags":"Go, web ,go"}`
	w := httptest.NewRecorder()
	h.CreateEntry(w, withUserID(httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(body)), "user-1"))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if got.Interval != model.IntervalWeeks || got.Duration != 2 {
		t.Errorf("unexpected schedule: %+v", got)
	}
	if got.CollectionID == nil || *got.CollectionID != "col-1" {
		t.Errorf("collection = %v", got.CollectionID)
	}
	if strings.Join(got.Tags, ",") != "go,web" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestEntryHandler_CreateEntry_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
		code string
	}{
		{name: "malformed", body: `{`, want: http.StatusBadRequest, code: model.ErrCodeInvalidRequest},
		{name: "unknown interval", body: `{"url":"https://x.com","title":"t","duration":1,"interval":"fortnights"}`, want: http.StatusBadRequest, code: model.ErrCodeInvalidInterval},
		{name: "duration", body: `{"url":"https://x.com","title":"t","duration":0,"interval":"days"}`, err: model.NewInvalidDurationError(0), want: http.StatusBadRequest, code: model.ErrCodeInvalidDuration},
		{name: "ssrf", body: `{"url":"http://127.0.0.1","duration":1,"interval":"days"}`, err: model.NewSSRFBlockedError(), want: http.StatusForbidden, code: model.ErrCodeSSRFBlocked},
		{name: "fetch", body: `{"url":"https://x.com","duration":1,"interval":"days"}`, err: model.NewFetchFailedError("timeout"), want: http.StatusBadGateway, code: model.ErrCodeFetchFailed},
		{name: "collection", body: `{"url":"https://x.com","title":"t","duration":1,"interval":"days","collection_id":"other"}`, err: model.NewCollectionNotFoundError("other"), want: http.StatusNotFound, code: model.ErrCodeCollectionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEntryHandler(&mockEntryService{createFn: func(context.Context, string, model.EntryInput) (*entryResponse, error) {
				return nil, tt.err
			}})
			w := httptest.NewRecorder()
			h.CreateEntry(w, withUserID(httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(tt.body)), "user-1"))

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if code := parseAPIErrorResponse(t, w)["code"]; code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestEntryHandler_GetEntry(t *testing.T) {
	h := NewEntryHandler(&mockEntryService{getFn: func(_ context.Context, _ string, id string) (*entryResponse, error) {
		if id == "e1" {
			return sampleEntryResponse("e1"), nil
		}
		return nil, model.NewEntryNotFoundError(id)
	}})

	w := httptest.NewRecorder()
	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodGet, "/api/entries/e1", nil), "user-1"), "id", "e1")
	h.GetEntry(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	req = withChiURLParam(withUserID(httptest.NewRequest(http.MethodGet, "/api/entries/hidden", nil), "user-1"), "id", "hidden")
	h.GetEntry(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestEntryHandler_UpdateEntry_Forbidden(t *testing.T) {
	h := NewEntryHandler(&mockEntryService{updateFn: func(_ context.Context, _, id string, _ model.EntryInput) (*entryResponse, error) {
		return nil, model.NewForbiddenError("update")
	}})

	body := `{"url":"https://example.com","title":"T","duration":1,"interval":"days"}`
	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodPut, "/api/entries/e1", strings.NewReader(body)), "member-1"), "id", "e1")
	w := httptest.NewRecorder()
	h.UpdateEntry(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestEntryHandler_UpdateEntry_Success(t *testing.T) {
	var gotID string
	h := NewEntryHandler(&mockEntryService{updateFn: func(_ context.Context, _, id string, in model.EntryInput) (*entryResponse, error) {
		gotID = id
		resp := sampleEntryResponse(id)
		resp.Title = in.Title
		return resp, nil
	}})

	body := `{"url":"https://example.com","title":"Renamed","duration":1,"interval":"hours"}`
	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodPut, "/api/entries/e1", strings.NewReader(body)), "user-1"), "id", "e1")
	w := httptest.NewRecorder()
	h.UpdateEntry(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotID != "e1" {
		t.Errorf("id = %q", gotID)
	}
	var resp entryResponse
	decodeBody(t, w, &resp)
	if resp.Title != "Renamed" {
		t.Errorf("title = %q", resp.Title)
	}
}

func TestEntryHandler_DeleteEntry(t *testing.T) {
	var deleted string
	h := NewEntryHandler(&mockEntryService{deleteFn: func(_ context.Context, _, id string) error {
		deleted = id
		return nil
	}})

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodDelete, "/api/entries/e1", nil), "user-1"), "id", "e1")
	w := httptest.NewRecorder()
	h.DeleteEntry(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if deleted != "e1" {
		t.Errorf("deleted = %q", deleted)
	}
}

func TestEntryHandler_VisitEntry(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	h := NewEntryHandler(&mockEntryService{visitFn: func(_ context.Context, _, id string) (*entryResponse, error) {
		resp := sampleEntryResponse(id)
		resp.DismissedAt = &now
		resp.AvailableIn = strPtr("in 3 days")
		resp.LastViewed = strPtr("just now")
		resp.VisitCount = 1
		return resp, nil
	}})

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodPost, "/api/entries/e1/visit", nil), "user-1"), "id", "e1")
	w := httptest.NewRecorder()
	h.VisitEntry(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp entryResponse
	decodeBody(t, w, &resp)
	if resp.Available || resp.VisitCount != 1 || resp.AvailableIn == nil || *resp.AvailableIn != "in 3 days" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestEntryHandler_ListVisits_EmptyArray(t *testing.T) {
	h := NewEntryHandler(&mockEntryService{})
	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodGet, "/api/entries/e1/visits", nil), "user-1"), "id", "e1")
	w := httptest.NewRecorder()
	h.ListVisits(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"visits":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestEntryHandler_Export_SetsAttachment(t *testing.T) {
	exportedAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	h := NewEntryHandler(&mockEntryService{exportFn: func(context.Context, string) (*entry.ExportDocument, error) {
		return &entry.ExportDocument{ExportedAt: exportedAt, Entries: []entry.ExportEntry{{ID: "e1", Tags: []string{}}}}, nil
	}})

	w := httptest.NewRecorder()
	h.Export(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/export", nil), "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="interne-export-2026-05-01.json"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	var doc entry.ExportDocument
	decodeBody(t, w, &doc)
	if len(doc.Entries) != 1 || doc.Entries[0].ID != "e1" {
		t.Errorf("unexpected document: %+v", doc)
	}
}
