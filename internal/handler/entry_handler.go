package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/interne/internal/entry"
	"github.com/hitoshi/interne/internal/model"
	"github.com/hitoshi/interne/internal/tag"
)

// EntryServiceInterface はエントリハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	ListEntries(ctx context.Context, userID string, opts entry.ListOptions) ([]entryResponse, error)
	CreateEntry(ctx context.Context, userID string, in model.EntryInput) (*entryResponse, error)
	GetEntry(ctx context.Context, userID, entryID string) (*entryResponse, error)
	UpdateEntry(ctx context.Context, userID, entryID string, in model.EntryInput) (*entryResponse, error)
	DeleteEntry(ctx context.Context, userID, entryID string) error
	// VisitEntry は訪問を記録し、記録後の状態を返す。
	VisitEntry(ctx context.Context, userID, entryID string) (*entryResponse, error)
	ListVisits(ctx context.Context, userID, entryID string) ([]visitResponse, error)
	Export(ctx context.Context, userID string) (*entry.ExportDocument, error)
}

// EntryHandler はエントリ管理のHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

// entryRequest はエントリ作成・更新リクエストのボディ。
// tagsはカンマ区切りの文字列で受け取る。
type entryRequest struct {
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Duration     int     `json:"duration"`
	Interval     string  `json:"interval"`
	CollectionID *string `json:"collection_id"`
	Tags         string  `json:"tags"`
}

// entryResponse はエントリと表示可否のAPIレスポンス。
type entryResponse struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	CollectionID *string    `json:"collection_id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Duration     int        `json:"duration"`
	Interval     string     `json:"interval"`
	DismissedAt  *time.Time `json:"dismissed_at"`
	Available    bool       `json:"available"`
	AvailableIn  *string    `json:"available_in"`
	LastViewed   *string    `json:"last_viewed"`
	VisitCount   int        `json:"visit_count"`
	Tags         []string   `json:"tags"`
	CanEdit      bool       `json:"can_edit"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// visitResponse は訪問履歴1件のAPIレスポンス。
type visitResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	VisitedAt time.Time `json:"visited_at"`
}

// toEntryInput はリクエストボディを入力値に変換する。intervalはここで検証する。
func (req entryRequest) toEntryInput() (model.EntryInput, error) {
	interval, err := model.ParseInterval(req.Interval)
	if err != nil {
		return model.EntryInput{}, model.NewInvalidIntervalError(req.Interval)
	}
	return model.EntryInput{
		URL:          req.URL,
		Title:        req.Title,
		Description:  req.Description,
		Duration:     req.Duration,
		Interval:     interval,
		CollectionID: req.CollectionID,
		Tags:         tag.Parse(req.Tags),
	}, nil
}

// ListEntries はエントリ一覧を返す。
// GET /api/entries?filter=available|hidden|no-visits|all&tag=&collection_id=
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter, valid := model.ParseEntryFilter(q.Get("filter"))
	if !valid {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFilterError(q.Get("filter")))
		return
	}

	entries, err := h.service.ListEntries(r.Context(), userID, entry.ListOptions{
		Filter:       filter,
		Tag:          q.Get("tag"),
		CollectionID: q.Get("collection_id"),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []entryResponse{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"filter":  filter,
	})
}

// CreateEntry はエントリを作成する。
// POST /api/entries
func (h *EntryHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.toEntryInput()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.CreateEntry(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// GetEntry はエントリ詳細を返す。
// GET /api/entries/{id}
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	e, err := h.service.GetEntry(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// UpdateEntry はエントリを更新する。作成者のみが実行できる。
// PUT /api/entries/{id}
func (h *EntryHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.toEntryInput()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.UpdateEntry(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteEntry はエントリを削除する。作成者のみが実行できる。
// DELETE /api/entries/{id}
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteEntry(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VisitEntry は訪問を記録する。
// POST /api/entries/{id}/visit
func (h *EntryHandler) VisitEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	visited, err := h.service.VisitEntry(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, visited)
}

// ListVisits は訪問履歴を返す。
// GET /api/entries/{id}/visits
func (h *EntryHandler) ListVisits(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	visits, err := h.service.ListVisits(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if visits == nil {
		visits = []visitResponse{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"visits": visits})
}

// Export は自分のエントリをJSONファイルとしてダウンロードさせる。
// GET /api/export
func (h *EntryHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	doc, err := h.service.Export(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, entry.ExportFilename(doc.ExportedAt)))
	writeJSON(w, http.StatusOK, doc)
}
