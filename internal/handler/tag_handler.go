package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/interne/internal/tag"
)

// TagServiceInterface はタグハンドラーが必要とするサービスインターフェース。
type TagServiceInterface interface {
	Cloud(ctx context.Context, userID string) ([]tag.CloudItem, error)
}

// TagHandler はタグクラウドのHTTPハンドラー。
type TagHandler struct {
	service TagServiceInterface
}

// NewTagHandler はTagHandlerを生成する。
func NewTagHandler(service TagServiceInterface) *TagHandler {
	return &TagHandler{service: service}
}

// Cloud は閲覧可能なエントリのタグクラウドを返す。
// GET /api/tags
func (h *TagHandler) Cloud(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := h.service.Cloud(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if items == nil {
		items = []tag.CloudItem{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tags": items})
}
