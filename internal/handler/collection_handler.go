package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// CollectionServiceInterface はコレクションハンドラーが必要とするサービスインターフェース。
type CollectionServiceInterface interface {
	ListCollections(ctx context.Context, userID string) ([]collectionResponse, error)
	CreateCollection(ctx context.Context, userID, name string) (*collectionResponse, error)
	GetCollection(ctx context.Context, userID, collectionID string) (*collectionDetailResponse, error)
	RenameCollection(ctx context.Context, userID, collectionID, name string) (*collectionResponse, error)
	DeleteCollection(ctx context.Context, userID, collectionID string) error
	JoinCollection(ctx context.Context, userID, inviteCode string) (*collectionResponse, error)
	LeaveCollection(ctx context.Context, userID, collectionID string) error
	RegenerateInvite(ctx context.Context, userID, collectionID string) (*collectionResponse, error)
	RemoveMember(ctx context.Context, userID, collectionID, memberID string) error
}

// CollectionHandler はコレクション管理のHTTPハンドラー。
type CollectionHandler struct {
	service CollectionServiceInterface
}

// NewCollectionHandler はCollectionHandlerを生成する。
func NewCollectionHandler(service CollectionServiceInterface) *CollectionHandler {
	return &CollectionHandler{service: service}
}

type collectionNameRequest struct {
	Name string `json:"name"`
}

type joinCollectionRequest struct {
	InviteCode string `json:"invite_code"`
}

// collectionResponse はコレクションのAPIレスポンス。
// 招待コードはオーナーにのみ返す。
type collectionResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	InviteCode  string    `json:"invite_code,omitempty"`
	MemberCount int       `json:"member_count"`
	IsOwner     bool      `json:"is_owner"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type memberResponse struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

type collectionDetailResponse struct {
	collectionResponse
	Members []memberResponse `json:"members"`
}

// ListCollections は所属コレクション一覧を返す。
// GET /api/collections
func (h *CollectionHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	collections, err := h.service.ListCollections(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if collections == nil {
		collections = []collectionResponse{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

// CreateCollection はコレクションを作成する。
// POST /api/collections
func (h *CollectionHandler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req collectionNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.CreateCollection(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// GetCollection はコレクション詳細とメンバー一覧を返す。
// GET /api/collections/{id}
func (h *CollectionHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetCollection(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// RenameCollection はコレクション名を変更する。
// PUT /api/collections/{id}
func (h *CollectionHandler) RenameCollection(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req collectionNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.RenameCollection(r.Context(), userID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// DeleteCollection はコレクションを削除する。
// DELETE /api/collections/{id}
func (h *CollectionHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCollection(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// JoinCollection は招待コードでコレクションに参加する。
// POST /api/collections/join
func (h *CollectionHandler) JoinCollection(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req joinCollectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.JoinCollection(r.Context(), userID, req.InviteCode)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// LeaveCollection はコレクションから退出する。
// POST /api/collections/{id}/leave
func (h *CollectionHandler) LeaveCollection(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.LeaveCollection(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RegenerateInvite は招待コードを再発行する。
// POST /api/collections/{id}/invite
func (h *CollectionHandler) RegenerateInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	c, err := h.service.RegenerateInvite(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// RemoveMember はメンバーを除名する。
// DELETE /api/collections/{id}/members/{userID}
func (h *CollectionHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	err := h.service.RemoveMember(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
