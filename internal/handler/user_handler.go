package handler

import (
	"context"
	"net/http"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーと、そのユーザーが所有するデータをすべて削除する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler は退会を扱う。
type UserHandler struct {
	service UserServiceInterface
	config  AuthHandlerConfig
}

func NewUserHandler(service UserServiceInterface, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{service: service, config: config}
}

// Withdraw は DELETE /api/users/me 。成功したらセッションCookieも消す。
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSessionCookie(w, h.config, "", -1)
	w.WriteHeader(http.StatusNoContent)
}
