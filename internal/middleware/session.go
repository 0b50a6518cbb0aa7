// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/interne/internal/model"
)

// SessionCookieName はセッションIDを保持するCookie名。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var userIDContextKey = contextKey("user_id")

// ErrNoUserID はコンテキストに認証済みユーザーIDがないことを表す。
var ErrNoUserID = errors.New("user ID not found in context")

var errNoSession = errors.New("no valid session")

// SessionFinder はセッションの検索に必要なインターフェース。
// 期限切れのセッションはnilを返し、有効なセッションは期限を延長してよい。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はCookieのセッションを検証し、ユーザーIDをコンテキストに注入する。
// 検証できないリクエストには401を返す。
func NewSessionMiddleware(sessions SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := authenticate(r, sessions)
			if err != nil {
				if !errors.Is(err, errNoSession) {
					slog.Error("failed to find session", slog.String("error", err.Error()))
				}
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			recordUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// authenticate はリクエストのCookieからセッションを引き、ユーザーIDを返す。
func authenticate(r *http.Request, sessions SessionFinder) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", errNoSession
	}

	session, err := sessions.FindByID(r.Context(), cookie.Value)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", errNoSession
	}
	return session.UserID, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", ErrNoUserID
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
