package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/interne/internal/metrics"
	"github.com/hitoshi/interne/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	MetricsHandler    http.Handler
	Metrics           metrics.MetricsCollector
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	EntryService      EntryServiceInterface
	CollectionService CollectionServiceInterface
	TagService        TagServiceInterface
	UserService       UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → CSRF → Session → RateLimit(General) → RateLimit(Write)
//
// /health、/metrics、/api/csrf-tokenはCSRFとセッションの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	entryHandler := NewEntryHandler(deps.EntryService)
	collectionHandler := NewCollectionHandler(deps.CollectionService)
	tagHandler := NewTagHandler(deps.TagService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	// --- 認証不要のルート ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			write := deps.RateLimiter.WriteMiddleware()

			r.Route("/api/entries", func(r chi.Router) {
				r.Get("/", entryHandler.ListEntries)
				r.With(write).Post("/", entryHandler.CreateEntry)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", entryHandler.GetEntry)
					r.With(write).Put("/", entryHandler.UpdateEntry)
					r.With(write).Delete("/", entryHandler.DeleteEntry)
					r.Post("/visit", entryHandler.VisitEntry)
					r.Get("/visits", entryHandler.ListVisits)
				})
			})

			r.Get("/api/tags", tagHandler.Cloud)
			r.Get("/api/export", entryHandler.Export)

			r.Route("/api/collections", func(r chi.Router) {
				r.Get("/", collectionHandler.ListCollections)
				r.With(write).Post("/", collectionHandler.CreateCollection)
				r.Post("/join", collectionHandler.JoinCollection)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", collectionHandler.GetCollection)
					r.With(write).Put("/", collectionHandler.RenameCollection)
					r.With(write).Delete("/", collectionHandler.DeleteCollection)
					r.Post("/leave", collectionHandler.LeaveCollection)
					r.With(write).Post("/invite", collectionHandler.RegenerateInvite)
					r.With(write).Delete("/members/{userID}", collectionHandler.RemoveMember)
				})
			})

			r.Delete("/api/users/me", userHandler.Withdraw)
		})
	})

	return r
}
