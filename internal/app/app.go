package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/interne/internal/auth"
	"github.com/hitoshi/interne/internal/availability"
	"github.com/hitoshi/interne/internal/collection"
	"github.com/hitoshi/interne/internal/config"
	"github.com/hitoshi/interne/internal/database"
	"github.com/hitoshi/interne/internal/entry"
	"github.com/hitoshi/interne/internal/handler"
	"github.com/hitoshi/interne/internal/importer"
	"github.com/hitoshi/interne/internal/logger"
	"github.com/hitoshi/interne/internal/metrics"
	"github.com/hitoshi/interne/internal/middleware"
	"github.com/hitoshi/interne/internal/pagemeta"
	"github.com/hitoshi/interne/internal/repository"
	"github.com/hitoshi/interne/internal/security"
	"github.com/hitoshi/interne/internal/tag"
	"github.com/hitoshi/interne/internal/user"
	"github.com/hitoshi/interne/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 設定読み込み前のエラーもJSONで出せるよう、先にInfoレベルで初期化する
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルで作り直す
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。ログはwに出力する。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}

// components はサブコマンド間で共有する依存関係。
type components struct {
	db      *sql.DB
	dialect database.Dialect

	users       *repository.SQLUserRepo
	sessions    *repository.SQLSessionRepo
	entries     *repository.SQLEntryRepo
	collections *repository.SQLCollectionRepo
	tags        *repository.SQLTagRepo

	registry *prometheus.Registry
	metrics  *metrics.Collector
	guard    *security.URLGuard

	auth       *auth.Service
	entry      *entry.Service
	collection *collection.Service
	tag        *tag.Service
	user       *user.Service
	importer   *importer.Importer
}

// openComponents はDB接続を開き、リポジトリとサービスを組み立てる。
func openComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	// 1. DB接続
	db, dialect, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("dialect", string(dialect)),
		slog.String("database_url", database.MaskURL(cfg.DatabaseURL)),
	)

	c := &components{db: db, dialect: dialect}

	// 2. リポジトリ
	c.users = repository.NewSQLUserRepo(db, dialect)
	c.sessions = repository.NewSQLSessionRepo(db, dialect)
	c.entries = repository.NewSQLEntryRepo(db, dialect)
	c.collections = repository.NewSQLCollectionRepo(db, dialect)
	c.tags = repository.NewSQLTagRepo(db, dialect)

	// 3. メトリクス
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.metrics = metrics.NewCollector(c.registry)

	// 4. 外部取得とサニタイズ
	c.guard = security.NewURLGuard(cfg.FetchTimeout, cfg.FetchMaxSize)
	sanitizer := security.NewTextSanitizer()
	fetcher := pagemeta.NewFetcher(c.guard, c.metrics)

	// 5. ドメインサービス
	calc := availability.NewCalculator(cfg.Entropy, availability.NewJitterSource(cfg.JitterMode))
	c.auth = auth.NewService(c.users, c.sessions, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})
	c.entry = entry.NewService(c.entries, c.collections, calc, fetcher, sanitizer, c.metrics)
	c.collection = collection.NewService(c.collections)
	c.tag = tag.NewService(c.tags)
	c.user = user.NewService(c.users, c.sessions)
	c.importer = importer.NewImporter(c.users, c.entries, c.guard, sanitizer, c.metrics)

	return c, nil
}

// Close はDB接続を閉じる。
func (c *components) Close() error {
	return c.db.Close()
}

// newRouter はHTTPハンドラーを組み立てる。
func newRouter(cfg *config.Config, c *components, limiter *middleware.RateLimiter) http.Handler {
	authConfig := handler.AuthHandlerConfig{
		CookieDomain:  cfg.CookieDomain,
		CookieSecure:  cfg.CookieSecure,
		SessionMaxAge: cfg.SessionMaxAge,
	}

	return handler.NewRouter(&handler.RouterDeps{
		HealthChecker:     c.db,
		MetricsHandler:    metrics.Handler(c.registry),
		Metrics:           c.metrics,
		Logger:            slog.Default(),
		SessionFinder:     c.auth,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: limiter,

		AuthService: c.auth,
		AuthConfig:  authConfig,

		EntryService:      handler.NewEntryServiceAdapter(c.entry),
		CollectionService: handler.NewCollectionServiceAdapter(c.collection),
		TagService:        c.tag,
		UserService:       handler.NewUserServiceAdapter(c.user),
	})
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. 依存関係の組み立て
	c, err := openComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite))
	defer limiter.Stop()

	// 2. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newRouter(cfg, c, limiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("base_url", cfg.BaseURL),
			slog.Int("entropy", cfg.Entropy),
			slog.String("jitter_mode", string(cfg.JitterMode)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 3. シグナルかリッスンエラーを待つ
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// ctxがキャンセルされるまでクリーンアップジョブを定期実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, dialect, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	job := cleanup.NewCleanupJob(db, dialect, slog.Default())
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はすべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", database.MaskURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck は /health にHTTPリクエストを送り、結果を返す。
// distroless環境でのDockerヘルスチェック用。
func runHealthcheck(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
