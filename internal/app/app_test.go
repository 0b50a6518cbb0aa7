package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hitoshi/interne/internal/config"
	"github.com/hitoshi/interne/internal/database"
	"github.com/hitoshi/interne/internal/middleware"
)

// setTestEnv は一時ディレクトリのSQLiteを指す最小限の設定を行う。
func setTestEnv(t *testing.T) string {
	t.Helper()
	dbURL := "sqlite:" + filepath.Join(t.TempDir(), "interne.db")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", dbURL)
	t.Setenv("BASE_URL", "http://localhost:3000")
	t.Setenv("ENTROPY", "")
	t.Setenv("JITTER_MODE", "")
	t.Setenv("LOG_LEVEL", "")
	return dbURL
}

func restoreDefaultLogger(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	restoreDefaultLogger(t)
	dbURL := setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.DatabaseURL != dbURL {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, dbURL)
	}

	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_AppliesLogLevel(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "error")

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	slog.Default().Warn("suppressed")
	if buf.Len() != 0 {
		t.Errorf("warn should be suppressed at error level, got: %s", buf.String())
	}
}

func TestInit_WithInvalidConfig_ReturnsError(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)
	t.Setenv("ENTROPY", "42")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for invalid ENTROPY, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

// TestNewRouter_WiresComponents はSQLiteで組み立てたルーターが応答することを検証する。
func TestNewRouter_WiresComponents(t *testing.T) {
	restoreDefaultLogger(t)
	dbURL := setTestEnv(t)
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	c, err := openComponents(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openComponents: %v", err)
	}
	defer c.Close()

	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite))
	defer limiter.Stop()
	router := newRouter(cfg, c, limiter)

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/entries", http.StatusUnauthorized},
		{"/auth/me", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("GET %s status = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}

func TestOpenComponents_BadDatabaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.DatabaseURL = "mysql://localhost/interne"

	if _, err := openComponents(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unsupported database URL")
	}
}

func TestRunHealthcheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want /health", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	if err := runHealthcheck(context.Background(), healthy.URL); err != nil {
		t.Errorf("healthy server: unexpected error %v", err)
	}
	if err := runHealthcheck(context.Background(), unhealthy.URL); err == nil {
		t.Error("unhealthy server: expected error")
	}
}
