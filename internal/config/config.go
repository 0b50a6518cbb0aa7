package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/interne/internal/availability"
	"github.com/hitoshi/interne/internal/database"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
// yamlタグはCONFIG_FILEで指定されたファイルのキー名。
type Config struct {
	// Database
	DatabaseURL string `yaml:"database_url"`

	// Server
	ServerPort string `yaml:"server_port"`
	BaseURL    string `yaml:"base_url"`

	// Session / Cookie
	SessionMaxAge int    `yaml:"session_max_age"`
	CookieSecure  bool   `yaml:"-"`
	CookieDomain  string `yaml:"cookie_domain"`

	// CORS
	CORSAllowedOrigin string `yaml:"cors_allowed_origin"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int `yaml:"rate_limit_general"`
	RateLimitWrite   int `yaml:"rate_limit_write"`

	// Availability
	Entropy    int                     `yaml:"entropy"`
	JitterMode availability.JitterMode `yaml:"jitter_mode"`

	// Fetch
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FetchMaxSize int64         `yaml:"fetch_max_size"`

	// Worker
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Default は既定値で埋めたConfigを返す。
func Default() *Config {
	return &Config{
		DatabaseURL:       "sqlite:data/interne.db",
		ServerPort:        "3000",
		BaseURL:           "http://localhost:3000",
		SessionMaxAge:     30 * 24 * 60 * 60,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimitGeneral:  120,
		RateLimitWrite:    30,
		Entropy:           5,
		JitterMode:        availability.JitterModeStable,
		FetchTimeout:      10 * time.Second,
		FetchMaxSize:      2 << 20,
		CleanupInterval:   24 * time.Hour,
		LogLevel:          "info",
	}
}

// Load は設定を読み込む。
// CONFIG_FILEが設定されていればYAMLファイルを先に適用し、環境変数で上書きする。
// 不正な値はまとめて1つのエラーとして返す。
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	overrideString("DATABASE_URL", &cfg.DatabaseURL)
	overrideString("SERVER_PORT", &cfg.ServerPort)
	overrideString("BASE_URL", &cfg.BaseURL)
	overrideString("COOKIE_DOMAIN", &cfg.CookieDomain)
	overrideString("CORS_ALLOWED_ORIGIN", &cfg.CORSAllowedOrigin)
	overrideString("LOG_LEVEL", &cfg.LogLevel)
	collect(overrideInt("SESSION_MAX_AGE", &cfg.SessionMaxAge))
	collect(overrideInt("RATE_LIMIT_GENERAL", &cfg.RateLimitGeneral))
	collect(overrideInt("RATE_LIMIT_WRITE", &cfg.RateLimitWrite))
	collect(overrideInt("ENTROPY", &cfg.Entropy))
	collect(overrideInt64("FETCH_MAX_SIZE", &cfg.FetchMaxSize))
	collect(overrideDuration("FETCH_TIMEOUT", &cfg.FetchTimeout))
	collect(overrideDuration("CLEANUP_INTERVAL", &cfg.CleanupInterval))
	if v := os.Getenv("JITTER_MODE"); v != "" {
		cfg.JitterMode = availability.JitterMode(v)
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	return cfg, nil
}

// validate は値の範囲を検証し、見つかった問題をすべて返す。
func (c *Config) validate() []error {
	var errs []error

	if _, err := database.ParseURL(c.DatabaseURL); err != nil {
		errs = append(errs, fmt.Errorf("DATABASE_URL: %w", err))
	}
	if c.Entropy < 0 || c.Entropy > availability.MaxEntropy {
		errs = append(errs, fmt.Errorf("ENTROPY: must be between 0 and %d, got %d", availability.MaxEntropy, c.Entropy))
	}
	if _, err := availability.ParseJitterMode(string(c.JitterMode)); err != nil {
		errs = append(errs, fmt.Errorf("JITTER_MODE: %w", err))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_AGE: must be positive, got %d", c.SessionMaxAge))
	}
	if c.RateLimitGeneral <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_GENERAL: must be positive, got %d", c.RateLimitGeneral))
	}
	if c.RateLimitWrite <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WRITE: must be positive, got %d", c.RateLimitWrite))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("CLEANUP_INTERVAL: must be positive, got %s", c.CleanupInterval))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL: unknown level %q", c.LogLevel))
	}

	return errs
}

// SessionTTL はセッションの有効期間を返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func overrideString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: not an integer: %q", key, v)
	}
	*dst = i
	return nil
}

func overrideInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: not an integer: %q", key, v)
	}
	*dst = i
	return nil
}

func overrideDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: not a duration: %q", key, v)
	}
	*dst = d
	return nil
}
