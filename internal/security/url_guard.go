// Package security は外部URL取得時のSSRF防止とテキストのサニタイズを提供する。
package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlocked はSSRF防止ポリシーでURLが拒否されたことを表す。
var ErrBlocked = errors.New("blocked by SSRF policy")

// ErrTooLarge はレスポンスボディが上限を超えたことを表す。
var ErrTooLarge = errors.New("response body too large")

// StatusError は2xx以外の応答を表す。
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes はURLに直接書かれたIPアドレスで拒否する範囲。
// 名前解決後のアドレスはsafeurlのDialer側で検証される。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// URLGuard はSSRF防止付きで外部ページを取得する。
// ページタイトルの自動取得とフィードインポートで共有する。
type URLGuard struct {
	client      *http.Client
	maxBodySize int64
}

// NewURLGuard はURLGuardを生成する。
// HTTPクライアントはsafeurlで構築し、プライベート・ループバック・リンクローカル宛ての接続を
// 名前解決後のアドレスで拒否する。
func NewURLGuard(timeout time.Duration, maxBodySize int64) *URLGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &URLGuard{
		client:      safeurl.Client(config).Client,
		maxBodySize: maxBodySize,
	}
}

// Client はSSRF防止付きのHTTPクライアントを返す。
func (g *URLGuard) Client() *http.Client {
	return g.client
}

// Check はURLを名前解決せずに静的に検証する。
// 拒否した場合はErrBlockedをラップしたエラーを返す。
func (g *URLGuard) Check(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL: %w", ErrBlocked)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v: %w", err, ErrBlocked)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme %q: %w", scheme, ErrBlocked)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host: %w", ErrBlocked)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("address %s: %w", addr, ErrBlocked)
			}
		}
		return nil
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("host %s: %w", host, ErrBlocked)
	}
	return nil
}

// Get はURLを検証したうえで取得し、ボディを返す。
// 2xx以外のステータスと上限超過はエラーとする。
func (g *URLGuard) Get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	// 1. 静的検証
	if err := g.Check(rawURL); err != nil {
		return nil, err
	}

	// 2. リクエスト送信
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "interne/1.0")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	// 3. 上限+1バイトまで読み、超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("ボディの読み取りに失敗しました: %w", err)
	}
	if int64(len(body)) > g.maxBodySize {
		return nil, ErrTooLarge
	}
	return body, nil
}
