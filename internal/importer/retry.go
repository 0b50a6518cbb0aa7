package importer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/interne/internal/security"
)

const (
	// defaultFetchAttempts はフィード取得の最大試行回数。
	defaultFetchAttempts = 3
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 8 * time.Second
)

// fetchOutcome は取得エラーの分類。
type fetchOutcome int

const (
	fetchOK fetchOutcome = iota
	// fetchStop は再試行しても結果が変わらないエラー（4xx、SSRF拒否、サイズ超過）。
	fetchStop
	// fetchRetry は一時的なエラー（429、5xx、ネットワークエラー）。
	fetchRetry
)

// classifyStatus はHTTPステータスコードを分類する。
func classifyStatus(statusCode int) fetchOutcome {
	switch {
	case statusCode >= 200 && statusCode <= 299:
		return fetchOK
	case statusCode == http.StatusTooManyRequests:
		return fetchRetry
	case statusCode >= 500:
		return fetchRetry
	default:
		return fetchStop
	}
}

// classifyFetchError は取得エラーを分類する。
func classifyFetchError(err error) fetchOutcome {
	if err == nil {
		return fetchOK
	}
	if errors.Is(err, security.ErrBlocked) || errors.Is(err, security.ErrTooLarge) {
		return fetchStop
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fetchStop
	}
	var statusErr *security.StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode)
	}
	return fetchRetry
}

// calculateBackoff は失敗回数に基づく指数バックオフ遅延を返す。
// 初回500ms、2倍ずつ増加、最大8秒。
func calculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// sleepContext はdだけ待つ。ctxが先に終わった場合はそのエラーを返す。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// getWithRetry は一時的なエラーの場合にバックオフを挟んで取得を再試行する。
func (i *Importer) getWithRetry(ctx context.Context, rawURL, accept string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		body, err := i.getter.Get(ctx, rawURL, accept)
		if err == nil {
			return body, nil
		}
		if classifyFetchError(err) != fetchRetry || attempt >= i.fetchAttempts {
			return nil, err
		}

		delay := calculateBackoff(attempt - 1)
		slog.Warn("フィードの取得を再試行します",
			slog.String("feed_url", rawURL),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)
		if waitErr := i.wait(ctx, delay); waitErr != nil {
			return nil, err
		}
	}
}
