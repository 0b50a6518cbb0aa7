// Package importer は旧形式のJSONとRSS/Atomフィードからエントリを取り込む。
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/interne/internal/metrics"
	"github.com/hitoshi/interne/internal/model"
)

// UserFinder は取り込み先ユーザーの存在を確認する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// EntryStore はエントリの重複確認と保存を行う。
type EntryStore interface {
	ExistsByOwnerAndURL(ctx context.Context, ownerID, url string) (bool, error)
	CreateWithVisits(ctx context.Context, entry *model.Entry, visits []*model.Visit) error
}

// Getter はSSRF防止付きでURLを取得する。
type Getter interface {
	Get(ctx context.Context, rawURL, accept string) ([]byte, error)
}

// Sanitizer はテキストからマークアップを除去する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// ItemError は取り込めなかった項目とその理由。
type ItemError struct {
	Index  int
	URL    string
	Reason string
}

// Report は取り込み結果。
type Report struct {
	Imported int
	Skipped  []ItemError
}

func (r *Report) skip(index int, url, reason string) {
	r.Skipped = append(r.Skipped, ItemError{Index: index, URL: url, Reason: reason})
}

// Importer はエントリの取り込みを行う。
type Importer struct {
	users     UserFinder
	entries   EntryStore
	getter    Getter
	sanitizer Sanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time

	fetchAttempts int
	wait          func(ctx context.Context, d time.Duration) error
}

// NewImporter はImporterを生成する。getterがnilの場合はフィードの取り込みを行えない。
func NewImporter(users UserFinder, entries EntryStore, getter Getter, sanitizer Sanitizer, mc metrics.MetricsCollector) *Importer {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Importer{
		users:     users,
		entries:   entries,
		getter:    getter,
		sanitizer: sanitizer,
		metrics:   mc,
		now:       time.Now,

		fetchAttempts: defaultFetchAttempts,
		wait:          sleepContext,
	}
}

// ensureUser は取り込み先ユーザーが存在することを確認する。
func (i *Importer) ensureUser(ctx context.Context, userID string) error {
	u, err := i.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}
	return nil
}

func (i *Importer) sanitize(s string) string {
	if i.sanitizer == nil {
		return s
	}
	return i.sanitizer.Sanitize(s)
}
