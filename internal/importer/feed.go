package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/interne/internal/model"
	"github.com/hitoshi/interne/internal/security"
	"github.com/hitoshi/interne/internal/tag"
	"github.com/mmcdole/gofeed"
)

const feedAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8"

// maxImportedDescription は取り込む説明文の最大文字数。
const maxImportedDescription = 5000

// FeedOptions はフィードから作るエントリの再表示間隔。
type FeedOptions struct {
	Duration int
	Interval model.Interval
}

// ImportFeed はRSS/Atomフィードを取得し、未登録のリンクをエントリとして保存する。
func (i *Importer) ImportFeed(ctx context.Context, feedURL, userID string, opts FeedOptions) (*Report, error) {
	// 1. 入力の検証
	if !opts.Interval.Valid() {
		return nil, model.NewInvalidIntervalError(string(opts.Interval))
	}
	if opts.Duration < 1 || opts.Duration > model.MaxDuration {
		return nil, model.NewInvalidDurationError(opts.Duration)
	}
	if i.getter == nil {
		return nil, fmt.Errorf("フィード取得用のクライアントが設定されていません")
	}
	if err := i.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	// 2. フィードの取得
	start := time.Now()
	body, err := i.getWithRetry(ctx, feedURL, feedAccept)
	i.metrics.RecordFetchLatency(time.Since(start))
	if err != nil {
		slog.Error("フィードの取得に失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, security.ErrBlocked) {
			i.metrics.RecordFetchFailure("blocked")
			return nil, model.NewSSRFBlockedError()
		}
		i.metrics.RecordFetchFailure("error")
		return nil, model.NewFetchFailedError(err.Error())
	}

	// 3. gofeedでパース
	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		i.metrics.RecordFetchFailure("parse")
		return nil, model.NewFetchFailedError(fmt.Sprintf("フィードの解析に失敗しました: %v", err))
	}

	// 4. 記事ごとにエントリを作成
	now := i.now().UTC()
	report := &Report{}
	for idx, item := range parsed.Items {
		if item == nil {
			continue
		}
		link := itemLink(item)
		if link == "" {
			report.skip(idx, "", "リンクがありません")
			continue
		}

		exists, err := i.entries.ExistsByOwnerAndURL(ctx, userID, link)
		if err != nil {
			return report, fmt.Errorf("重複確認に失敗しました: %w", err)
		}
		if exists {
			report.skip(idx, link, "登録済みです")
			continue
		}

		entry := i.entryFromItem(item, link, userID, opts, now)
		if err := i.entries.CreateWithVisits(ctx, entry, nil); err != nil {
			return report, fmt.Errorf("エントリの保存に失敗しました: %w", err)
		}
		report.Imported++
	}

	i.metrics.RecordEntriesImported(report.Imported)
	slog.Info("フィードの取り込みが完了しました",
		slog.String("user_id", userID),
		slog.String("feed_url", feedURL),
		slog.Int("items_total", len(parsed.Items)),
		slog.Int("imported", report.Imported),
	)
	return report, nil
}

// itemLink は記事のリンクを返す。リンクがなくGUIDがURL形式ならGUIDを使う。
func itemLink(item *gofeed.Item) string {
	link := strings.TrimSpace(item.Link)
	if link == "" && (strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
		link = item.GUID
	}
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return ""
	}
	return link
}

func (i *Importer) entryFromItem(item *gofeed.Item, link, userID string, opts FeedOptions, now time.Time) *model.Entry {
	title := i.sanitize(item.Title)
	if title == "" {
		title = link
	}
	if utf8.RuneCountInString(title) >= 500 {
		title = string([]rune(title)[:499])
	}
	description := i.sanitize(item.Description)
	if utf8.RuneCountInString(description) > maxImportedDescription {
		description = string([]rune(description)[:maxImportedDescription])
	}

	createdAt := now
	if item.PublishedParsed != nil {
		createdAt = item.PublishedParsed.UTC()
	}

	return &model.Entry{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		URL:         link,
		Title:       title,
		Description: description,
		Duration:    opts.Duration,
		Interval:    opts.Interval,
		Tags:        tag.Normalize(item.Categories),
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}
}
