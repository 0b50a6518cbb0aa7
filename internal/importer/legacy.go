package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/interne/internal/availability"
	"github.com/hitoshi/interne/internal/model"
	"github.com/hitoshi/interne/internal/tag"
)

// legacyDuration は数値と数値文字列のどちらでも書かれうるduration。
type legacyDuration struct {
	raw string
}

func (d *legacyDuration) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d.raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a number or a string: %w", err)
	}
	d.raw = n.String()
	return nil
}

// value はdurationを整数として解釈する。範囲外や小数はエラーとする。
func (d legacyDuration) value() (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(d.raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", d.raw)
	}
	if n < 1 || n > model.MaxDuration {
		return 0, fmt.Errorf("duration out of range: %d", n)
	}
	return n, nil
}

// legacyEntry は旧形式のエクスポートの1件。
type legacyEntry struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Description *string        `json:"description"`
	Duration    legacyDuration `json:"duration"`
	Interval    string         `json:"interval"`
	Visited     *int           `json:"visited"`
	Tags        []string       `json:"tags"`
	CreatedAt   *string        `json:"createdAt"`
	UpdatedAt   *string        `json:"updatedAt"`
	DismissedAt *string        `json:"dismissedAt"`
}

// ImportLegacy は旧形式のJSON配列を読み込み、ユーザーのエントリとして保存する。
// 間隔やdurationが不正な項目は既定値で補わずにスキップし、Reportに理由を記録する。
func (i *Importer) ImportLegacy(ctx context.Context, r io.Reader, userID string) (*Report, error) {
	// 1. 取り込み先ユーザーの確認
	if err := i.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	// 2. JSONの読み込み
	var items []legacyEntry
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("JSONの解析に失敗しました: %w", err)
	}

	// 3. 1件ずつ変換して保存
	now := i.now().UTC()
	report := &Report{}
	for idx, item := range items {
		entry, visits, err := i.convertLegacy(item, userID, now)
		if err != nil {
			slog.Warn("取り込めない項目をスキップしました",
				slog.Int("index", idx),
				slog.String("url", item.URL),
				slog.String("reason", err.Error()),
			)
			report.skip(idx, item.URL, err.Error())
			continue
		}

		if err := i.entries.CreateWithVisits(ctx, entry, visits); err != nil {
			return report, fmt.Errorf("エントリの保存に失敗しました (index %d): %w", idx, err)
		}
		report.Imported++
	}

	i.metrics.RecordEntriesImported(report.Imported)
	slog.Info("旧形式データの取り込みが完了しました",
		slog.String("user_id", userID),
		slog.Int("imported", report.Imported),
		slog.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

func (i *Importer) convertLegacy(item legacyEntry, userID string, now time.Time) (*model.Entry, []*model.Visit, error) {
	rawURL := strings.TrimSpace(item.URL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, nil, fmt.Errorf("invalid url %q", item.URL)
	}

	interval, err := model.ParseInterval(item.Interval)
	if err != nil {
		return nil, nil, err
	}
	duration, err := item.Duration.value()
	if err != nil {
		return nil, nil, err
	}

	title := i.sanitize(item.Title)
	if title == "" {
		title = rawURL
	}
	var description string
	if item.Description != nil {
		description = i.sanitize(*item.Description)
	}

	// 解釈できない日時は取り込み時刻として扱う
	var dismissedAt *time.Time
	if item.DismissedAt != nil {
		dismissedAt = availability.ResolveDismissedAt(*item.DismissedAt, now)
	}
	createdAt := resolveOr(item.CreatedAt, now)
	updatedAt := resolveOr(item.UpdatedAt, createdAt)

	entry := &model.Entry{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		URL:         rawURL,
		Title:       title,
		Description: description,
		Duration:    duration,
		Interval:    interval,
		DismissedAt: dismissedAt,
		Tags:        tag.Normalize(item.Tags),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}

	// 訪問回数の分だけ訪問履歴を作る。時刻は最終訪問、なければ取り込み時刻とする
	var visits []*model.Visit
	if item.Visited != nil && *item.Visited > 0 {
		visitedAt := now
		if dismissedAt != nil {
			visitedAt = *dismissedAt
		}
		visits = make([]*model.Visit, 0, *item.Visited)
		for range *item.Visited {
			visits = append(visits, &model.Visit{
				ID:        uuid.NewString(),
				EntryID:   entry.ID,
				UserID:    userID,
				VisitedAt: visitedAt,
			})
		}
		entry.VisitCount = len(visits)
	}
	return entry, visits, nil
}

func resolveOr(raw *string, fallback time.Time) time.Time {
	if raw == nil {
		return fallback
	}
	if t := availability.ResolveDismissedAt(*raw, fallback); t != nil {
		return *t
	}
	return fallback
}
