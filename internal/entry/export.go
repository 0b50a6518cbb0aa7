package entry

import (
	"context"
	"fmt"
	"time"
)

// ExportEntry はエクスポート用のエントリ表現。
type ExportEntry struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Duration    int        `json:"duration"`
	Interval    string     `json:"interval"`
	DismissedAt *time.Time `json:"dismissed_at"`
	VisitCount  int        `json:"visit_count"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ExportDocument はエクスポートファイル全体。
type ExportDocument struct {
	ExportedAt time.Time     `json:"exported_at"`
	Entries    []ExportEntry `json:"entries"`
}

// Export はユーザーが作成したエントリを作成日時順で返す。
// 共有コレクション経由で閲覧できる他人のエントリは含めない。
func (s *Service) Export(ctx context.Context, userID string, now time.Time) (*ExportDocument, error) {
	entries, err := s.entries.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("エクスポート対象の取得に失敗しました: %w", err)
	}

	doc := &ExportDocument{
		ExportedAt: now.UTC(),
		Entries:    make([]ExportEntry, 0, len(entries)),
	}
	for _, e := range entries {
		tags := e.Tags
		if tags == nil {
			tags = []string{}
		}
		doc.Entries = append(doc.Entries, ExportEntry{
			ID:          e.ID,
			URL:         e.URL,
			Title:       e.Title,
			Description: e.Description,
			Duration:    e.Duration,
			Interval:    string(e.Interval),
			DismissedAt: e.DismissedAt,
			VisitCount:  e.VisitCount,
			Tags:        tags,
			CreatedAt:   e.CreatedAt,
			UpdatedAt:   e.UpdatedAt,
		})
	}
	return doc, nil
}

// ExportFilename はダウンロード時のファイル名を返す。
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("interne-export-%s.json", now.Format("2006-01-02"))
}
