// Package tag はタグの正規化とタグクラウドの生成を提供する。
package tag

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/hitoshi/interne/internal/model"
)

// MaxLength はタグ名の最大文字数。
const MaxLength = 100

// Parse はカンマ区切りのタグ文字列を正規化済みのタグ名一覧に変換する。
func Parse(raw string) []string {
	return Normalize(strings.Split(raw, ","))
}

// Normalize はタグ名の前後空白を除き小文字化する。空のタグと重複は除外し、出現順を保つ。
func Normalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// CloudItem はタグクラウドの1要素。
type CloudItem struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	FontSize string `json:"font_size"`
	Color    string `json:"color"`
}

// タグクラウドの表示範囲。件数が多いほど大きく濃い色になる。
const (
	minSize  = 0.75
	maxSize  = 2.5
	minHue   = 180.0
	maxHue   = 260.0
	minSat   = 40.0
	maxSat   = 60.0
	maxLight = 70.0
	minLight = 35.0
)

// BuildCloud は件数を対数スケールで正規化し、フォントサイズと色を割り当てる。
// 全タグの件数が同じ場合は中間値を使う。
func BuildCloud(tags []*model.Tag) []CloudItem {
	if len(tags) == 0 {
		return []CloudItem{}
	}

	minCount, maxCount := tags[0].Count, tags[0].Count
	for _, t := range tags[1:] {
		minCount = min(minCount, t.Count)
		maxCount = max(maxCount, t.Count)
	}

	logMin := math.Log(float64(max(minCount, 1)))
	logMax := math.Log(float64(max(maxCount, 1)))

	items := make([]CloudItem, 0, len(tags))
	for _, t := range tags {
		ratio := 0.5
		if logMax != logMin {
			ratio = (math.Log(float64(max(t.Count, 1))) - logMin) / (logMax - logMin)
		}

		items = append(items, CloudItem{
			Name:     t.Name,
			Count:    t.Count,
			FontSize: fmt.Sprintf("%.2frem", minSize+ratio*(maxSize-minSize)),
			Color: fmt.Sprintf("hsl(%.0f, %.0f%%, %.0f%%)",
				minHue+ratio*(maxHue-minHue),
				minSat+ratio*(maxSat-minSat),
				maxLight-ratio*(maxLight-minLight),
			),
		})
	}
	return items
}

// Counter はユーザーが閲覧しうるタグの件数を返す。
type Counter interface {
	CountVisibleTo(ctx context.Context, userID string) ([]*model.Tag, error)
}

// Service はタグクラウドのサービス層。
type Service struct {
	counter Counter
}

// NewService はServiceを生成する。
func NewService(counter Counter) *Service {
	return &Service{counter: counter}
}

// Cloud はユーザーのタグクラウドを返す。
func (s *Service) Cloud(ctx context.Context, userID string) ([]CloudItem, error) {
	tags, err := s.counter.CountVisibleTo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("タグの集計に失敗しました: %w", err)
	}
	return BuildCloud(tags), nil
}
