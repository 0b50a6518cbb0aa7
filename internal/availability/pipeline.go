package availability

import (
	"sort"
	"time"

	"github.com/hitoshi/interne/internal/model"
)

// View はエントリと評価結果をまとめた表示用の値。
type View struct {
	Entry       *model.Entry
	Available   bool
	AvailableIn *string
	LastViewed  *string
	AvailableAt *time.Time
}

// View はエントリ1件を評価する。
func (c *Calculator) View(e *model.Entry, now time.Time) View {
	st := c.Evaluate(e, now)
	return View{
		Entry:       e,
		Available:   st.Due,
		AvailableIn: st.RemainingLabel,
		LastViewed:  FormatElapsed(e.DismissedAt, now),
		AvailableAt: st.AvailableAt,
	}
}

// Select は閲覧可能なエントリ集合にフィルタを適用し、定義された順序で並べる。
// entriesは呼び出し側で可視性を適用済みであること。
//
//   - available: 表示対象のみ。dismissed_at降順（未訪問が先頭）
//   - hidden: 非表示のみ。dismissed_at降順（未訪問が先頭）、同値はavailable_at昇順
//   - no-visits: 訪問回数0のみ。並びはhiddenと同じ
//   - all: すべて。並びはhiddenと同じ
func (c *Calculator) Select(entries []*model.Entry, filter model.EntryFilter, now time.Time) []View {
	views := make([]View, 0, len(entries))
	for _, e := range entries {
		v := c.View(e, now)
		switch filter {
		case model.EntryFilterAvailable:
			if !v.Available {
				continue
			}
		case model.EntryFilterHidden:
			if v.Available {
				continue
			}
		case model.EntryFilterNoVisits:
			if e.VisitCount != 0 {
				continue
			}
		}
		views = append(views, v)
	}

	withTiebreak := filter != model.EntryFilterAvailable
	sort.SliceStable(views, func(i, j int) bool {
		return less(views[i], views[j], withTiebreak)
	})
	return views
}

// less はdismissed_at降順（nilが先頭）で比較し、必要ならavailable_at昇順で同値を解決する。
func less(a, b View, withTiebreak bool) bool {
	ad, bd := a.Entry.DismissedAt, b.Entry.DismissedAt
	switch {
	case ad == nil && bd != nil:
		return true
	case ad != nil && bd == nil:
		return false
	case ad != nil && bd != nil && !ad.Equal(*bd):
		return ad.After(*bd)
	}

	if !withTiebreak || a.AvailableAt == nil || b.AvailableAt == nil {
		return false
	}
	return a.AvailableAt.Before(*b.AvailableAt)
}
