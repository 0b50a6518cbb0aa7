package model

import "time"

// Entry は再訪周期付きで保存されたURLを表す。
type Entry struct {
	ID           string
	OwnerID      string
	CollectionID *string
	URL          string
	Title        string
	Description  string
	Duration     int
	Interval     Interval
	// DismissedAt は最後に訪問された時刻。nilは未訪問（常に表示対象）。
	DismissedAt *time.Time
	VisitCount  int
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Visit はエントリの訪問履歴1件を表す。追記のみで更新・削除はしない。
type Visit struct {
	ID        string
	EntryID   string
	UserID    string
	VisitedAt time.Time
}

// EntryInput はエントリ作成・更新の入力値。
// IntervalとDurationは境界で検証済みであること。
type EntryInput struct {
	URL          string
	Title        string
	Description  string
	Duration     int
	Interval     Interval
	CollectionID *string
	Tags         []string
}

// EntryFilter はエントリ一覧の絞り込み条件を表す。
type EntryFilter string

const (
	EntryFilterAvailable EntryFilter = "available"
	EntryFilterHidden    EntryFilter = "hidden"
	EntryFilterNoVisits  EntryFilter = "no-visits"
	EntryFilterAll       EntryFilter = "all"
)

// ParseEntryFilter は文字列をEntryFilterに変換する。空文字列はavailableとみなす。
func ParseEntryFilter(s string) (EntryFilter, bool) {
	switch EntryFilter(s) {
	case "":
		return EntryFilterAvailable, true
	case EntryFilterAvailable, EntryFilterHidden, EntryFilterNoVisits, EntryFilterAll:
		return EntryFilter(s), true
	}
	return "", false
}

// Tag はタグとその利用数を表す。
type Tag struct {
	ID    string
	Name  string
	Count int
}
