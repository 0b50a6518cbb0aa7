package availability

import (
	"strings"
	"time"
)

// storedTimeLayouts は永続化層から読み出されうる時刻表現。
var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ResolveDismissedAt は保存されたdismissed_atを解釈する。
// 空文字列は未訪問としてnilを返す。解釈できない値はnow（訪問直後）として扱い、
// エントリを最も表示されにくい状態に倒す。
func ResolveDismissedAt(raw string, now time.Time) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}

	fallback := now.UTC()
	return &fallback
}
