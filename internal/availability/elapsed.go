package availability

import "time"

// FormatElapsed は過去の時刻から現在までの経過を "3 days ago" の形式で返す。
// pastがnilの場合はnil（未訪問）を返す。
//
// 単位は years(>365日)、months(>30日)、weeks(>7日)、days、hours、minutes の順に
// 1以上となる最大のものを選び、すべて0なら "just now" とする。未来の時刻も "just now"。
func FormatElapsed(past *time.Time, now time.Time) *string {
	if past == nil {
		return nil
	}

	label := formatElapsed(now.Sub(*past))
	return &label
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		return "just now"
	}

	days := int(d / day)
	switch {
	case days > 365:
		return plural(days/365, "year") + " ago"
	case days > 30:
		return plural(days/30, "month") + " ago"
	case days > 7:
		return plural(days/7, "week") + " ago"
	case days > 0:
		return plural(days, "day") + " ago"
	}

	if hours := int(d / time.Hour); hours > 0 {
		return plural(hours, "hour") + " ago"
	}
	if minutes := int(d / time.Minute); minutes > 0 {
		return plural(minutes, "minute") + " ago"
	}
	return "just now"
}
