package model

import (
	"fmt"
	"strings"
	"time"
)

// Interval は再表示間隔の単位を表す。
// 値は閉じた列挙型であり、境界でParseIntervalを通したものだけを扱う。
type Interval string

const (
	IntervalHours  Interval = "hours"
	IntervalDays   Interval = "days"
	IntervalWeeks  Interval = "weeks"
	IntervalMonths Interval = "months"
	IntervalYears  Interval = "years"
)

// MaxDuration はdurationの上限。years換算でも時間計算がオーバーフローしない範囲。
const MaxDuration = 3650

// AllIntervals は定義済みの全単位を返す。
func AllIntervals() []Interval {
	return []Interval{IntervalHours, IntervalDays, IntervalWeeks, IntervalMonths, IntervalYears}
}

// ParseInterval は文字列を Interval に変換する。
// 大文字小文字と前後の空白は無視する。未知の値はエラーを返し、既定値へは決してフォールバックしない。
func ParseInterval(s string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case IntervalHours:
		return IntervalHours, nil
	case IntervalDays:
		return IntervalDays, nil
	case IntervalWeeks:
		return IntervalWeeks, nil
	case IntervalMonths:
		return IntervalMonths, nil
	case IntervalYears:
		return IntervalYears, nil
	}
	return "", fmt.Errorf("unknown interval: %q", s)
}

// Valid は列挙値に含まれるかどうかを返す。
func (i Interval) Valid() bool {
	return i.Multiplier() != 0
}

// Multiplier は1単位あたりの期間を返す。
// monthsは30日、yearsは365日の近似でありカレンダーは考慮しない。
// 未知の値は0を返すため、呼び出し側は事前にValidを確認すること。
func (i Interval) Multiplier() time.Duration {
	const day = 24 * time.Hour
	switch i {
	case IntervalHours:
		return time.Hour
	case IntervalDays:
		return day
	case IntervalWeeks:
		return 7 * day
	case IntervalMonths:
		return 30 * day
	case IntervalYears:
		return 365 * day
	default:
		return 0
	}
}

// Cooldown は duration × 単位 の期間を返す。
func (i Interval) Cooldown(duration int) time.Duration {
	return time.Duration(duration) * i.Multiplier()
}
