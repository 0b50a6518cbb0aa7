// Package availability はエントリの表示可否・残り時間ラベル・並び順・閲覧/操作権限を判定する純粋関数群を提供する。
// すべての関数は現在時刻を引数で受け取り、I/Oや時計の読み取りを行わない。
package availability

import (
	"fmt"
	"time"

	"github.com/hitoshi/interne/internal/model"
)

const day = 24 * time.Hour

// MaxEntropy はentropyの上限。
const MaxEntropy = 10

// Status はエントリ1件の評価結果。
type Status struct {
	// Due は再表示対象かどうか。
	Due bool
	// RemainingLabel は再表示までの残り時間（"in 3 days" 等）。Dueの場合はnil。
	RemainingLabel *string
	// AvailableAt はジッターを含まない再表示時刻。未訪問の場合はnil。
	AvailableAt *time.Time
}

// Calculator はエントロピー設定とジッター生成器を保持する判定器。
type Calculator struct {
	entropy int
	jitter  JitterSource
}

// NewCalculator はCalculatorを生成する。
// entropyは0〜10の範囲に丸める。jitterがnilの場合はジッターを適用しない。
func NewCalculator(entropy int, jitter JitterSource) *Calculator {
	if entropy < 0 {
		entropy = 0
	}
	if entropy > MaxEntropy {
		entropy = MaxEntropy
	}
	return &Calculator{entropy: entropy, jitter: jitter}
}

// MaxJitterDays はジッター日数の排他的上限 floor(entropy/10 × 7) を返す。
func (c *Calculator) MaxJitterDays() int {
	return c.entropy * 7 / MaxEntropy
}

// AvailableAt は dismissed_at + duration × 単位 を返す。未訪問の場合はnil。
func AvailableAt(e *model.Entry) *time.Time {
	if e.DismissedAt == nil {
		return nil
	}
	at := e.DismissedAt.Add(e.Interval.Cooldown(e.Duration))
	return &at
}

// Evaluate はエントリの再表示可否と残り時間ラベルを計算する。
func (c *Calculator) Evaluate(e *model.Entry, now time.Time) Status {
	// 1. 未訪問のエントリは常に表示対象
	availableAt := AvailableAt(e)
	if availableAt == nil {
		return Status{Due: true}
	}

	// 2. 境界を含めて経過していれば表示対象
	if !now.Before(*availableAt) {
		return Status{Due: true, AvailableAt: availableAt}
	}

	// 3. 残りが1日を超える場合のみジッターをラベルに加える
	remaining := availableAt.Sub(now)
	if remaining > day && c.jitter != nil {
		if maxDays := c.MaxJitterDays(); maxDays > 0 {
			remaining += time.Duration(c.jitter.OffsetDays(e, maxDays)) * day
		}
	}

	label := FormatRemaining(remaining)
	return Status{Due: false, RemainingLabel: &label, AvailableAt: availableAt}
}

// IsAvailable は (表示対象か, 残り時間ラベル) を返す。
func (c *Calculator) IsAvailable(e *model.Entry, now time.Time) (bool, *string) {
	st := c.Evaluate(e, now)
	return st.Due, st.RemainingLabel
}

// FormatRemaining は残り時間を "in N days" / "in N hours" / "in N minutes" の形式で返す。
// 日、時間、分の順に0でない最大の単位を切り捨てで選ぶ。1分未満は "in 1 minute" とする。
func FormatRemaining(d time.Duration) string {
	if days := int(d / day); days > 0 {
		return "in " + plural(days, "day")
	}
	if hours := int(d / time.Hour); hours > 0 {
		return "in " + plural(hours, "hour")
	}
	minutes := int(d / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return "in " + plural(minutes, "minute")
}

// plural は n が1のときだけ単数形にする。
func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
