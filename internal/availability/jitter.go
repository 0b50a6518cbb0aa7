package availability

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"

	"github.com/hitoshi/interne/internal/model"
)

// JitterSource はジッター日数 [0, maxDays) を返す。
type JitterSource interface {
	OffsetDays(e *model.Entry, maxDays int) int
}

// JitterMode はジッターの生成方式。
type JitterMode string

const (
	// JitterModeStable はエントリIDと訪問時刻から決定的に求める。同じ訪問の間はラベルが変わらない。
	JitterModeStable JitterMode = "stable"
	// JitterModeFresh は評価のたびに乱数を引き直す。
	JitterModeFresh JitterMode = "fresh"
)

// ParseJitterMode は文字列をJitterModeに変換する。
func ParseJitterMode(s string) (JitterMode, error) {
	switch JitterMode(s) {
	case JitterModeStable, JitterModeFresh:
		return JitterMode(s), nil
	}
	return "", fmt.Errorf("unknown jitter mode: %q", s)
}

// NewJitterSource はモードに応じたJitterSourceを返す。
func NewJitterSource(mode JitterMode) JitterSource {
	if mode == JitterModeFresh {
		return FreshJitter{}
	}
	return StableJitter{}
}

// StableJitter は hash(entry_id, dismissed_at) を種にした決定的なジッター。
type StableJitter struct{}

// OffsetDays はJitterSourceを実装する。
func (StableJitter) OffsetDays(e *model.Entry, maxDays int) int {
	if maxDays <= 0 || e.DismissedAt == nil {
		return 0
	}

	d := xxhash.New()
	d.WriteString(e.ID)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(e.DismissedAt.UnixNano()))
	d.Write(ts[:])

	return int(d.Sum64() % uint64(maxDays))
}

// FreshJitter は評価ごとに一様乱数を引く。
type FreshJitter struct{}

// OffsetDays はJitterSourceを実装する。
func (FreshJitter) OffsetDays(_ *model.Entry, maxDays int) int {
	if maxDays <= 0 {
		return 0
	}
	return rand.IntN(maxDays)
}
