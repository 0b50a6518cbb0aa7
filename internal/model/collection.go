package model

import "time"

// Collection は複数ユーザーでエントリを共有するためのグループ。
// オーナーは暗黙のメンバーであり、メンバーシップ行は持たない。
type Collection struct {
	ID         string
	OwnerID    string
	Name       string
	InviteCode string
	// MemberCount はオーナーを含む人数（メンバー数 + 1）。
	MemberCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership はコレクションへの参加情報を表す。
type Membership struct {
	CollectionID string
	UserID       string
	UserName     string
	JoinedAt     time.Time
}

// MaxCollectionNameLength はコレクション名の最大長（この値未満であること）。
const MaxCollectionNameLength = 100
