// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// InviteCodeはログインに使用する秘密の招待コード。
type User struct {
	ID         string
	Name       string
	Email      string
	InviteCode string
	CreatedAt  time.Time
}

// Session はユーザーのログインセッションを表す。
// 最終利用から一定期間アクセスがなければ失効する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
