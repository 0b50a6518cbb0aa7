// Package repository はデータ永続化のインターフェースとSQL実装を定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/interne/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByInviteCode は招待コードでユーザーを検索する。見つからない場合はnilを返す。
	FindByInviteCode(ctx context.Context, code string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// エントリ、コレクション、メンバーシップ、訪問履歴、セッションはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindValid は指定IDのセッションを取得する。now時点で期限切れの場合はnilを返す。
	FindValid(ctx context.Context, id string, now time.Time) (*model.Session, error)
	// Extend はセッションの有効期限を更新する。
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// EntryRepository はエントリと訪問履歴の永続化インターフェース。
// 読み出したエントリにはvisit_count（訪問行の件数）とタグが設定される。
type EntryRepository interface {
	// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Entry, error)

	// ListVisibleTo はユーザーが閲覧しうるエントリ（自分のもの、または所属コレクションのもの）を
	// created_at降順で返す。
	ListVisibleTo(ctx context.Context, userID string) ([]*model.Entry, error)

	// ListByOwner はユーザーが作成したエントリをcreated_at昇順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Entry, error)

	// ExistsByOwnerAndURL は同じURLのエントリを既に作成済みかを返す。
	ExistsByOwnerAndURL(ctx context.Context, ownerID, url string) (bool, error)

	// Create はエントリとタグを同一トランザクションで作成する。
	Create(ctx context.Context, entry *model.Entry) error

	// CreateWithVisits はエントリ、タグ、既存の訪問履歴を同一トランザクションで作成する。
	CreateWithVisits(ctx context.Context, entry *model.Entry, visits []*model.Visit) error

	// Update はエントリのURL・タイトル・説明・間隔・コレクション・タグを更新する。
	// dismissed_atは変更しない。
	Update(ctx context.Context, entry *model.Entry) error

	// Delete は指定IDのエントリを削除する。訪問履歴とタグの紐付けはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// RecordVisit は訪問行の追加とdismissed_atの更新を同一トランザクションで行う。
	RecordVisit(ctx context.Context, visit *model.Visit) error

	// ListVisits はエントリの訪問履歴をvisited_at降順で返す。
	ListVisits(ctx context.Context, entryID string) ([]*model.Visit, error)
}

// CollectionRepository はコレクションとメンバーシップの永続化インターフェース。
type CollectionRepository interface {
	// FindByID は指定IDのコレクションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Collection, error)

	// FindByInviteCode は招待コードでコレクションを検索する。見つからない場合はnilを返す。
	FindByInviteCode(ctx context.Context, code string) (*model.Collection, error)

	// ListForUser はユーザーがオーナーまたはメンバーのコレクションを名前順で返す。
	ListForUser(ctx context.Context, userID string) ([]*model.Collection, error)

	// CollectionIDsForUser はユーザーが所属するコレクションID（オーナー分を含む）を返す。
	CollectionIDsForUser(ctx context.Context, userID string) ([]string, error)

	// Create はコレクションを作成する。
	Create(ctx context.Context, c *model.Collection) error

	// Update はコレクション名と招待コードを更新する。
	Update(ctx context.Context, c *model.Collection) error

	// Delete はコレクションを削除する。所属エントリのcollection_idはNULLになる。
	Delete(ctx context.Context, id string) error

	// AddMember はメンバーを追加する。既に参加済みの場合は何もしない。
	AddMember(ctx context.Context, m *model.Membership) error

	// RemoveMember はメンバーを削除する。削除した場合にtrueを返す。
	RemoveMember(ctx context.Context, collectionID, userID string) (bool, error)

	// ListMembers はメンバー（オーナーを除く）を参加日時順で返す。
	ListMembers(ctx context.Context, collectionID string) ([]*model.Membership, error)
}

// TagRepository はタグの集計インターフェース。
type TagRepository interface {
	// CountVisibleTo はユーザーが閲覧しうるエントリに付いたタグと件数を名前順で返す。
	CountVisibleTo(ctx context.Context, userID string) ([]*model.Tag, error)
}
