// Package collection はエントリを共有するコレクションとメンバーシップを管理する。
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/interne/internal/model"
	"github.com/hitoshi/interne/internal/repository"
)

// Detail はコレクションとメンバー一覧をまとめたもの。
type Detail struct {
	Collection *model.Collection
	Members    []*model.Membership
	IsOwner    bool
}

// Service はコレクション管理のサービス層。
// オーナーは暗黙のメンバーであり、名前変更・削除・招待コード再発行・メンバー除名はオーナーのみが行える。
type Service struct {
	repo repository.CollectionRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.CollectionRepository) *Service {
	return &Service{repo: repo}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.NewValidationError("name", "コレクション名は必須です")
	}
	if utf8.RuneCountInString(name) >= model.MaxCollectionNameLength {
		return "", model.NewValidationError("name",
			fmt.Sprintf("コレクション名は%d文字未満で入力してください", model.MaxCollectionNameLength))
	}
	return name, nil
}

// findAccessible はオーナーまたはメンバーとして参照できるコレクションを返す。
// 参照できない場合は存在しないものとして扱う。
func (s *Service) findAccessible(ctx context.Context, userID, collectionID string) (*model.Collection, bool, error) {
	c, err := s.repo.FindByID(ctx, collectionID)
	if err != nil {
		return nil, false, fmt.Errorf("コレクションの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, false, model.NewCollectionNotFoundError(collectionID)
	}
	if c.OwnerID == userID {
		return c, true, nil
	}

	ids, err := s.repo.CollectionIDsForUser(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("所属コレクションの取得に失敗しました: %w", err)
	}
	if !slices.Contains(ids, collectionID) {
		return nil, false, model.NewCollectionNotFoundError(collectionID)
	}
	return c, false, nil
}

// findOwned はオーナーのみが操作できるコレクションを返す。
func (s *Service) findOwned(ctx context.Context, userID, collectionID, operation string) (*model.Collection, error) {
	c, isOwner, err := s.findAccessible(ctx, userID, collectionID)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		slog.Warn("オーナー以外によるコレクション操作を拒否しました",
			slog.String("user_id", userID),
			slog.String("collection_id", collectionID),
			slog.String("operation", operation),
		)
		return nil, model.NewForbiddenError(operation)
	}
	return c, nil
}

// Create はコレクションを作成する。作成者がオーナーとなる。
func (s *Service) Create(ctx context.Context, userID, name string, now time.Time) (*model.Collection, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	c := &model.Collection{
		ID:         uuid.NewString(),
		OwnerID:    userID,
		Name:       name,
		InviteCode: uuid.NewString(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("コレクションの作成に失敗しました: %w", err)
	}

	slog.Info("コレクションを作成しました",
		slog.String("user_id", userID),
		slog.String("collection_id", c.ID),
	)
	return c, nil
}

// Rename はコレクション名を変更する。
func (s *Service) Rename(ctx context.Context, userID, collectionID, name string, now time.Time) (*model.Collection, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	c, err := s.findOwned(ctx, userID, collectionID, "rename")
	if err != nil {
		return nil, err
	}

	c.Name = name
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("コレクションの更新に失敗しました: %w", err)
	}
	return c, nil
}

// Delete はコレクションを削除する。所属していたエントリはどのコレクションにも属さなくなる。
func (s *Service) Delete(ctx context.Context, userID, collectionID string) error {
	if _, err := s.findOwned(ctx, userID, collectionID, "delete"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, collectionID); err != nil {
		return fmt.Errorf("コレクションの削除に失敗しました: %w", err)
	}

	slog.Info("コレクションを削除しました",
		slog.String("user_id", userID),
		slog.String("collection_id", collectionID),
	)
	return nil
}

// List はオーナーまたはメンバーであるコレクションを返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Collection, error) {
	cs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("コレクション一覧の取得に失敗しました: %w", err)
	}
	if cs == nil {
		cs = []*model.Collection{}
	}
	return cs, nil
}

// Get はコレクションとメンバー一覧を返す。
func (s *Service) Get(ctx context.Context, userID, collectionID string) (*Detail, error) {
	c, isOwner, err := s.findAccessible(ctx, userID, collectionID)
	if err != nil {
		return nil, err
	}

	members, err := s.repo.ListMembers(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}
	if members == nil {
		members = []*model.Membership{}
	}
	c.MemberCount = len(members) + 1

	return &Detail{Collection: c, Members: members, IsOwner: isOwner}, nil
}

// Join は招待コードでコレクションに参加する。
// オーナー自身の参加と参加済みの再参加は何もしない。
func (s *Service) Join(ctx context.Context, userID, inviteCode string, now time.Time) (*model.Collection, error) {
	inviteCode = strings.TrimSpace(inviteCode)
	if inviteCode == "" {
		return nil, model.NewInvalidInviteCodeError()
	}

	c, err := s.repo.FindByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, fmt.Errorf("招待コードの照合に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewInvalidInviteCodeError()
	}
	if c.OwnerID == userID {
		return c, nil
	}

	m := &model.Membership{CollectionID: c.ID, UserID: userID, JoinedAt: now}
	if err := s.repo.AddMember(ctx, m); err != nil {
		return nil, fmt.Errorf("コレクションへの参加に失敗しました: %w", err)
	}

	slog.Info("コレクションに参加しました",
		slog.String("user_id", userID),
		slog.String("collection_id", c.ID),
	)
	return c, nil
}

// Leave はコレクションから退出する。オーナーは退出できない。
func (s *Service) Leave(ctx context.Context, userID, collectionID string) error {
	_, isOwner, err := s.findAccessible(ctx, userID, collectionID)
	if err != nil {
		return err
	}
	if isOwner {
		return model.NewOwnerCannotLeaveError()
	}

	if _, err := s.repo.RemoveMember(ctx, collectionID, userID); err != nil {
		return fmt.Errorf("コレクションからの退出に失敗しました: %w", err)
	}

	slog.Info("コレクションから退出しました",
		slog.String("user_id", userID),
		slog.String("collection_id", collectionID),
	)
	return nil
}

// RemoveMember はオーナーがメンバーを除名する。
func (s *Service) RemoveMember(ctx context.Context, userID, collectionID, memberID string) error {
	if _, err := s.findOwned(ctx, userID, collectionID, "remove_member"); err != nil {
		return err
	}
	if memberID == userID {
		return model.NewOwnerCannotLeaveError()
	}

	removed, err := s.repo.RemoveMember(ctx, collectionID, memberID)
	if err != nil {
		return fmt.Errorf("メンバーの除名に失敗しました: %w", err)
	}
	if !removed {
		return model.NewMemberNotFoundError(memberID)
	}

	slog.Info("メンバーを除名しました",
		slog.String("user_id", userID),
		slog.String("collection_id", collectionID),
		slog.String("member_id", memberID),
	)
	return nil
}

// RegenerateInvite は招待コードを再発行する。以前のコードは無効になる。
func (s *Service) RegenerateInvite(ctx context.Context, userID, collectionID string, now time.Time) (*model.Collection, error) {
	c, err := s.findOwned(ctx, userID, collectionID, "regenerate_invite")
	if err != nil {
		return nil, err
	}

	c.InviteCode = uuid.NewString()
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("招待コードの再発行に失敗しました: %w", err)
	}
	return c, nil
}

// Members はメンバー一覧（オーナーを除く）を返す。
func (s *Service) Members(ctx context.Context, userID, collectionID string) ([]*model.Membership, error) {
	d, err := s.Get(ctx, userID, collectionID)
	if err != nil {
		return nil, err
	}
	return d.Members, nil
}
