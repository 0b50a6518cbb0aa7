package handler

import (
	"context"
	"time"

	"github.com/hitoshi/interne/internal/availability"
	"github.com/hitoshi/interne/internal/collection"
	"github.com/hitoshi/interne/internal/entry"
	"github.com/hitoshi/interne/internal/model"
	"github.com/hitoshi/interne/internal/user"
)

// EntryServiceAdapter は entry.Service を EntryServiceInterface に適合させるアダプタ。
// 判定時刻はリクエストごとに一度だけ取得する。
type EntryServiceAdapter struct {
	svc *entry.Service
	now func() time.Time
}

// NewEntryServiceAdapter はEntryServiceAdapterを生成する。
func NewEntryServiceAdapter(svc *entry.Service) *EntryServiceAdapter {
	return &EntryServiceAdapter{svc: svc, now: time.Now}
}

// ListEntries は閲覧可能なエントリを絞り込み、handlerレスポンス型で返す。
func (a *EntryServiceAdapter) ListEntries(ctx context.Context, userID string, opts entry.ListOptions) ([]entryResponse, error) {
	views, err := a.svc.List(ctx, userID, opts, a.now())
	if err != nil {
		return nil, err
	}

	results := make([]entryResponse, len(views))
	for i, v := range views {
		results[i] = toEntryResponse(v, userID)
	}
	return results, nil
}

// CreateEntry はエントリを作成しhandlerレスポンス型で返す。
func (a *EntryServiceAdapter) CreateEntry(ctx context.Context, userID string, in model.EntryInput) (*entryResponse, error) {
	v, err := a.svc.Create(ctx, userID, in, a.now())
	return entryResult(v, userID, err)
}

// GetEntry はエントリを取得しhandlerレスポンス型で返す。
func (a *EntryServiceAdapter) GetEntry(ctx context.Context, userID, entryID string) (*entryResponse, error) {
	v, err := a.svc.Get(ctx, userID, entryID, a.now())
	return entryResult(v, userID, err)
}

// UpdateEntry はエントリを更新しhandlerレスポンス型で返す。
func (a *EntryServiceAdapter) UpdateEntry(ctx context.Context, userID, entryID string, in model.EntryInput) (*entryResponse, error) {
	v, err := a.svc.Update(ctx, userID, entryID, in, a.now())
	return entryResult(v, userID, err)
}

// DeleteEntry はエントリを削除する。
func (a *EntryServiceAdapter) DeleteEntry(ctx context.Context, userID, entryID string) error {
	return a.svc.Delete(ctx, userID, entryID)
}

// VisitEntry は訪問を記録しhandlerレスポンス型で返す。
func (a *EntryServiceAdapter) VisitEntry(ctx context.Context, userID, entryID string) (*entryResponse, error) {
	v, err := a.svc.Visit(ctx, userID, entryID, a.now())
	return entryResult(v, userID, err)
}

// ListVisits は訪問履歴をhandlerレスポンス型で返す。
func (a *EntryServiceAdapter) ListVisits(ctx context.Context, userID, entryID string) ([]visitResponse, error) {
	visits, err := a.svc.ListVisits(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	results := make([]visitResponse, len(visits))
	for i, v := range visits {
		results[i] = visitResponse{ID: v.ID, UserID: v.UserID, VisitedAt: v.VisitedAt}
	}
	return results, nil
}

// Export はエクスポート文書を返す。
func (a *EntryServiceAdapter) Export(ctx context.Context, userID string) (*entry.ExportDocument, error) {
	return a.svc.Export(ctx, userID, a.now())
}

func entryResult(v availability.View, userID string, err error) (*entryResponse, error) {
	if err != nil {
		return nil, err
	}
	resp := toEntryResponse(v, userID)
	return &resp, nil
}

// toEntryResponse は評価済みのエントリをhandlerのレスポンス型に変換する。
func toEntryResponse(v availability.View, userID string) entryResponse {
	e := v.Entry
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return entryResponse{
		ID:           e.ID,
		OwnerID:      e.OwnerID,
		CollectionID: e.CollectionID,
		URL:          e.URL,
		Title:        e.Title,
		Description:  e.Description,
		Duration:     e.Duration,
		Interval:     string(e.Interval),
		DismissedAt:  e.DismissedAt,
		Available:    v.Available,
		AvailableIn:  v.AvailableIn,
		LastViewed:   v.LastViewed,
		VisitCount:   e.VisitCount,
		Tags:         tags,
		CanEdit:      availability.CanMutate(e, userID),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// CollectionServiceAdapter は collection.Service を CollectionServiceInterface に適合させるアダプタ。
type CollectionServiceAdapter struct {
	svc *collection.Service
	now func() time.Time
}

// NewCollectionServiceAdapter はCollectionServiceAdapterを生成する。
func NewCollectionServiceAdapter(svc *collection.Service) *CollectionServiceAdapter {
	return &CollectionServiceAdapter{svc: svc, now: time.Now}
}

// ListCollections は所属コレクションをhandlerレスポンス型で返す。
func (a *CollectionServiceAdapter) ListCollections(ctx context.Context, userID string) ([]collectionResponse, error) {
	cols, err := a.svc.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]collectionResponse, len(cols))
	for i, c := range cols {
		results[i] = toCollectionResponse(c, userID)
	}
	return results, nil
}

// CreateCollection はコレクションを作成しhandlerレスポンス型で返す。
func (a *CollectionServiceAdapter) CreateCollection(ctx context.Context, userID, name string) (*collectionResponse, error) {
	c, err := a.svc.Create(ctx, userID, name, a.now())
	return collectionResult(c, userID, err)
}

// GetCollection はコレクション詳細をhandlerレスポンス型で返す。
func (a *CollectionServiceAdapter) GetCollection(ctx context.Context, userID, collectionID string) (*collectionDetailResponse, error) {
	detail, err := a.svc.Get(ctx, userID, collectionID)
	if err != nil {
		return nil, err
	}

	members := make([]memberResponse, len(detail.Members))
	for i, m := range detail.Members {
		members[i] = memberResponse{UserID: m.UserID, Name: m.UserName, JoinedAt: m.JoinedAt}
	}
	return &collectionDetailResponse{
		collectionResponse: toCollectionResponse(detail.Collection, userID),
		Members:            members,
	}, nil
}

// RenameCollection はコレクション名を変更しhandlerレスポンス型で返す。
func (a *CollectionServiceAdapter) RenameCollection(ctx context.Context, userID, collectionID, name string) (*collectionResponse, error) {
	c, err := a.svc.Rename(ctx, userID, collectionID, name, a.now())
	return collectionResult(c, userID, err)
}

// DeleteCollection はコレクションを削除する。
func (a *CollectionServiceAdapter) DeleteCollection(ctx context.Context, userID, collectionID string) error {
	return a.svc.Delete(ctx, userID, collectionID)
}

// JoinCollection は招待コードで参加しhandlerレスポンス型で返す。
func (a *CollectionServiceAdapter) JoinCollection(ctx context.Context, userID, inviteCode string) (*collectionResponse, error) {
	c, err := a.svc.Join(ctx, userID, inviteCode, a.now())
	return collectionResult(c, userID, err)
}

// LeaveCollection はコレクションから退出する。
func (a *CollectionServiceAdapter) LeaveCollection(ctx context.Context, userID, collectionID string) error {
	return a.svc.Leave(ctx, userID, collectionID)
}

// RegenerateInvite は招待コードを再発行しhandlerレスポンス型で返す。
func (a *CollectionServiceAdapter) RegenerateInvite(ctx context.Context, userID, collectionID string) (*collectionResponse, error) {
	c, err := a.svc.RegenerateInvite(ctx, userID, collectionID, a.now())
	return collectionResult(c, userID, err)
}

// RemoveMember はメンバーを除名する。
func (a *CollectionServiceAdapter) RemoveMember(ctx context.Context, userID, collectionID, memberID string) error {
	return a.svc.RemoveMember(ctx, userID, collectionID, memberID)
}

func collectionResult(c *model.Collection, userID string, err error) (*collectionResponse, error) {
	if err != nil {
		return nil, err
	}
	resp := toCollectionResponse(c, userID)
	return &resp, nil
}

// toCollectionResponse はコレクションをhandlerのレスポンス型に変換する。
func toCollectionResponse(c *model.Collection, userID string) collectionResponse {
	resp := collectionResponse{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Name:        c.Name,
		MemberCount: c.MemberCount,
		IsOwner:     c.OwnerID == userID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if resp.IsOwner {
		resp.InviteCode = c.InviteCode
	}
	return resp
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

// --- compile-time interface checks ---

var _ EntryServiceInterface = (*EntryServiceAdapter)(nil)
var _ CollectionServiceInterface = (*CollectionServiceAdapter)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
