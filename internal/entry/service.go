// Package entry はエントリのライフサイクル（作成・更新・削除・訪問・一覧）を提供する。
package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/interne/internal/availability"
	"github.com/hitoshi/interne/internal/metrics"
	"github.com/hitoshi/interne/internal/model"
	"github.com/hitoshi/interne/internal/pagemeta"
	"github.com/hitoshi/interne/internal/repository"
	"github.com/hitoshi/interne/internal/security"
	"github.com/hitoshi/interne/internal/tag"
)

const (
	// maxTitleLength はタイトルの文字数上限（この値未満であること）。
	maxTitleLength = 500
	// maxDescriptionLength は説明文の文字数上限。
	maxDescriptionLength = 5000
)

// MetaFetcher はページのタイトルと説明文を取得するインターフェース。
type MetaFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*pagemeta.Meta, error)
}

// Sanitizer はテキストからマークアップを除去するインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// MembershipLister はユーザーが所属するコレクションIDを返す。
type MembershipLister interface {
	CollectionIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// Service はエントリ管理のサービス層。
// 閲覧はCanView、編集・削除はCanMutateで判定する。
type Service struct {
	entries     repository.EntryRepository
	memberships MembershipLister
	calc        *availability.Calculator
	fetcher     MetaFetcher
	sanitizer   Sanitizer
	metrics     metrics.MetricsCollector
}

// NewService はServiceを生成する。
// fetcherがnilの場合はタイトルの自動取得を行わない。
func NewService(
	entries repository.EntryRepository,
	memberships MembershipLister,
	calc *availability.Calculator,
	fetcher MetaFetcher,
	sanitizer Sanitizer,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		entries:     entries,
		memberships: memberships,
		calc:        calc,
		fetcher:     fetcher,
		sanitizer:   sanitizer,
		metrics:     mc,
	}
}

// membershipSet はユーザーの所属コレクション集合を取得する。
func (s *Service) membershipSet(ctx context.Context, userID string) (availability.MembershipSet, error) {
	ids, err := s.memberships.CollectionIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("所属コレクションの取得に失敗しました: %w", err)
	}
	return availability.NewMembershipSet(ids), nil
}

// findViewable はエントリを取得し、閲覧権限を確認する。
// 存在しない場合と閲覧できない場合はどちらもENTRY_NOT_FOUNDを返す。
func (s *Service) findViewable(ctx context.Context, userID, entryID string) (*model.Entry, error) {
	e, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("エントリの取得に失敗しました: %w", err)
	}
	if e == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}
	if e.OwnerID == userID {
		return e, nil
	}

	set, err := s.membershipSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !availability.CanView(e, userID, set) {
		s.metrics.RecordAccessDenied("view")
		slog.Warn("閲覧権限のないエントリへのアクセスを拒否しました",
			slog.String("user_id", userID),
			slog.String("entry_id", entryID),
		)
		return nil, model.NewEntryNotFoundError(entryID)
	}
	return e, nil
}

// findMutable はエントリを取得し、編集権限を確認する。
// 閲覧できるが作成者でない場合はFORBIDDENを返す。
func (s *Service) findMutable(ctx context.Context, userID, entryID, operation string) (*model.Entry, error) {
	e, err := s.findViewable(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if !availability.CanMutate(e, userID) {
		s.metrics.RecordAccessDenied(operation)
		slog.Warn("作成者以外によるエントリ操作を拒否しました",
			slog.String("user_id", userID),
			slog.String("entry_id", entryID),
			slog.String("operation", operation),
		)
		return nil, model.NewForbiddenError(operation)
	}
	return e, nil
}

// Create はエントリを作成する。作成直後のエントリは未訪問のため常に表示対象となる。
func (s *Service) Create(ctx context.Context, userID string, in model.EntryInput, now time.Time) (availability.View, error) {
	// 1. 入力の検証と正規化
	if err := s.normalize(ctx, &in); err != nil {
		return availability.View{}, err
	}

	// 2. 追加先コレクションの所属確認
	if err := s.checkCollectionTarget(ctx, userID, in.CollectionID); err != nil {
		return availability.View{}, err
	}

	// 3. 保存
	e := &model.Entry{
		ID:           uuid.NewString(),
		OwnerID:      userID,
		CollectionID: in.CollectionID,
		URL:          in.URL,
		Title:        in.Title,
		Description:  in.Description,
		Duration:     in.Duration,
		Interval:     in.Interval,
		Tags:         in.Tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.entries.Create(ctx, e); err != nil {
		return availability.View{}, fmt.Errorf("エントリの作成に失敗しました: %w", err)
	}

	s.metrics.RecordEntryCreated()
	slog.Info("エントリを作成しました",
		slog.String("user_id", userID),
		slog.String("entry_id", e.ID),
	)
	return s.calc.View(e, now), nil
}

// Update はエントリの内容を置き換える。dismissed_atと訪問履歴は変更しない。
func (s *Service) Update(ctx context.Context, userID, entryID string, in model.EntryInput, now time.Time) (availability.View, error) {
	e, err := s.findMutable(ctx, userID, entryID, "update")
	if err != nil {
		return availability.View{}, err
	}

	if err := s.normalize(ctx, &in); err != nil {
		return availability.View{}, err
	}

	// コレクションを変更する場合のみ移動先の所属を確認する
	if !sameCollection(e.CollectionID, in.CollectionID) {
		if err := s.checkCollectionTarget(ctx, userID, in.CollectionID); err != nil {
			return availability.View{}, err
		}
	}

	e.URL = in.URL
	e.Title = in.Title
	e.Description = in.Description
	e.Duration = in.Duration
	e.Interval = in.Interval
	e.CollectionID = in.CollectionID
	e.Tags = in.Tags
	e.UpdatedAt = now

	if err := s.entries.Update(ctx, e); err != nil {
		return availability.View{}, fmt.Errorf("エントリの更新に失敗しました: %w", err)
	}
	return s.calc.View(e, now), nil
}

// Delete はエントリを削除する。訪問履歴とタグの紐付けも削除される。
func (s *Service) Delete(ctx context.Context, userID, entryID string) error {
	if _, err := s.findMutable(ctx, userID, entryID, "delete"); err != nil {
		return err
	}

	if err := s.entries.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("エントリの削除に失敗しました: %w", err)
	}

	s.metrics.RecordEntryDeleted()
	slog.Info("エントリを削除しました",
		slog.String("user_id", userID),
		slog.String("entry_id", entryID),
	)
	return nil
}

// Visit は訪問を記録し、クールダウンを開始する。
// コレクションのメンバーも共有エントリを訪問できる。
func (s *Service) Visit(ctx context.Context, userID, entryID string, now time.Time) (availability.View, error) {
	e, err := s.findViewable(ctx, userID, entryID)
	if err != nil {
		return availability.View{}, err
	}

	visit := &model.Visit{
		ID:        uuid.NewString(),
		EntryID:   e.ID,
		UserID:    userID,
		VisitedAt: now,
	}
	if err := s.entries.RecordVisit(ctx, visit); err != nil {
		return availability.View{}, fmt.Errorf("訪問の記録に失敗しました: %w", err)
	}

	visitedAt := now
	e.DismissedAt = &visitedAt
	e.VisitCount++

	s.metrics.RecordVisit()
	slog.Info("訪問を記録しました",
		slog.String("user_id", userID),
		slog.String("entry_id", e.ID),
	)
	return s.calc.View(e, now), nil
}

// Get はエントリ1件を評価して返す。
func (s *Service) Get(ctx context.Context, userID, entryID string, now time.Time) (availability.View, error) {
	e, err := s.findViewable(ctx, userID, entryID)
	if err != nil {
		return availability.View{}, err
	}
	return s.calc.View(e, now), nil
}

// ListOptions はエントリ一覧の絞り込み条件。
type ListOptions struct {
	Filter       model.EntryFilter
	Tag          string
	CollectionID string
}

// List は閲覧可能なエントリにフィルタを適用して返す。
// タグとコレクションの絞り込みは可視性の適用後に行う。
func (s *Service) List(ctx context.Context, userID string, opts ListOptions, now time.Time) ([]availability.View, error) {
	// 1. 閲覧可能な集合を取得
	entries, err := s.entries.ListVisibleTo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("エントリ一覧の取得に失敗しました: %w", err)
	}

	// 2. タグ・コレクションで絞り込み
	tagName := strings.ToLower(strings.TrimSpace(opts.Tag))
	if tagName != "" || opts.CollectionID != "" {
		filtered := entries[:0:0]
		for _, e := range entries {
			if tagName != "" && !hasTag(e, tagName) {
				continue
			}
			if opts.CollectionID != "" && (e.CollectionID == nil || *e.CollectionID != opts.CollectionID) {
				continue
			}
			filtered = append(filtered, e)
		}
		entries = filtered
	}

	// 3. 表示可否の判定と並び替え
	filter := opts.Filter
	if filter == "" {
		filter = model.EntryFilterAvailable
	}
	return s.calc.Select(entries, filter, now), nil
}

// ListVisits はエントリの訪問履歴を返す。
func (s *Service) ListVisits(ctx context.Context, userID, entryID string) ([]*model.Visit, error) {
	if _, err := s.findViewable(ctx, userID, entryID); err != nil {
		return nil, err
	}

	visits, err := s.entries.ListVisits(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("訪問履歴の取得に失敗しました: %w", err)
	}
	if visits == nil {
		visits = []*model.Visit{}
	}
	return visits, nil
}

func hasTag(e *model.Entry, name string) bool {
	for _, t := range e.Tags {
		if t == name {
			return true
		}
	}
	return false
}

func sameCollection(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// checkCollectionTarget は追加先コレクションにユーザーが所属しているかを確認する。
// 所属していないコレクションは存在しないものとして扱う。
func (s *Service) checkCollectionTarget(ctx context.Context, userID string, collectionID *string) error {
	if collectionID == nil {
		return nil
	}
	set, err := s.membershipSet(ctx, userID)
	if err != nil {
		return err
	}
	if !set.Contains(*collectionID) {
		return model.NewCollectionNotFoundError(*collectionID)
	}
	return nil
}

// normalize は入力を検証し、サニタイズ・タグ正規化・タイトル補完を行う。
func (s *Service) normalize(ctx context.Context, in *model.EntryInput) error {
	// 1. URL
	in.URL = strings.TrimSpace(in.URL)
	if err := validateURL(in.URL); err != nil {
		return err
	}

	// 2. 間隔
	if !in.Interval.Valid() {
		return model.NewInvalidIntervalError(string(in.Interval))
	}
	if in.Duration < 1 || in.Duration > model.MaxDuration {
		return model.NewInvalidDurationError(in.Duration)
	}

	// 3. コレクションID（空文字列は未所属）
	if in.CollectionID != nil && strings.TrimSpace(*in.CollectionID) == "" {
		in.CollectionID = nil
	}

	// 4. タグ
	in.Tags = tag.Normalize(in.Tags)
	for _, t := range in.Tags {
		if utf8.RuneCountInString(t) > tag.MaxLength {
			return model.NewValidationError("tags", fmt.Sprintf("タグは%d文字以内で入力してください", tag.MaxLength))
		}
	}

	// 5. テキストのサニタイズ
	in.Title = s.sanitize(in.Title)
	in.Description = s.sanitize(in.Description)

	// 6. タイトルが空ならページから補完
	if in.Title == "" && s.fetcher != nil {
		meta, err := s.fetcher.Fetch(ctx, in.URL)
		if err != nil {
			slog.Warn("タイトルの自動取得に失敗しました",
				slog.String("url", in.URL),
				slog.String("error", err.Error()),
			)
			if errors.Is(err, security.ErrBlocked) {
				return model.NewSSRFBlockedError()
			}
			return model.NewFetchFailedError(err.Error())
		}
		in.Title = s.sanitize(meta.Title)
		if in.Description == "" {
			in.Description = s.sanitize(meta.Description)
		}
	}

	if in.Title == "" {
		return model.NewValidationError("title", "タイトルは必須です")
	}
	if utf8.RuneCountInString(in.Title) >= maxTitleLength {
		return model.NewValidationError("title", fmt.Sprintf("タイトルは%d文字未満で入力してください", maxTitleLength))
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return model.NewValidationError("description", fmt.Sprintf("説明は%d文字以内で入力してください", maxDescriptionLength))
	}
	return nil
}

func (s *Service) sanitize(raw string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(raw)
	}
	return s.sanitizer.Sanitize(raw)
}

// validateURL はhttp/httpsの絶対URLであることを確認する。
func validateURL(raw string) error {
	if raw == "" {
		return model.NewInvalidURLError("URLは必須です")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return model.NewInvalidURLError(err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.NewInvalidURLError("http:// または https:// で始まる必要があります")
	}
	if u.Host == "" {
		return model.NewInvalidURLError("ホストがありません")
	}
	return nil
}
