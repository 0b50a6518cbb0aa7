// Package auth は招待コードによるログインとセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/interne/internal/model"
	"github.com/hitoshi/interne/internal/repository"
)

// refreshThreshold はセッション延長を行う間隔。
// 前回延長からこの時間が経過していなければ有効期限を書き換えない。
const refreshThreshold = time.Hour

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // 最終利用からのセッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

func (s *Service) maxAge() time.Duration {
	return time.Duration(s.config.SessionMaxAge) * time.Second
}

// Login は招待コードを照合し、セッションを発行する。
func (s *Service) Login(ctx context.Context, inviteCode string) (*model.Session, *model.User, error) {
	// 1. 招待コードでユーザーを特定
	inviteCode = strings.TrimSpace(inviteCode)
	if inviteCode == "" {
		return nil, nil, model.NewInvalidInviteCodeError()
	}
	user, err := s.userRepo.FindByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by invite code: %w", err)
	}
	if user == nil {
		slog.Warn("invalid invite code")
		return nil, nil, model.NewInvalidInviteCodeError()
	}

	// 2. セッションを発行
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// FindByID は有効なセッションを返し、有効期限を最終利用から延長する。
// 期限切れまたは存在しない場合はnilを返す。
func (s *Service) FindByID(ctx context.Context, sessionID string) (*model.Session, error) {
	now := s.now()
	session, err := s.sessionRepo.FindValid(ctx, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	// 前回の延長から一定時間経過していれば期限を延ばす
	expiresAt := now.Add(s.maxAge())
	if expiresAt.Sub(session.ExpiresAt) >= refreshThreshold {
		if err := s.sessionRepo.Extend(ctx, session.ID, expiresAt); err != nil {
			return nil, fmt.Errorf("failed to extend session: %w", err)
		}
		session.ExpiresAt = expiresAt
	}
	return session, nil
}

// CurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// CreateUser はユーザーを作成し、ログイン用の招待コードを発行する。
func (s *Service) CreateUser(ctx context.Context, name, email string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationError("name", "ユーザー名は必須です")
	}

	user := &model.User{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      strings.TrimSpace(email),
		InviteCode: uuid.NewString(),
		CreatedAt:  s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", slog.String("user_id", user.ID))
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(s.maxAge()),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
