// Package auth はミニプログラムのログインとアクセストークンの管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mindlog/internal/model"
	"github.com/hitoshi/mindlog/internal/repository"
	"github.com/hitoshi/mindlog/internal/wechat"
)

// SessionExchanger はログインコードをOpenIDに交換するインターフェース。
// wechat.Clientが実装する。
type SessionExchanger interface {
	Code2Session(ctx context.Context, jsCode string) (*wechat.Session, error)
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
	IsNew     bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	exchanger SessionExchanger
	userRepo  repository.UserRepository
	tokens    *TokenIssuer
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	exchanger SessionExchanger,
	userRepo repository.UserRepository,
	tokens *TokenIssuer,
	logger *slog.Logger,
) *Service {
	return &Service{
		exchanger: exchanger,
		userRepo:  userRepo,
		tokens:    tokens,
		logger:    logger,
	}
}

// Login はログインコードを検証し、アクセストークンを発行する。
// 未登録のOpenIDの場合はユーザーを自動作成する。
func (s *Service) Login(ctx context.Context, jsCode string) (*LoginResult, error) {
	jsCode = strings.TrimSpace(jsCode)
	if jsCode == "" {
		return nil, model.NewValidationError("code is required")
	}

	// 1. ログインコードをOpenIDに交換
	session, err := s.exchanger.Code2Session(ctx, jsCode)
	if err != nil {
		return nil, err
	}

	// 2. 既存ユーザーを検索
	user, err := s.userRepo.FindByOpenID(ctx, session.OpenID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	isNew := false
	if user == nil {
		// 3. 新規ユーザーを作成（同時ログインの場合は既存行が返る）
		now := time.Now()
		candidate := &model.User{
			ID:        uuid.New().String(),
			OpenID:    session.OpenID,
			UnionID:   session.UnionID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		user, err = s.userRepo.Create(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		isNew = user.ID == candidate.ID
		if isNew {
			s.logger.Info("new user created", slog.String("user_id", user.ID))
		}
	}

	// 4. アクセストークンを発行
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.Bool("new_user", isNew),
	)

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
		IsNew:     isNew,
	}, nil
}

// CurrentUser はユーザーIDからユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
