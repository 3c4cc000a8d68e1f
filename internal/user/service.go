// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/mindlog/internal/model"
	"github.com/hitoshi/mindlog/internal/repository"
	"github.com/hitoshi/mindlog/internal/wechat"
)

// PhoneLookup は電話番号取得コードを電話番号に交換するインターフェース。
// wechat.PhoneServiceが実装する。
type PhoneLookup interface {
	Lookup(ctx context.Context, code string) (*wechat.PhoneInfo, error)
}

// Service はユーザー管理のサービス層。
// プロフィール取得、電話番号の紐付け、退会処理を提供する。
type Service struct {
	userRepo  repository.UserRepository
	usageRepo repository.UsageRepository
	phones    PhoneLookup
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	usageRepo repository.UsageRepository,
	phones PhoneLookup,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:  userRepo,
		usageRepo: usageRepo,
		phones:    phones,
		logger:    logger,
	}
}

// Profile はユーザー情報を返す。
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// BindPhone は電話番号取得コードから番号を取得し、ユーザーに紐付ける。
// 国内番号（PurePhoneNumber）があればそれを優先する。
func (s *Service) BindPhone(ctx context.Context, userID, code string) (*model.User, error) {
	if strings.TrimSpace(code) == "" {
		return nil, model.NewValidationError("code is required")
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	info, err := s.phones.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	phone := info.PurePhoneNumber
	if phone == "" {
		phone = info.PhoneNumber
	}

	if err := s.userRepo.UpdatePhoneNumber(ctx, userID, phone); err != nil {
		return nil, fmt.Errorf("電話番号の更新に失敗しました: %w", err)
	}
	user.PhoneNumber = phone

	s.logger.Info("電話番号を紐付けました", slog.String("user_id", userID))
	return user, nil
}

// Usage は指定日時以降のAIタスク利用回数をタスク別に返す。
func (s *Service) Usage(ctx context.Context, userID string, since time.Time) (map[string]int, error) {
	counts, err := s.usageRepo.CountByUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("利用記録の集計に失敗しました: %w", err)
	}
	return counts, nil
}

// Withdraw はユーザーの退会処理を実行する。
// notes、goals、ai_usage_logsはCASCADEで削除される。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if _, err := s.Profile(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	s.logger.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)
	return nil
}
