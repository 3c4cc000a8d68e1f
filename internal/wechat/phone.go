package wechat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hitoshi/mindlog/internal/model"
)

// トークン無効を示すerrcode。
const (
	errCodeInvalidToken = 40001
	errCodeExpiredToken = 42001
	errCodeBadToken     = 40014
)

// PhoneClient は電話番号取得APIのインターフェース。
type PhoneClient interface {
	PhoneNumber(ctx context.Context, accessToken, code string) (*PhoneInfo, error)
}

// PhoneService はキャッシュ済みトークンを使って電話番号を取得する。
type PhoneService struct {
	tokens *TokenCache
	client PhoneClient
	logger *slog.Logger
}

// NewPhoneService はPhoneServiceの新しいインスタンスを生成する。
func NewPhoneService(tokens *TokenCache, client PhoneClient, logger *slog.Logger) *PhoneService {
	return &PhoneService{
		tokens: tokens,
		client: client,
		logger: logger,
	}
}

// Lookup は電話番号取得コードをユーザーの電話番号に交換する。
// WeChatがトークン無効を返した場合はキャッシュを破棄し、エラーはそのまま返す。
func (s *PhoneService) Lookup(ctx context.Context, code string) (*PhoneInfo, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, model.NewValidationError("code is required")
	}

	cred, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	info, err := s.client.PhoneNumber(ctx, cred.Token, code)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && isTokenRejected(pe.Code) {
			s.logger.Warn("WeChatがアクセストークンを拒否しました",
				slog.Int("errcode", pe.Code),
			)
			s.tokens.Invalidate(cred.Token)
		}
		return nil, err
	}
	return info, nil
}

func isTokenRejected(code int) bool {
	switch code {
	case errCodeInvalidToken, errCodeExpiredToken, errCodeBadToken:
		return true
	}
	return false
}
