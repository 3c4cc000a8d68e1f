package wechat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/mindlog/internal/metrics"
	"github.com/hitoshi/mindlog/internal/model"
)

const (
	// expiryMargin は失効時刻の手前でトークンを期限切れとみなす幅。
	expiryMargin = 60 * time.Second
	// defaultRefreshTimeout はトークン更新1回あたりの上限時間。
	defaultRefreshTimeout = 10 * time.Second

	refreshKey = "access_token"
)

// TokenSource はアクセストークンの取得元。
type TokenSource interface {
	FetchToken(ctx context.Context) (token string, lifetime time.Duration, err error)
}

// Credential はキャッシュされたアクセストークン。
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// TokenCache はプロセス全体で共有するアクセストークンのキャッシュ。
// 期限切れ時の更新は同時に1回だけ行い、待機中の呼び出しは同じ結果を受け取る。
type TokenCache struct {
	source         TokenSource
	logger         *slog.Logger
	metrics        metrics.Recorder
	refreshTimeout time.Duration
	now            func() time.Time

	mu    sync.RWMutex
	cred  Credential
	group singleflight.Group
}

// NewTokenCache はTokenCacheの新しいインスタンスを生成する。
func NewTokenCache(source TokenSource, logger *slog.Logger, recorder metrics.Recorder) *TokenCache {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &TokenCache{
		source:         source,
		logger:         logger,
		metrics:        recorder,
		refreshTimeout: defaultRefreshTimeout,
		now:            time.Now,
	}
}

// Token は有効なアクセストークンを返す。
// キャッシュが有効なら外部呼び出しもロックの書き込みも行わない。
func (c *TokenCache) Token(ctx context.Context) (Credential, error) {
	if cred, ok := c.cached(); ok {
		return cred, nil
	}

	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	case <-ctx.Done():
		// 待機を打ち切っても進行中の更新は継続し、結果は次の呼び出しで使われる。
		// 期限切れとキャンセルはどちらもタイムアウトとして返す
		return Credential{}, model.NewTimeoutError("wechat token", ctx.Err())
	}
}

// Invalidate はキャッシュ中のトークンがstaleと一致する場合に破棄する。
// 上流がトークン無効を報告したときに呼ぶ。別の呼び出しで更新済みのトークンは残す。
func (c *TokenCache) Invalidate(stale string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cred.Token != "" && c.cred.Token == stale {
		c.cred = Credential{}
		c.logger.Info("アクセストークンを無効化しました")
	}
}

func (c *TokenCache) cached() (Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cred.Token != "" && c.now().Add(expiryMargin).Before(c.cred.ExpiresAt) {
		return c.cred, true
	}
	return Credential{}, false
}

func (c *TokenCache) refresh(ctx context.Context) (Credential, error) {
	// 直前のフライトが完了していればその結果を使う
	if cred, ok := c.cached(); ok {
		return cred, nil
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	token, lifetime, err := c.source.FetchToken(rctx)
	if err != nil {
		c.metrics.RecordTokenRefresh("error")
		c.logger.Error("アクセストークンの更新に失敗しました",
			slog.String("error", err.Error()),
		)
		return Credential{}, err
	}
	if token == "" || lifetime <= expiryMargin {
		c.metrics.RecordTokenRefresh("error")
		return Credential{}, model.NewUpstreamError(
			fmt.Sprintf("wechat returned an unusable access token (lifetime %s)", lifetime), nil)
	}

	cred := Credential{Token: token, ExpiresAt: c.now().Add(lifetime)}

	c.mu.Lock()
	c.cred = cred
	c.mu.Unlock()

	c.metrics.RecordTokenRefresh("success")
	c.logger.Info("アクセストークンを更新しました",
		slog.Time("expires_at", cred.ExpiresAt),
	)
	return cred, nil
}
