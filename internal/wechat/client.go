// Package wechat はミニプログラム基盤（WeChat）のサーバー間APIとの連携を提供する。
// アクセストークンのキャッシュ、ログイン用のcode2session、電話番号取得を含む。
package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/mindlog/internal/model"
)

const (
	// defaultBaseURL はWeChat APIのベースURL。
	defaultBaseURL = "https://api.weixin.qq.com"
	// defaultTokenLifetime はexpires_inが返らなかった場合のトークン有効期間。
	defaultTokenLifetime = 7200 * time.Second
	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 1 << 20
)

// Config はWeChat APIクライアントの設定。
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string // テスト用に差し替え可能
}

// Client はWeChatサーバー間APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     Config
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		config:     config,
	}
}

// ProviderError はWeChatがエラーエンベロープ（errcode, errmsg）で返した失敗。
type ProviderError struct {
	Code    int
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	return fmt.Sprintf("wechat errcode %d: %s", e.Code, e.Message)
}

// envelope は全レスポンスに共通するエラーフィールド。
type envelope struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (e envelope) err() error {
	if e.ErrCode == 0 {
		return nil
	}
	pe := &ProviderError{Code: e.ErrCode, Message: e.ErrMsg}
	msg := e.ErrMsg
	if msg == "" {
		msg = fmt.Sprintf("wechat returned errcode %d", e.ErrCode)
	}
	return model.NewUpstreamError(msg, pe)
}

type tokenResponse struct {
	envelope
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Session はcode2sessionの結果。
type Session struct {
	OpenID     string `json:"openid"`
	UnionID    string `json:"unionid"`
	SessionKey string `json:"session_key"`
}

type sessionResponse struct {
	envelope
	Session
}

// PhoneInfo はユーザーの電話番号情報。
type PhoneInfo struct {
	PhoneNumber     string `json:"phoneNumber"`
	PurePhoneNumber string `json:"purePhoneNumber"`
	CountryCode     string `json:"countryCode"`
}

type phoneResponse struct {
	envelope
	PhoneInfo PhoneInfo `json:"phone_info"`
}

// FetchToken はアプリIDとシークレットをアクセストークンに交換する。
// 設定不足はConfigurationError、WeChat側の失敗や空トークンはUpstreamErrorを返す。
func (c *Client) FetchToken(ctx context.Context) (string, time.Duration, error) {
	if err := c.requireCredentials(); err != nil {
		return "", 0, err
	}

	q := url.Values{
		"grant_type": {"client_credential"},
		"appid":      {c.config.AppID},
		"secret":     {c.config.AppSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/cgi-bin/token?"+q.Encode(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}

	var resp tokenResponse
	if err := c.do(req, "token", &resp); err != nil {
		return "", 0, err
	}
	if err := resp.err(); err != nil {
		c.logger.Error("WeChatのトークン取得がエラーを返しました",
			slog.Int("errcode", resp.ErrCode),
			slog.String("errmsg", resp.ErrMsg),
		)
		return "", 0, err
	}
	if resp.AccessToken == "" {
		return "", 0, model.NewUpstreamError("wechat returned an empty access token", nil)
	}

	lifetime := time.Duration(resp.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	return resp.AccessToken, lifetime, nil
}

// Code2Session はミニプログラムのログインコードをOpenIDとセッションキーに交換する。
func (c *Client) Code2Session(ctx context.Context, jsCode string) (*Session, error) {
	if err := c.requireCredentials(); err != nil {
		return nil, err
	}

	q := url.Values{
		"appid":      {c.config.AppID},
		"secret":     {c.config.AppSecret},
		"js_code":    {jsCode},
		"grant_type": {"authorization_code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/sns/jscode2session?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create code2session request: %w", err)
	}

	var resp sessionResponse
	if err := c.do(req, "code2session", &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	if resp.OpenID == "" {
		return nil, model.NewUpstreamError("wechat returned an empty openid", nil)
	}
	return &resp.Session, nil
}

// PhoneNumber は電話番号取得用のコードをユーザーの電話番号に交換する。
// accessTokenにはTokenCacheから取得したトークンを渡す。
func (c *Client) PhoneNumber(ctx context.Context, accessToken, code string) (*PhoneInfo, error) {
	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return nil, fmt.Errorf("failed to encode phone number request: %w", err)
	}

	endpoint := c.config.BaseURL + "/wxa/business/getuserphonenumber?" + url.Values{"access_token": {accessToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to create phone number request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp phoneResponse
	if err := c.do(req, "phone number", &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	if resp.PhoneInfo.PhoneNumber == "" && resp.PhoneInfo.PurePhoneNumber == "" {
		return nil, model.NewEmptyResponseError("wechat phone number")
	}
	return &resp.PhoneInfo, nil
}

func (c *Client) requireCredentials() error {
	if c.config.AppID == "" || c.config.AppSecret == "" {
		return model.NewConfigurationError("wechat app id and secret are not configured")
	}
	return nil
}

// do はリクエストを1回だけ実行し、レスポンスJSONをoutへデコードする。
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("WeChat APIの呼び出しに失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		if isTimeout(err) {
			return model.NewTimeoutError("wechat "+op, err)
		}
		return model.NewUpstreamError("wechat "+op+" request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("WeChat APIがエラーステータスを返しました",
			slog.String("op", op),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.NewUpstreamError(fmt.Sprintf("wechat %s returned status %d", op, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if isTimeout(err) {
			return model.NewTimeoutError("wechat "+op, err)
		}
		return model.NewUpstreamError("failed to read wechat "+op+" response", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return model.NewUpstreamError("malformed wechat "+op+" response", err)
	}
	return nil
}

// isTimeout はerrが期限超過によるものかを返す。
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
