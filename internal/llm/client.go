// Package llm はOpenAI互換のチャット補完APIを1回だけ呼び出すクライアントを提供する。
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/hitoshi/mindlog/internal/model"
)

const (
	// DefaultTimeout はRequest.Timeoutが未指定の場合のタイムアウト。
	DefaultTimeout = 30 * time.Second

	serviceName = "ai service"
)

// Config は補完クライアントの設定。
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
}

// Request は1回分の補完リクエスト。APIKeyは呼び出し元ごとに異なる。
type Request struct {
	APIKey          string
	SystemDirective string
	UserContent     string
	Timeout         time.Duration
}

// Client はチャット補完APIのクライアント。
type Client struct {
	client openai.Client
	config Config
	logger *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// SDKの自動リトライは無効にし、1リクエストにつき1回だけ送信する。
func NewClient(httpClient *http.Client, logger *slog.Logger, config Config) *Client {
	baseURL := config.BaseURL
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		client: openai.NewClient(opts...),
		config: config,
		logger: logger,
	}
}

// Complete はシステム指示とユーザー入力を送り、最初の選択肢の本文を返す。
// 期限超過はTimeoutError、プロバイダーや通信の失敗はUpstreamError、
// 選択肢がないか本文が空白のみの場合はEmptyResponseErrorを返す。
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return "", model.NewValidationError("apiKey is required")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemDirective),
			openai.UserMessage(req.UserContent),
		},
		Temperature: openai.Float(c.config.Temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, option.WithAPIKey(req.APIKey))
	if err != nil {
		return "", c.classify(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", model.NewEmptyResponseError(serviceName)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", model.NewEmptyResponseError(serviceName)
	}
	return content, nil
}

// classify はSDKのエラーをアプリケーションのエラー種別に変換する。
func (c *Client) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.logger.Warn("AIサービスの呼び出しがタイムアウトしました",
			slog.String("model", c.config.Model),
		)
		return model.NewTimeoutError(serviceName, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		c.logger.Error("AIサービスがエラーを返しました",
			slog.Int("http_status", apiErr.StatusCode),
			slog.String("message", apiErr.Message),
		)
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("upstream returned status %d", apiErr.StatusCode)
		}
		return model.NewUpstreamError(msg, err)
	}

	c.logger.Error("AIサービスの呼び出しに失敗しました",
		slog.String("error", err.Error()),
	)
	return model.NewUpstreamError("ai service request failed", err)
}
