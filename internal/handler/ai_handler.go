package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mindlog/internal/gateway"
	"github.com/hitoshi/mindlog/internal/middleware"
	"github.com/hitoshi/mindlog/internal/model"
	"github.com/hitoshi/mindlog/internal/prompt"
)

// apiKeyHeader はモデルAPIキーをヘッダーで渡す場合のヘッダー名。
// ボディのapiKeyが優先される。
const apiKeyHeader = "X-Model-Api-Key"

// usageWriteTimeout は利用記録の書き込みに使う時間の上限。
const usageWriteTimeout = 2 * time.Second

// GatewayInterface はAIハンドラーが必要とするゲートウェイのインターフェース。
type GatewayInterface interface {
	DailySummary(ctx context.Context, req gateway.SummaryRequest) (*gateway.Summary, error)
	GenerateDiary(ctx context.Context, req gateway.DiaryRequest) (*gateway.Diary, error)
	CounselorDiary(ctx context.Context, req gateway.CounselorRequest) (*gateway.CounselorDiary, error)
	Report(ctx context.Context, req gateway.ReportRequest) (*gateway.Report, error)
	DecomposeGoal(ctx context.Context, req gateway.GoalRequest) (*gateway.GoalSteps, error)
	Suggest(ctx context.Context, req gateway.SuggestionRequest) (*gateway.Suggestion, error)
}

// UsageWriter はAIタスクの利用記録を書き込むインターフェース。
type UsageWriter interface {
	Create(ctx context.Context, log *model.UsageLog) error
}

// AIHandler はAIタスクのHTTPハンドラー。
// 各呼び出しの結果はベストエフォートで利用記録に残す。
type AIHandler struct {
	gateway GatewayInterface
	usage   UsageWriter
	logger  *slog.Logger
}

// NewAIHandler はAIHandlerを生成する。usageがnilの場合は記録しない。
func NewAIHandler(gw GatewayInterface, usage UsageWriter, logger *slog.Logger) *AIHandler {
	return &AIHandler{
		gateway: gw,
		usage:   usage,
		logger:  logger,
	}
}

type summaryRequest struct {
	APIKey  string          `json:"apiKey"`
	Entries []gateway.Entry `json:"entries"`
}

type diaryRequest struct {
	APIKey       string          `json:"apiKey"`
	Entries      []gateway.Entry `json:"entries"`
	CustomPrompt string          `json:"customPrompt"`
}

type counselorRequest struct {
	APIKey  string           `json:"apiKey"`
	Folders []gateway.Folder `json:"folders"`
}

type reportRequest struct {
	APIKey     string           `json:"apiKey"`
	Folders    []gateway.Folder `json:"folders"`
	Enrichment json.RawMessage  `json:"enrichment"`
	SkillTree  json.RawMessage  `json:"skillTree"`
}

type goalStepsRequest struct {
	APIKey      string `json:"apiKey"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type suggestionRequest struct {
	APIKey   string          `json:"apiKey"`
	Category string          `json:"category"`
	Entries  []gateway.Entry `json:"entries"`
}

// Summary は1日分の記録の短い分析を返す。
// POST /api/ai/summary
func (h *AIHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	h.serve(w, r, prompt.TaskDailySummary, &req, func(ctx context.Context) (any, error) {
		return h.gateway.DailySummary(ctx, gateway.SummaryRequest{
			APIKey:  h.apiKey(r, req.APIKey),
			Entries: req.Entries,
		})
	})
}

// Diary は記録から日記を生成する。
// POST /api/ai/diary
func (h *AIHandler) Diary(w http.ResponseWriter, r *http.Request) {
	var req diaryRequest
	h.serve(w, r, prompt.TaskDiary, &req, func(ctx context.Context) (any, error) {
		return h.gateway.GenerateDiary(ctx, gateway.DiaryRequest{
			APIKey:       h.apiKey(r, req.APIKey),
			Entries:      req.Entries,
			CustomPrompt: req.CustomPrompt,
		})
	})
}

// CounselorDiary は複数日の記録からカウンセラー風の日記を生成する。
// POST /api/ai/counselor-diary
func (h *AIHandler) CounselorDiary(w http.ResponseWriter, r *http.Request) {
	var req counselorRequest
	h.serve(w, r, prompt.TaskCounselorDiary, &req, func(ctx context.Context) (any, error) {
		return h.gateway.CounselorDiary(ctx, gateway.CounselorRequest{
			APIKey:  h.apiKey(r, req.APIKey),
			Folders: req.Folders,
		})
	})
}

// Report は長期レポートを生成する。
// POST /api/ai/report
func (h *AIHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	h.serve(w, r, prompt.TaskReport, &req, func(ctx context.Context) (any, error) {
		return h.gateway.Report(ctx, gateway.ReportRequest{
			APIKey:     h.apiKey(r, req.APIKey),
			Folders:    req.Folders,
			Enrichment: req.Enrichment,
			SkillTree:  req.SkillTree,
		})
	})
}

// GoalSteps は目標を実行可能なステップに分解する。
// POST /api/ai/goal-steps
func (h *AIHandler) GoalSteps(w http.ResponseWriter, r *http.Request) {
	var req goalStepsRequest
	h.serve(w, r, prompt.TaskGoalSteps, &req, func(ctx context.Context) (any, error) {
		return h.gateway.DecomposeGoal(ctx, gateway.GoalRequest{
			APIKey:      h.apiKey(r, req.APIKey),
			Title:       req.Title,
			Description: req.Description,
		})
	})
}

// Suggestion はカテゴリ別の提案を返す。
// POST /api/ai/suggestion
func (h *AIHandler) Suggestion(w http.ResponseWriter, r *http.Request) {
	var req suggestionRequest
	h.serve(w, r, prompt.TaskSuggestion, &req, func(ctx context.Context) (any, error) {
		return h.gateway.Suggest(ctx, gateway.SuggestionRequest{
			APIKey:   h.apiKey(r, req.APIKey),
			Category: req.Category,
			Entries:  req.Entries,
		})
	})
}

// serve はボディの読み込み、ゲートウェイ呼び出し、レスポンス書き込み、利用記録を共通化する。
func (h *AIHandler) serve(w http.ResponseWriter, r *http.Request, task prompt.Task, body any, call func(ctx context.Context) (any, error)) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := decodeJSON(w, r, body); err != nil {
		middleware.WriteError(w, err)
		return
	}

	start := time.Now()
	result, err := call(r.Context())
	h.recordUsage(r.Context(), userID, task, err, time.Since(start))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteSuccess(w, http.StatusOK, result)
}

// apiKey はボディのキーを優先し、無ければヘッダーのキーを返す。
func (h *AIHandler) apiKey(r *http.Request, fromBody string) string {
	if key := strings.TrimSpace(fromBody); key != "" {
		return key
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

// recordUsage は利用記録を1件書き込む。失敗はログのみでレスポンスには影響しない。
// クライアントが切断してもリクエストのコンテキストから切り離して記録する。
func (h *AIHandler) recordUsage(ctx context.Context, userID string, task prompt.Task, callErr error, elapsed time.Duration) {
	if h.usage == nil {
		return
	}

	status := "success"
	if callErr != nil {
		status = "internal"
		var apiErr *model.APIError
		if errors.As(callErr, &apiErr) {
			status = string(apiErr.Kind)
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), usageWriteTimeout)
	defer cancel()

	err := h.usage.Create(ctx, &model.UsageLog{
		ID:         uuid.New().String(),
		UserID:     userID,
		Task:       string(task),
		Status:     status,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  time.Now(),
	})
	if err != nil {
		h.logger.Warn("利用記録の保存に失敗しました",
			slog.String("request_id", middleware.RequestIDFromContext(ctx)),
			slog.String("user_id", userID),
			slog.String("task", string(task)),
			slog.String("error", err.Error()),
		)
	}
}
