package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/mindlog/internal/middleware"
	"github.com/hitoshi/mindlog/internal/model"
)

// defaultUsageDays は利用状況の既定集計期間（日）。
const defaultUsageDays = 30

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, userID string) (*model.User, error)
	BindPhone(ctx context.Context, userID, code string) (*model.User, error)
	Usage(ctx context.Context, userID string, since time.Time) (map[string]int, error)
	// Withdraw はユーザーの退会処理を実行する。
	// notes、goals、ai_usage_logsはCASCADEで削除される。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	now     func() time.Time
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
		now:     time.Now,
	}
}

// Me はログイン中のユーザー情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteSuccess(w, http.StatusOK, toUserResponse(user))
}

type bindPhoneRequest struct {
	Code string `json:"code"`
}

// BindPhone は電話番号取得コードから番号を紐付ける。
// POST /api/users/me/phone
func (h *UserHandler) BindPhone(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req bindPhoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	user, err := h.service.BindPhone(r.Context(), userID, req.Code)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteSuccess(w, http.StatusOK, toUserResponse(user))
}

type usageResponse struct {
	Since  time.Time      `json:"since"`
	Counts map[string]int `json:"counts"`
}

// Usage は直近days日間のAIタスク利用回数を返す。
// GET /api/users/me/usage?days=30
func (h *UserHandler) Usage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	days, err := queryInt64(r, "days")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if days == 0 {
		days = defaultUsageDays
	}
	if days < 1 || days > 365 {
		middleware.WriteError(w, model.NewValidationError("days must be between 1 and 365"))
		return
	}

	since := h.now().AddDate(0, 0, -int(days))
	counts, err := h.service.Usage(r.Context(), userID, since)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteSuccess(w, http.StatusOK, usageResponse{Since: since, Counts: counts})
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
