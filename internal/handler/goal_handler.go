package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mindlog/internal/goal"
	"github.com/hitoshi/mindlog/internal/middleware"
	"github.com/hitoshi/mindlog/internal/model"
)

// GoalServiceInterface は目標ハンドラーが必要とするサービスインターフェース。
type GoalServiceInterface interface {
	Create(ctx context.Context, userID string, in goal.Input) (*model.Goal, error)
	List(ctx context.Context, userID string) ([]*model.Goal, error)
	Update(ctx context.Context, userID, id string, in goal.Input) (*model.Goal, error)
	Delete(ctx context.Context, userID, id string) error
}

// GoalHandler は目標のHTTPハンドラー。
type GoalHandler struct {
	service GoalServiceInterface
}

// NewGoalHandler はGoalHandlerを生成する。
func NewGoalHandler(service GoalServiceInterface) *GoalHandler {
	return &GoalHandler{service: service}
}

type goalRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Completed   bool     `json:"completed"`
}

type goalResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Steps       []string  `json:"steps"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toGoalResponse(g *model.Goal) goalResponse {
	steps := g.Steps
	if steps == nil {
		steps = []string{}
	}
	return goalResponse{
		ID:          g.ID,
		Title:       g.Title,
		Description: g.Description,
		Steps:       steps,
		Completed:   g.Completed,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

// List はユーザーの目標一覧を返す。
// GET /api/goals
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	goals, err := h.service.List(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]goalResponse, len(goals))
	for i, g := range goals {
		resp[i] = toGoalResponse(g)
	}
	middleware.WriteSuccess(w, http.StatusOK, resp)
}

// Create は目標を作成する。
// POST /api/goals
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	g, err := h.service.Create(r.Context(), userID, goal.Input(req))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteSuccess(w, http.StatusCreated, toGoalResponse(g))
}

// Update は目標を更新する。
// PUT /api/goals/{id}
func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	g, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), goal.Input(req))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteSuccess(w, http.StatusOK, toGoalResponse(g))
}

// Delete は目標を削除する。
// DELETE /api/goals/{id}
func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
