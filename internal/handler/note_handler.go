package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mindlog/internal/middleware"
	"github.com/hitoshi/mindlog/internal/model"
	"github.com/hitoshi/mindlog/internal/note"
)

// NoteServiceInterface は日記エントリハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	Create(ctx context.Context, userID string, in note.Input) (*model.Note, error)
	List(ctx context.Context, userID string, from, to int64, limit int) ([]*model.Note, error)
	Update(ctx context.Context, userID, id string, in note.Input) (*model.Note, error)
	Delete(ctx context.Context, userID, id string) error
}

// NoteHandler は日記エントリのHTTPハンドラー。
type NoteHandler struct {
	service NoteServiceInterface
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface) *NoteHandler {
	return &NoteHandler{service: service}
}

type noteRequest struct {
	Content    string `json:"content"`
	Mood       string `json:"mood"`
	RecordedAt int64  `json:"recordedAt"`
}

type noteResponse struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Mood       string    `json:"mood"`
	RecordedAt int64     `json:"recordedAt"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toNoteResponse(n *model.Note) noteResponse {
	return noteResponse{
		ID:         n.ID,
		Content:    n.Content,
		Mood:       n.Mood,
		RecordedAt: n.RecordedAt,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

// List は期間内のエントリを返す。
// GET /api/notes?from=&to=&limit=（from、toはエポックミリ秒）
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	from, err := queryInt64(r, "from")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	to, err := queryInt64(r, "to")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	notes, err := h.service.List(r.Context(), userID, from, to, int(limit))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]noteResponse, len(notes))
	for i, n := range notes {
		resp[i] = toNoteResponse(n)
	}
	middleware.WriteSuccess(w, http.StatusOK, resp)
}

// Create はエントリを作成する。
// POST /api/notes
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	n, err := h.service.Create(r.Context(), userID, note.Input(req))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteSuccess(w, http.StatusCreated, toNoteResponse(n))
}

// Update はエントリを更新する。
// PUT /api/notes/{id}
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	n, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), note.Input(req))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteSuccess(w, http.StatusOK, toNoteResponse(n))
}

// Delete はエントリを削除する。
// DELETE /api/notes/{id}
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
