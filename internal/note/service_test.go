package note

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/mindlog/internal/model"
	"github.com/hitoshi/mindlog/internal/security"
)

// --- モック ---

type mockNoteRepo struct {
	createFn   func(ctx context.Context, n *model.Note) error
	findByIDFn func(ctx context.Context, userID, id string) (*model.Note, error)
	listFn     func(ctx context.Context, userID string, from, to int64, limit int) ([]*model.Note, error)
	updateFn   func(ctx context.Context, n *model.Note) (bool, error)
	deleteFn   func(ctx context.Context, userID, id string) (bool, error)
}

func (m *mockNoteRepo) Create(ctx context.Context, n *model.Note) error {
	if m.createFn != nil {
		return m.createFn(ctx, n)
	}
	return nil
}

func (m *mockNoteRepo) FindByID(ctx context.Context, userID, id string) (*model.Note, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, userID, id)
	}
	return nil, nil
}

func (m *mockNoteRepo) ListByUser(ctx context.Context, userID string, from, to int64, limit int) ([]*model.Note, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, from, to, limit)
	}
	return []*model.Note{}, nil
}

func (m *mockNoteRepo) Update(ctx context.Context, n *model.Note) (bool, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, n)
	}
	return true, nil
}

func (m *mockNoteRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return true, nil
}

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(repo *mockNoteRepo) *Service {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	svc := NewService(repo, security.NewContentSanitizer(), logger)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// --- テスト ---

// 作成時に本文がサニタイズされ、記録時刻の既定値が現在時刻になること
func TestService_Create_SanitizesAndDefaultsRecordedAt(t *testing.T) {
	var stored *model.Note
	repo := &mockNoteRepo{
		createFn: func(_ context.Context, n *model.Note) error {
			stored = n
			return nil
		},
	}
	svc := newTestService(repo)

	got, err := svc.Create(context.Background(), "user-1", Input{Content: "<b>散歩</b>した", Mood: "calm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil || stored != got {
		t.Fatal("リポジトリに保存されていない")
	}
	if got.Content != "散歩した" {
		t.Errorf("Content = %q, want 散歩した", got.Content)
	}
	if got.RecordedAt != fixedNow.UnixMilli() {
		t.Errorf("RecordedAt = %d, want %d", got.RecordedAt, fixedNow.UnixMilli())
	}
	if got.UserID != "user-1" || got.ID == "" {
		t.Errorf("note = %+v", got)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc := newTestService(&mockNoteRepo{
		createFn: func(context.Context, *model.Note) error {
			t.Fatal("Create should not be called")
			return nil
		},
	})

	tests := []struct {
		name string
		in   Input
	}{
		{name: "空の本文", in: Input{Content: "   "}},
		{name: "タグのみの本文", in: Input{Content: "<p></p>"}},
		{name: "長すぎる本文", in: Input{Content: strings.Repeat("あ", MaxContentLength+1)}},
		{name: "長すぎる気分", in: Input{Content: "ok", Mood: strings.Repeat("x", MaxMoodLength+1)}},
		{name: "負の記録時刻", in: Input{Content: "ok", RecordedAt: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "user-1", tt.in)
			if !model.IsKind(err, model.KindValidation) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}
}

func TestService_List_InvalidRange(t *testing.T) {
	svc := newTestService(&mockNoteRepo{})

	if _, err := svc.List(context.Background(), "user-1", 200, 100, 0); !model.IsKind(err, model.KindValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}

func TestService_List_PassesRange(t *testing.T) {
	var gotFrom, gotTo int64
	var gotLimit int
	svc := newTestService(&mockNoteRepo{
		listFn: func(_ context.Context, _ string, from, to int64, limit int) ([]*model.Note, error) {
			gotFrom, gotTo, gotLimit = from, to, limit
			return []*model.Note{{ID: "n1"}}, nil
		},
	})

	notes, err := svc.List(context.Background(), "user-1", 100, 200, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 1 || gotFrom != 100 || gotTo != 200 || gotLimit != 5 {
		t.Errorf("notes=%v from=%d to=%d limit=%d", notes, gotFrom, gotTo, gotLimit)
	}
}

// 更新時に記録時刻を省略すると既存の値が維持されること
func TestService_Update_KeepsRecordedAt(t *testing.T) {
	svc := newTestService(&mockNoteRepo{
		findByIDFn: func(_ context.Context, userID, id string) (*model.Note, error) {
			return &model.Note{ID: id, UserID: userID, Content: "old", RecordedAt: 42}, nil
		},
	})

	got, err := svc.Update(context.Background(), "user-1", "n1", Input{Content: "new"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RecordedAt != 42 || got.Content != "new" || !got.UpdatedAt.Equal(fixedNow) {
		t.Errorf("note = %+v", got)
	}
}

func TestService_Update_NotFound(t *testing.T) {
	svc := newTestService(&mockNoteRepo{})

	_, err := svc.Update(context.Background(), "user-1", "missing", Input{Content: "x"})
	if !model.IsKind(err, model.KindNotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	svc := newTestService(&mockNoteRepo{
		deleteFn: func(context.Context, string, string) (bool, error) { return false, nil },
	})

	if err := svc.Delete(context.Background(), "user-1", "missing"); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
}
