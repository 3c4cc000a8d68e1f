// Package note は日記エントリ管理のドメインロジックを提供する。
package note

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/mindlog/internal/model"
	"github.com/hitoshi/mindlog/internal/repository"
	"github.com/hitoshi/mindlog/internal/security"
)

const (
	// MaxContentLength はエントリ本文の最大文字数。
	MaxContentLength = 5000
	// MaxMoodLength は気分ラベルの最大文字数。
	MaxMoodLength = 32
)

// Input はエントリの作成、更新の入力。
// RecordedAtが0の場合は現在時刻（ミリ秒）を使う。
type Input struct {
	Content    string
	Mood       string
	RecordedAt int64
}

// Service は日記エントリのサービス層。
type Service struct {
	repo      repository.NoteRepository
	sanitizer security.ContentSanitizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.NoteRepository, sanitizer security.ContentSanitizer, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// Create はエントリを作成する。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.Note, error) {
	in, err := s.normalize(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	n := &model.Note{
		ID:         uuid.New().String(),
		UserID:     userID,
		Content:    in.Content,
		Mood:       in.Mood,
		RecordedAt: in.RecordedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	s.logger.Debug("note created",
		slog.String("user_id", userID),
		slog.String("note_id", n.ID),
	)
	return n, nil
}

// List は期間内のエントリを記録時刻の昇順で返す。
func (s *Service) List(ctx context.Context, userID string, from, to int64, limit int) ([]*model.Note, error) {
	if from < 0 || to < 0 || (to > 0 && from >= to) {
		return nil, model.NewValidationError("invalid time range")
	}
	notes, err := s.repo.ListByUser(ctx, userID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// Update はエントリを更新する。他ユーザーのエントリはNotFoundになる。
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*model.Note, error) {
	existing, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	if existing == nil {
		return nil, model.NewNotFoundError("note", id)
	}

	if in.RecordedAt == 0 {
		in.RecordedAt = existing.RecordedAt
	}
	in, err = s.normalize(in)
	if err != nil {
		return nil, err
	}

	existing.Content = in.Content
	existing.Mood = in.Mood
	existing.RecordedAt = in.RecordedAt
	existing.UpdatedAt = s.now()

	ok, err := s.repo.Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if !ok {
		return nil, model.NewNotFoundError("note", id)
	}
	return existing, nil
}

// Delete はエントリを削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if !ok {
		return model.NewNotFoundError("note", id)
	}
	return nil
}

// normalize はサニタイズと入力検証を行う。
func (s *Service) normalize(in Input) (Input, error) {
	in.Content = s.sanitizer.Sanitize(in.Content)
	in.Mood = s.sanitizer.Sanitize(in.Mood)

	if in.Content == "" {
		return in, model.NewValidationError("content is required")
	}
	if utf8.RuneCountInString(in.Content) > MaxContentLength {
		return in, model.NewValidationError("content must be at most %d characters", MaxContentLength)
	}
	if utf8.RuneCountInString(in.Mood) > MaxMoodLength {
		return in, model.NewValidationError("mood must be at most %d characters", MaxMoodLength)
	}
	if in.RecordedAt < 0 {
		return in, model.NewValidationError("recordedAt must not be negative")
	}
	if in.RecordedAt == 0 {
		in.RecordedAt = s.now().UnixMilli()
	}
	return in, nil
}
