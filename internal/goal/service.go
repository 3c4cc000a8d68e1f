// Package goal は目標管理のドメインロジックを提供する。
// 目標のステップはAIの目標分解結果をクライアントが確認してから保存する。
package goal

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
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxSteps             = 20
	MaxStepLength        = 200
)

// Input は目標の作成、更新の入力。
type Input struct {
	Title       string
	Description string
	Steps       []string
	Completed   bool
}

// Service は目標のサービス層。
type Service struct {
	repo      repository.GoalRepository
	sanitizer security.ContentSanitizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.GoalRepository, sanitizer security.ContentSanitizer, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// Create は目標を作成する。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.Goal, error) {
	in, err := s.normalize(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	g := &model.Goal{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Steps:       in.Steps,
		Completed:   in.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	s.logger.Debug("goal created",
		slog.String("user_id", userID),
		slog.String("goal_id", g.ID),
		slog.Int("steps", len(g.Steps)),
	)
	return g, nil
}

// List はユーザーの目標を新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Goal, error) {
	goals, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	return goals, nil
}

// Update は目標全体を置き換える。
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*model.Goal, error) {
	existing, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find goal: %w", err)
	}
	if existing == nil {
		return nil, model.NewNotFoundError("goal", id)
	}

	in, err = s.normalize(in)
	if err != nil {
		return nil, err
	}

	existing.Title = in.Title
	existing.Description = in.Description
	existing.Steps = in.Steps
	existing.Completed = in.Completed
	existing.UpdatedAt = s.now()

	ok, err := s.repo.Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}
	if !ok {
		return nil, model.NewNotFoundError("goal", id)
	}
	return existing, nil
}

// Delete は目標を削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if !ok {
		return model.NewNotFoundError("goal", id)
	}
	return nil
}

func (s *Service) normalize(in Input) (Input, error) {
	in.Title = s.sanitizer.Sanitize(in.Title)
	in.Description = s.sanitizer.Sanitize(in.Description)

	if in.Title == "" {
		return in, model.NewValidationError("title is required")
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return in, model.NewValidationError("title must be at most %d characters", MaxTitleLength)
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return in, model.NewValidationError("description must be at most %d characters", MaxDescriptionLength)
	}

	// 空になったステップは詰める
	steps := make([]string, 0, len(in.Steps))
	for _, step := range in.Steps {
		step = s.sanitizer.Sanitize(step)
		if step == "" {
			continue
		}
		if utf8.RuneCountInString(step) > MaxStepLength {
			return in, model.NewValidationError("each step must be at most %d characters", MaxStepLength)
		}
		steps = append(steps, step)
	}
	if len(steps) > MaxSteps {
		return in, model.NewValidationError("at most %d steps are allowed", MaxSteps)
	}
	in.Steps = steps
	return in, nil
}
