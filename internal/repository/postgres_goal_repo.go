package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/mindlog/internal/model"
)

const goalColumns = `id, user_id, title, description, steps, completed, created_at, updated_at`

// PostgresGoalRepo はPostgreSQLを使用した目標リポジトリ。
// stepsはtext[]カラムにpq.Arrayで読み書きする。
type PostgresGoalRepo struct {
	db *sql.DB
}

// NewPostgresGoalRepo はPostgresGoalRepoを生成する。
func NewPostgresGoalRepo(db *sql.DB) *PostgresGoalRepo {
	return &PostgresGoalRepo{db: db}
}

func scanGoal(row interface{ Scan(...any) error }) (*model.Goal, error) {
	g := &model.Goal{}
	var steps pq.StringArray
	if err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &steps, &g.Completed, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Steps = []string(steps)
	if g.Steps == nil {
		g.Steps = []string{}
	}
	return g, nil
}

// Create は目標を作成する。
func (r *PostgresGoalRepo) Create(ctx context.Context, goal *model.Goal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (`+goalColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		goal.ID, goal.UserID, goal.Title, goal.Description, pq.Array(nonNilSteps(goal.Steps)),
		goal.Completed, goal.CreatedAt, goal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// FindByID は指定ユーザーの目標を取得する。見つからない場合はnilを返す。
func (r *PostgresGoalRepo) FindByID(ctx context.Context, userID, id string) (*model.Goal, error) {
	goal, err := scanGoal(r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find goal: %w", err)
	}
	return goal, nil
}

// ListByUser は指定ユーザーの目標を作成日時の降順で返す。
func (r *PostgresGoalRepo) ListByUser(ctx context.Context, userID string) ([]*model.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	goals := []*model.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goals: %w", err)
	}
	return goals, nil
}

// Update は目標を更新する。
func (r *PostgresGoalRepo) Update(ctx context.Context, goal *model.Goal) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE goals SET title = $3, description = $4, steps = $5, completed = $6, updated_at = $7
		 WHERE id = $1 AND user_id = $2`,
		goal.ID, goal.UserID, goal.Title, goal.Description, pq.Array(nonNilSteps(goal.Steps)),
		goal.Completed, goal.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update goal: %w", err)
	}
	return affected(result)
}

// Delete は指定ユーザーの目標を削除する。
func (r *PostgresGoalRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete goal: %w", err)
	}
	return affected(result)
}

// nonNilSteps はnilを空配列に置き換える（NOT NULL制約のため）。
func nonNilSteps(steps []string) []string {
	if steps == nil {
		return []string{}
	}
	return steps
}

// compile-time interface check
var _ GoalRepository = (*PostgresGoalRepo)(nil)
