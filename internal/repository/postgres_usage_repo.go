package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/mindlog/internal/model"
)

// PostgresUsageRepo はPostgreSQLを使用したAIタスク利用記録リポジトリ。
type PostgresUsageRepo struct {
	db *sql.DB
}

// NewPostgresUsageRepo はPostgresUsageRepoを生成する。
func NewPostgresUsageRepo(db *sql.DB) *PostgresUsageRepo {
	return &PostgresUsageRepo{db: db}
}

// Create は利用記録を1件追加する。
func (r *PostgresUsageRepo) Create(ctx context.Context, log *model.UsageLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ai_usage_logs (id, user_id, task, status, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		log.ID, log.UserID, log.Task, log.Status, log.DurationMs, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// CountByUserSince は指定日時以降の利用記録をタスク別に集計する。
func (r *PostgresUsageRepo) CountByUserSince(ctx context.Context, userID string, since time.Time) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT task, count(*) FROM ai_usage_logs
		 WHERE user_id = $1 AND created_at >= $2
		 GROUP BY task`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count usage logs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var task string
		var n int
		if err := rows.Scan(&task, &n); err != nil {
			return nil, fmt.Errorf("failed to scan usage count: %w", err)
		}
		counts[task] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage counts: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ UsageRepository = (*PostgresUsageRepo)(nil)
