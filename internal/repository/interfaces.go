// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/mindlog/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByOpenID はミニプログラムのOpenIDでユーザーを検索する。見つからない場合はnilを返す。
	FindByOpenID(ctx context.Context, openID string) (*model.User, error)

	// Create はユーザーを作成する。OpenIDが重複する場合は既存ユーザーを返す。
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// UpdatePhoneNumber はユーザーの電話番号を更新する。
	UpdatePhoneNumber(ctx context.Context, id, phoneNumber string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するnotes、goals、ai_usage_logsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// NoteRepository は日記エントリの永続化インターフェース。
// 全操作はユーザーIDでスコープされる。
type NoteRepository interface {
	// Create はエントリを作成する。
	Create(ctx context.Context, note *model.Note) error

	// FindByID は指定ユーザーのエントリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Note, error)

	// ListByUser は指定ユーザーのエントリをrecorded_at昇順で返す。
	// from、toは0の場合その側の範囲を制限しない（toは含まない）。
	ListByUser(ctx context.Context, userID string, from, to int64, limit int) ([]*model.Note, error)

	// Update はエントリの本文と気分を更新する。対象が無ければfalseを返す。
	Update(ctx context.Context, note *model.Note) (bool, error)

	// Delete は指定ユーザーのエントリを削除する。対象が無ければfalseを返す。
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// GoalRepository は目標の永続化インターフェース。
type GoalRepository interface {
	// Create は目標を作成する。
	Create(ctx context.Context, goal *model.Goal) error

	// FindByID は指定ユーザーの目標を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Goal, error)

	// ListByUser は指定ユーザーの目標を作成日時の降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Goal, error)

	// Update は目標のタイトル、説明、ステップ、完了状態を更新する。対象が無ければfalseを返す。
	Update(ctx context.Context, goal *model.Goal) (bool, error)

	// Delete は指定ユーザーの目標を削除する。対象が無ければfalseを返す。
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// UsageRepository はAIタスク利用記録の永続化インターフェース。
type UsageRepository interface {
	// Create は利用記録を1件追加する。
	Create(ctx context.Context, log *model.UsageLog) error

	// CountByUserSince は指定日時以降のユーザーの利用記録をタスク別に集計する。
	CountByUserSince(ctx context.Context, userID string, since time.Time) (map[string]int, error)
}
