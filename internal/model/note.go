package model

import "time"

// Note はユーザーが記録した日記エントリを表す。
// RecordedAtはクライアント側で記録された時刻（ミリ秒エポック）で、
// AIタスクへの入力時の並び順に使われる。
type Note struct {
	ID         string
	UserID     string
	Content    string
	Mood       string
	RecordedAt int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Goal はユーザーの目標と、その分解済みステップを表す。
type Goal struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Steps       []string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UsageLog はAIタスク呼び出し1回分の記録。
// 保持期間を過ぎたものはワーカーのクリーンアップジョブで削除される。
type UsageLog struct {
	ID         string
	UserID     string
	Task       string
	Status     string
	DurationMs int64
	CreatedAt  time.Time
}
