package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/mindlog/internal/model"
)

const (
	noteColumns = `id, user_id, content, mood, recorded_at, created_at, updated_at`

	// defaultNoteLimit はListByUserのlimitが0以下の場合の件数。
	defaultNoteLimit = 200
	// maxNoteLimit はListByUserの上限件数。
	maxNoteLimit = 1000
)

// PostgresNoteRepo はPostgreSQLを使用した日記エントリリポジトリ。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

func scanNote(row interface{ Scan(...any) error }) (*model.Note, error) {
	n := &model.Note{}
	if err := row.Scan(&n.ID, &n.UserID, &n.Content, &n.Mood, &n.RecordedAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return n, nil
}

// Create はエントリを作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		note.ID, note.UserID, note.Content, note.Mood, note.RecordedAt, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// FindByID は指定ユーザーのエントリを取得する。見つからない場合はnilを返す。
func (r *PostgresNoteRepo) FindByID(ctx context.Context, userID, id string) (*model.Note, error) {
	note, err := scanNote(r.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return note, nil
}

// ListByUser は指定ユーザーのエントリをrecorded_at昇順で返す。
// 同じrecorded_atの場合は作成順。
func (r *PostgresNoteRepo) ListByUser(ctx context.Context, userID string, from, to int64, limit int) ([]*model.Note, error) {
	if limit <= 0 {
		limit = defaultNoteLimit
	}
	if limit > maxNoteLimit {
		limit = maxNoteLimit
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + noteColumns + ` FROM notes WHERE user_id = $1`)
	args := []any{userID}
	if from > 0 {
		args = append(args, from)
		fmt.Fprintf(&b, ` AND recorded_at >= $%d`, len(args))
	}
	if to > 0 {
		args = append(args, to)
		fmt.Fprintf(&b, ` AND recorded_at < $%d`, len(args))
	}
	args = append(args, limit)
	fmt.Fprintf(&b, ` ORDER BY recorded_at ASC, created_at ASC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []*model.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// Update はエントリの本文、気分、記録時刻を更新する。
func (r *PostgresNoteRepo) Update(ctx context.Context, note *model.Note) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notes SET content = $3, mood = $4, recorded_at = $5, updated_at = $6
		 WHERE id = $1 AND user_id = $2`,
		note.ID, note.UserID, note.Content, note.Mood, note.RecordedAt, note.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update note: %w", err)
	}
	return affected(result)
}

// Delete は指定ユーザーのエントリを削除する。
func (r *PostgresNoteRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}
	return affected(result)
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
