// internal/database/sessions.go
package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

const codingSessionColumns = `id, user_id, repository_id, started_at, ended_at, duration_minutes,
	total_commits, total_additions, total_deletions, files_changed, primary_language,
	languages_used, ai_summary, ai_generated_at, created_at, updated_at`

func scanCodingSession(row pgx.Row) (model.CodingSession, error) {
	var s model.CodingSession
	var languages []byte
	err := row.Scan(
		&s.ID, &s.UserID, &s.RepositoryID, &s.StartedAt, &s.EndedAt, &s.DurationMinutes,
		&s.TotalCommits, &s.TotalAdditions, &s.TotalDeletions, &s.FilesChanged, &s.PrimaryLanguage,
		&languages, &s.AISummary, &s.AIGeneratedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return model.CodingSession{}, err
	}
	if len(languages) > 0 {
		if err := json.Unmarshal(languages, &s.LanguagesUsed); err != nil {
			return model.CodingSession{}, err
		}
	}
	return s, nil
}

type CreateCodingSessionParams struct {
	UserID       int64
	RepositoryID *int64
	StartedAt    time.Time
	EndedAt      time.Time
}

func (q *Queries) CreateCodingSession(ctx context.Context, arg CreateCodingSessionParams) (model.CodingSession, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO coding_sessions (user_id, repository_id, started_at, ended_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+codingSessionColumns,
		arg.UserID, arg.RepositoryID, arg.StartedAt, arg.EndedAt)
	return scanCodingSession(row)
}

func (q *Queries) GetCodingSession(ctx context.Context, id int64) (model.CodingSession, error) {
	row := q.db.QueryRow(ctx, `SELECT `+codingSessionColumns+` FROM coding_sessions WHERE id = $1`, id)
	return scanCodingSession(row)
}

type ListCodingSessionsByUserParams struct {
	UserID int64
	Limit  int32
}

func (q *Queries) ListCodingSessionsByUser(ctx context.Context, arg ListCodingSessionsByUserParams) ([]model.CodingSession, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+codingSessionColumns+` FROM coding_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.CodingSession
	for rows.Next() {
		s, err := scanCodingSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteCodingSession removes a session. Member commits keep their rows;
// the FK sets their session reference back to null.
func (q *Queries) DeleteCodingSession(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM coding_sessions WHERE id = $1`, id)
	return err
}

type UpdateCodingSessionStatsParams struct {
	ID              int64
	StartedAt       time.Time
	EndedAt         time.Time
	DurationMinutes int32
	TotalCommits    int32
	TotalAdditions  int32
	TotalDeletions  int32
	FilesChanged    int32
	PrimaryLanguage string
	LanguagesUsed   []string
}

func (q *Queries) UpdateCodingSessionStats(ctx context.Context, arg UpdateCodingSessionStatsParams) (model.CodingSession, error) {
	languages, err := json.Marshal(arg.LanguagesUsed)
	if err != nil {
		return model.CodingSession{}, err
	}
	if arg.LanguagesUsed == nil {
		languages = []byte(`[]`)
	}
	row := q.db.QueryRow(ctx, `
		UPDATE coding_sessions
		SET started_at = $2, ended_at = $3, duration_minutes = $4, total_commits = $5,
			total_additions = $6, total_deletions = $7, files_changed = $8,
			primary_language = $9, languages_used = $10, updated_at = now()
		WHERE id = $1
		RETURNING `+codingSessionColumns,
		arg.ID, arg.StartedAt, arg.EndedAt, arg.DurationMinutes, arg.TotalCommits,
		arg.TotalAdditions, arg.TotalDeletions, arg.FilesChanged,
		arg.PrimaryLanguage, languages,
	)
	return scanCodingSession(row)
}

type SetCodingSessionSummaryParams struct {
	ID      int64
	Summary string
}

func (q *Queries) SetCodingSessionSummary(ctx context.Context, arg SetCodingSessionSummaryParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE coding_sessions SET ai_summary = $2, ai_generated_at = now(), updated_at = now()
		WHERE id = $1`, arg.ID, arg.Summary)
	return err
}
