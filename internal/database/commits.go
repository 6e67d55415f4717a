// internal/database/commits.go
package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

const commitColumns = `id, repository_id, session_id, sha, message, author_name, author_email,
	committed_at, additions, deletions, changed_files, files_data, branch, created_at`

func scanCommit(row pgx.Row) (model.Commit, error) {
	var c model.Commit
	var filesData []byte
	err := row.Scan(
		&c.ID, &c.RepositoryID, &c.SessionID, &c.SHA, &c.Message, &c.AuthorName, &c.AuthorEmail,
		&c.CommittedAt, &c.Additions, &c.Deletions, &c.ChangedFiles, &filesData, &c.Branch, &c.CreatedAt,
	)
	if err != nil {
		return model.Commit{}, err
	}
	if len(filesData) > 0 {
		if err := json.Unmarshal(filesData, &c.FilesData); err != nil {
			return model.Commit{}, err
		}
	}
	return c, nil
}

func (q *Queries) queryCommits(ctx context.Context, sql string, args ...any) ([]model.Commit, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commits []model.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

type CreateCommitParams struct {
	RepositoryID int64
	SHA          string
	Message      string
	AuthorName   string
	AuthorEmail  string
	CommittedAt  time.Time
	Additions    int32
	Deletions    int32
	ChangedFiles int32
	FilesData    []model.FileChange
	Branch       string
}

// CreateCommit inserts a commit. The global unique constraint on sha is the
// sole dedupe guard; callers treat a violation as "already present".
func (q *Queries) CreateCommit(ctx context.Context, arg CreateCommitParams) (model.Commit, error) {
	filesData, err := json.Marshal(arg.FilesData)
	if err != nil {
		return model.Commit{}, err
	}
	if arg.FilesData == nil {
		filesData = []byte(`[]`)
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO commits (repository_id, sha, message, author_name, author_email,
			committed_at, additions, deletions, changed_files, files_data, branch)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+commitColumns,
		arg.RepositoryID, arg.SHA, arg.Message, arg.AuthorName, arg.AuthorEmail,
		arg.CommittedAt, arg.Additions, arg.Deletions, arg.ChangedFiles, filesData, arg.Branch,
	)
	return scanCommit(row)
}

func (q *Queries) GetCommit(ctx context.Context, id int64) (model.Commit, error) {
	row := q.db.QueryRow(ctx, `SELECT `+commitColumns+` FROM commits WHERE id = $1`, id)
	return scanCommit(row)
}

func (q *Queries) CommitExists(ctx context.Context, sha string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM commits WHERE sha = $1)`, sha).Scan(&exists)
	return exists, err
}

func (q *Queries) ListCommitsByRepository(ctx context.Context, repositoryID int64) ([]model.Commit, error) {
	return q.queryCommits(ctx, `
		SELECT `+commitColumns+` FROM commits
		WHERE repository_id = $1
		ORDER BY committed_at DESC`, repositoryID)
}

func (q *Queries) ListCommitsBySession(ctx context.Context, sessionID int64) ([]model.Commit, error) {
	return q.queryCommits(ctx, `
		SELECT `+commitColumns+` FROM commits
		WHERE session_id = $1
		ORDER BY committed_at`, sessionID)
}

type ListUngroupedCommitsByRepositoryParams struct {
	RepositoryID int64
	Since        time.Time
}

// ListUngroupedCommitsByRepository returns session-less commits in ascending
// committed_at order. Row locks keep a concurrent grouping run from
// assigning the same commits.
func (q *Queries) ListUngroupedCommitsByRepository(ctx context.Context, arg ListUngroupedCommitsByRepositoryParams) ([]model.Commit, error) {
	return q.queryCommits(ctx, `
		SELECT `+commitColumns+` FROM commits
		WHERE repository_id = $1 AND session_id IS NULL AND committed_at >= $2
		ORDER BY committed_at
		FOR UPDATE`, arg.RepositoryID, arg.Since)
}

func (q *Queries) ListUngroupedCommitsByUser(ctx context.Context, userID int64) ([]model.Commit, error) {
	return q.queryCommits(ctx, `
		SELECT c.id, c.repository_id, c.session_id, c.sha, c.message, c.author_name, c.author_email,
			c.committed_at, c.additions, c.deletions, c.changed_files, c.files_data, c.branch, c.created_at
		FROM commits c
		JOIN repositories r ON r.id = c.repository_id
		WHERE r.user_id = $1 AND c.session_id IS NULL
		ORDER BY c.committed_at
		FOR UPDATE OF c`, userID)
}

type AssignCommitSessionParams struct {
	CommitID  int64
	SessionID int64
}

// AssignCommitSession attaches a commit to a session only if it is still
// ungrouped, and reports whether the assignment happened.
func (q *Queries) AssignCommitSession(ctx context.Context, arg AssignCommitSessionParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE commits SET session_id = $2
		WHERE id = $1 AND session_id IS NULL`, arg.CommitID, arg.SessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type UpdateCommitStatsParams struct {
	ID           int64
	Additions    int32
	Deletions    int32
	ChangedFiles int32
}

// UpdateCommitStats backfills line-level stats from the sync path; push
// payloads do not carry them.
func (q *Queries) UpdateCommitStats(ctx context.Context, arg UpdateCommitStatsParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE commits SET additions = $2, deletions = $3, changed_files = $4
		WHERE id = $1`, arg.ID, arg.Additions, arg.Deletions, arg.ChangedFiles)
	return err
}
