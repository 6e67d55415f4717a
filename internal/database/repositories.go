// internal/database/repositories.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

const repositoryColumns = `id, user_id, github_id, name, full_name, description, url, default_branch,
	is_private, is_fork, language, stars_count, forks_count, is_tracking_enabled,
	last_synced_at, created_at, updated_at`

func scanRepository(row pgx.Row) (model.Repository, error) {
	var r model.Repository
	err := row.Scan(
		&r.ID, &r.UserID, &r.GithubID, &r.Name, &r.FullName, &r.Description, &r.URL, &r.DefaultBranch,
		&r.IsPrivate, &r.IsFork, &r.Language, &r.StarsCount, &r.ForksCount, &r.IsTrackingEnabled,
		&r.LastSyncedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

type CreateRepositoryParams struct {
	UserID            int64
	GithubID          int64
	Name              string
	FullName          string
	Description       string
	URL               string
	DefaultBranch     string
	IsPrivate         bool
	IsFork            bool
	Language          string
	StarsCount        int32
	ForksCount        int32
	IsTrackingEnabled bool
}

func (q *Queries) CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO repositories (user_id, github_id, name, full_name, description, url, default_branch,
			is_private, is_fork, language, stars_count, forks_count, is_tracking_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+repositoryColumns,
		arg.UserID, arg.GithubID, arg.Name, arg.FullName, arg.Description, arg.URL, arg.DefaultBranch,
		arg.IsPrivate, arg.IsFork, arg.Language, arg.StarsCount, arg.ForksCount, arg.IsTrackingEnabled,
	)
	return scanRepository(row)
}

func (q *Queries) GetRepository(ctx context.Context, id int64) (model.Repository, error) {
	row := q.db.QueryRow(ctx, `SELECT `+repositoryColumns+` FROM repositories WHERE id = $1`, id)
	return scanRepository(row)
}

// GetRepositoryByGithubID looks up a repository by its GitHub id across all
// owners. Used by the user resolver: an already-tracked repository implies
// its owner.
func (q *Queries) GetRepositoryByGithubID(ctx context.Context, githubID int64) (model.Repository, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE github_id = $1
		ORDER BY id
		LIMIT 1`, githubID)
	return scanRepository(row)
}

type GetRepositoryByUserAndGithubIDParams struct {
	UserID   int64
	GithubID int64
}

func (q *Queries) GetRepositoryByUserAndGithubID(ctx context.Context, arg GetRepositoryByUserAndGithubIDParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE user_id = $1 AND github_id = $2`, arg.UserID, arg.GithubID)
	return scanRepository(row)
}

type GetRepositoryByUserAndFullNameParams struct {
	UserID   int64
	FullName string
}

func (q *Queries) GetRepositoryByUserAndFullName(ctx context.Context, arg GetRepositoryByUserAndFullNameParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE user_id = $1 AND full_name = $2`, arg.UserID, arg.FullName)
	return scanRepository(row)
}

func (q *Queries) ListRepositoriesByUser(ctx context.Context, userID int64) ([]model.Repository, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

type UpdateRepositorySyncDataParams struct {
	ID            int64
	Description   string
	URL           string
	DefaultBranch string
	IsPrivate     bool
	IsFork        bool
	Language      string
	StarsCount    int32
	ForksCount    int32
}

func (q *Queries) UpdateRepositorySyncData(ctx context.Context, arg UpdateRepositorySyncDataParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE repositories
		SET description = $2, url = $3, default_branch = $4, is_private = $5, is_fork = $6,
			language = $7, stars_count = $8, forks_count = $9, last_synced_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING `+repositoryColumns,
		arg.ID, arg.Description, arg.URL, arg.DefaultBranch, arg.IsPrivate, arg.IsFork,
		arg.Language, arg.StarsCount, arg.ForksCount,
	)
	return scanRepository(row)
}

type SetRepositoryTrackingParams struct {
	ID      int64
	Enabled bool
}

func (q *Queries) SetRepositoryTracking(ctx context.Context, arg SetRepositoryTrackingParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE repositories SET is_tracking_enabled = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+repositoryColumns, arg.ID, arg.Enabled)
	return scanRepository(row)
}

// AcquireRepositoryLock serializes session grouping per repository for the
// duration of the current transaction.
func (q *Queries) AcquireRepositoryLock(ctx context.Context, repositoryID int64) error {
	_, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, repositoryID)
	return err
}
