// internal/resync/resync.go
package resync

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	gh "github.com/KhlifiIsmail/devlog-backend/internal/github"
)

const (
	// Number of commits to backfill in parallel
	backfillConcurrency = 5
)

// GitHubAPI is the slice of the GitHub client the resync path needs.
type GitHubAPI interface {
	ListUserRepositories(ctx context.Context) ([]gh.RemoteRepository, error)
	GetCommitStats(ctx context.Context, owner, name, sha string) (gh.CommitStats, error)
}

// Syncer refreshes a user's repositories from the GitHub API and backfills
// the commit line stats that push payloads do not carry.
type Syncer struct {
	pool   *pgxpool.Pool
	api    GitHubAPI
	logger *slog.Logger
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(pool *pgxpool.Pool, api GitHubAPI, logger *slog.Logger) *Syncer {
	return &Syncer{pool: pool, api: api, logger: logger}
}

// SyncUser updates or creates the user's repositories from GitHub and
// returns the number synced. A failure on one repository does not abort the
// rest.
func (s *Syncer) SyncUser(ctx context.Context, userID int64) (int, error) {
	remotes, err := s.api.ListUserRepositories(ctx)
	if err != nil {
		return 0, err
	}

	q := database.New(s.pool)
	synced := 0
	for _, remote := range remotes {
		if err := s.upsertRepository(ctx, q, userID, remote); err != nil {
			s.logger.Error("Failed to sync repository", "full_name", remote.FullName, "error", err)
			continue
		}
		synced++
	}

	s.logger.Info("Repository sync finished", "user_id", userID, "synced", synced)
	return synced, nil
}

func (s *Syncer) upsertRepository(ctx context.Context, q database.Querier, userID int64, remote gh.RemoteRepository) error {
	existing, err := q.GetRepositoryByUserAndGithubID(ctx, database.GetRepositoryByUserAndGithubIDParams{
		UserID:   userID,
		GithubID: remote.GithubID,
	})

	if errors.Is(err, pgx.ErrNoRows) {
		existing, err = q.GetRepositoryByUserAndFullName(ctx, database.GetRepositoryByUserAndFullNameParams{
			UserID:   userID,
			FullName: remote.FullName,
		})
	}

	if errors.Is(err, pgx.ErrNoRows) {
		_, err := q.CreateRepository(ctx, database.CreateRepositoryParams{
			UserID:            userID,
			GithubID:          remote.GithubID,
			Name:              remote.Name,
			FullName:          remote.FullName,
			Description:       remote.Description,
			URL:               remote.URL,
			DefaultBranch:     remote.DefaultBranch,
			IsPrivate:         remote.Private,
			IsFork:            remote.Fork,
			Language:          remote.Language,
			StarsCount:        remote.StarsCount,
			ForksCount:        remote.ForksCount,
			IsTrackingEnabled: true,
		})
		if err != nil && database.IsUniqueViolation(err, "") {
			// Lost a race with a concurrent webhook delivery; the row exists.
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}

	_, err = q.UpdateRepositorySyncData(ctx, database.UpdateRepositorySyncDataParams{
		ID:            existing.ID,
		Description:   remote.Description,
		URL:           remote.URL,
		DefaultBranch: remote.DefaultBranch,
		IsPrivate:     remote.Private,
		IsFork:        remote.Fork,
		Language:      remote.Language,
		StarsCount:    remote.StarsCount,
		ForksCount:    remote.ForksCount,
	})
	return err
}

// BackfillCommitStats fills in additions/deletions for a repository's
// commits that still have zero stats, fetching from the GitHub API with
// bounded concurrency.
func (s *Syncer) BackfillCommitStats(ctx context.Context, repositoryID int64) (int, error) {
	q := database.New(s.pool)

	repo, err := q.GetRepository(ctx, repositoryID)
	if err != nil {
		return 0, err
	}
	owner, name := splitFullName(repo.FullName)

	commits, err := q.ListCommitsByRepository(ctx, repositoryID)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)

	var updated atomic.Int64
	for _, commit := range commits {
		if commit.Additions != 0 || commit.Deletions != 0 {
			continue
		}
		commit := commit
		g.Go(func() error {
			stats, err := s.api.GetCommitStats(gctx, owner, name, commit.SHA)
			if err != nil {
				s.logger.Error("Failed to fetch commit stats", "sha", commit.SHA, "error", err)
				return nil
			}
			if err := q.UpdateCommitStats(gctx, database.UpdateCommitStatsParams{
				ID:           commit.ID,
				Additions:    stats.Additions,
				Deletions:    stats.Deletions,
				ChangedFiles: stats.ChangedFiles,
			}); err != nil {
				s.logger.Error("Failed to store commit stats", "commit_id", commit.ID, "error", err)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(updated.Load()), err
	}

	s.logger.Info("Commit stats backfill finished", "repository", repo.FullName, "updated", updated.Load())
	return int(updated.Load()), nil
}

func splitFullName(fullName string) (owner, name string) {
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == '/' {
			return fullName[:i], fullName[i+1:]
		}
	}
	return "", fullName
}
