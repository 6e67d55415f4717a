// internal/session/grouper.go
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

// DefaultThreshold is the maximum inter-commit gap within one session.
const DefaultThreshold = 30 * time.Minute

// Grouper partitions time-ordered, session-less commits into contiguous
// sessions under a sliding gap threshold. Only commits with a null session
// reference are ever considered, so repeated invocations never reassign or
// double-count a commit.
type Grouper struct {
	threshold time.Duration
	logger    *slog.Logger
}

// NewGrouper creates a Grouper. A non-positive threshold falls back to
// DefaultThreshold.
func NewGrouper(threshold time.Duration, logger *slog.Logger) *Grouper {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Grouper{threshold: threshold, logger: logger}
}

// GroupRepositoryCommits groups a repository's session-less commits
// committed at or after since. Grouping is serialized per repository with a
// transaction-scoped advisory lock, so it must run inside a transaction.
// Returns the number of sessions created.
func (g *Grouper) GroupRepositoryCommits(ctx context.Context, q database.Querier, userID, repositoryID int64, since time.Time) (int, error) {
	if err := q.AcquireRepositoryLock(ctx, repositoryID); err != nil {
		return 0, err
	}

	commits, err := q.ListUngroupedCommitsByRepository(ctx, database.ListUngroupedCommitsByRepositoryParams{
		RepositoryID: repositoryID,
		Since:        since,
	})
	if err != nil {
		return 0, err
	}
	if len(commits) == 0 {
		g.logger.Info("No ungrouped commits to process", "repository_id", repositoryID)
		return 0, nil
	}

	created, err := g.assign(ctx, q, userID, commits)
	if err != nil {
		return created, err
	}
	g.logger.Info("Grouped commits into sessions",
		"repository_id", repositoryID, "commits", len(commits), "sessions_created", created)
	return created, nil
}

// GroupUserCommits groups all of a user's session-less commits across
// repositories, oldest first. Used by the manual regroup endpoint.
func (g *Grouper) GroupUserCommits(ctx context.Context, q database.Querier, userID int64) (int, error) {
	commits, err := q.ListUngroupedCommitsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(commits) == 0 {
		g.logger.Info("No ungrouped commits to process", "user_id", userID)
		return 0, nil
	}
	return g.assign(ctx, q, userID, commits)
}

// assign folds the ordered commit slice into sessions. A commit starts a
// new session when there is no open session or its gap from the previous
// commit strictly exceeds the threshold; a gap exactly equal to the
// threshold joins the open session. Aggregate stats are recomputed once per
// session, after its membership settles.
func (g *Grouper) assign(ctx context.Context, q database.Querier, userID int64, commits []model.Commit) (int, error) {
	var (
		current        *model.CodingSession
		members        []model.Commit
		lastCommitTime time.Time
		created        int
	)

	flush := func() error {
		if current == nil {
			return nil
		}
		if len(members) == 0 {
			// Every candidate commit was claimed by a concurrent run, so
			// the session we opened for them stayed empty. Drop it rather
			// than leave a zero-commit session behind.
			if err := q.DeleteCodingSession(ctx, current.ID); err != nil {
				return err
			}
			created--
			return nil
		}
		stats := ComputeStats(members)
		_, err := q.UpdateCodingSessionStats(ctx, database.UpdateCodingSessionStatsParams{
			ID:              current.ID,
			StartedAt:       stats.StartedAt,
			EndedAt:         stats.EndedAt,
			DurationMinutes: stats.DurationMinutes,
			TotalCommits:    stats.TotalCommits,
			TotalAdditions:  stats.TotalAdditions,
			TotalDeletions:  stats.TotalDeletions,
			FilesChanged:    stats.FilesChanged,
			PrimaryLanguage: stats.PrimaryLanguage,
			LanguagesUsed:   stats.LanguagesUsed,
		})
		return err
	}

	for _, commit := range commits {
		if current == nil || commit.CommittedAt.Sub(lastCommitTime) > g.threshold {
			if err := flush(); err != nil {
				return created, err
			}
			repositoryID := commit.RepositoryID
			s, err := q.CreateCodingSession(ctx, database.CreateCodingSessionParams{
				UserID:       userID,
				RepositoryID: &repositoryID,
				StartedAt:    commit.CommittedAt,
				EndedAt:      commit.CommittedAt,
			})
			if err != nil {
				return created, err
			}
			current = &s
			members = nil
			created++
		}

		n, err := q.AssignCommitSession(ctx, database.AssignCommitSessionParams{
			CommitID:  commit.ID,
			SessionID: current.ID,
		})
		if err != nil {
			return created, err
		}
		// n == 0 means a concurrent grouping run claimed the commit after
		// our candidate read; leave it to that run's session.
		if n > 0 {
			members = append(members, commit)
		}
		lastCommitTime = commit.CommittedAt
	}

	if err := flush(); err != nil {
		return created, err
	}
	return created, nil
}
