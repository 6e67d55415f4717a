// internal/webhook/resolver.go
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

// UserResolver maps an inbound event to an owning account.
type UserResolver struct {
	logger *slog.Logger
}

// Resolve finds the account that owns a push event.
//
// Priority:
//  1. owner of an existing repository matched by GitHub repo id
//  2. account matched by exact pusher email
//  3. none: a nil user with a nil error; the caller decides what to do
func (r *UserResolver) Resolve(ctx context.Context, q database.Querier, pusherEmail string, repoGithubID int64) (*model.User, error) {
	if repoGithubID != 0 {
		repo, err := q.GetRepositoryByGithubID(ctx, repoGithubID)
		switch {
		case err == nil:
			user, err := q.GetUserByID(ctx, repo.UserID)
			if err != nil {
				return nil, err
			}
			r.logger.Debug("Resolved user from existing repository", "user_id", user.ID, "github_id", repoGithubID)
			return &user, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, err
		}
	}

	if pusherEmail != "" {
		user, err := q.GetUserByEmail(ctx, pusherEmail)
		switch {
		case err == nil:
			r.logger.Debug("Resolved user by pusher email", "user_id", user.ID)
			return &user, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, err
		}
		r.logger.Warn("No user found for pusher email", "email", pusherEmail)
	}

	return nil, nil
}

// RepositoryResolver finds or creates the repository that owns ingested
// commits.
type RepositoryResolver struct {
	logger *slog.Logger
}

// GetOrCreate resolves a repository for the given owner. Lookup order:
// (github_id, owner), then (full_name, owner), then create from the payload.
// Runs inside the event's transaction; the unique constraints on
// (user_id, full_name) and (user_id, github_id) are the race guard, and the
// loser of a concurrent create falls back to a re-read.
func (r *RepositoryResolver) GetOrCreate(ctx context.Context, q database.Querier, user model.User, payload RepositoryPayload) (model.Repository, error) {
	if payload.ID != 0 {
		repo, err := q.GetRepositoryByUserAndGithubID(ctx, database.GetRepositoryByUserAndGithubIDParams{
			UserID:   user.ID,
			GithubID: payload.ID,
		})
		if err == nil {
			r.logger.Debug("Found existing repository by github id", "full_name", repo.FullName)
			return repo, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return model.Repository{}, err
		}
	}

	repo, err := q.GetRepositoryByUserAndFullName(ctx, database.GetRepositoryByUserAndFullNameParams{
		UserID:   user.ID,
		FullName: payload.FullName,
	})
	if err == nil {
		r.logger.Debug("Found existing repository by full name", "full_name", repo.FullName)
		return repo, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Repository{}, err
	}

	name := payload.FullName
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	defaultBranch := payload.DefaultBranch
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	repo, err = q.CreateRepository(ctx, database.CreateRepositoryParams{
		UserID:            user.ID,
		GithubID:          payload.ID,
		Name:              name,
		FullName:          payload.FullName,
		Description:       payload.Description,
		URL:               payload.HTMLURL,
		DefaultBranch:     defaultBranch,
		IsPrivate:         payload.Private,
		IsFork:            payload.Fork,
		Language:          payload.Language,
		StarsCount:        payload.StargazersCount,
		ForksCount:        payload.ForksCount,
		IsTrackingEnabled: true,
	})
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			// The violated constraint may be (user_id, github_id) rather
			// than (user_id, full_name): a repository renamed upstream
			// keeps its github id but arrives under a new full name. Try
			// the github id first so the rename does not fail the event.
			if payload.ID != 0 {
				repo, readErr := q.GetRepositoryByUserAndGithubID(ctx, database.GetRepositoryByUserAndGithubIDParams{
					UserID:   user.ID,
					GithubID: payload.ID,
				})
				if readErr == nil {
					return repo, nil
				}
				if !errors.Is(readErr, pgx.ErrNoRows) {
					return model.Repository{}, readErr
				}
			}
			return q.GetRepositoryByUserAndFullName(ctx, database.GetRepositoryByUserAndFullNameParams{
				UserID:   user.ID,
				FullName: payload.FullName,
			})
		}
		return model.Repository{}, err
	}

	r.logger.Info("Created new repository", "full_name", repo.FullName, "user_id", user.ID)
	return repo, nil
}
