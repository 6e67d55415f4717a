// internal/database/db.go
package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so the same queries run
// either on the pool or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the concrete query layer over a DBTX.
type Queries struct {
	db DBTX
}

// New creates a Queries instance bound to the given pool or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Querier is the full query surface. Services depend on this interface so
// unit tests can substitute a mock.
type Querier interface {
	// Webhook events
	CreateWebhookEvent(ctx context.Context, arg CreateWebhookEventParams) (model.WebhookEvent, error)
	GetWebhookEvent(ctx context.Context, id int64) (model.WebhookEvent, error)
	GetWebhookEventByDeliveryID(ctx context.Context, deliveryID string) (model.WebhookEvent, error)
	ListWebhookEvents(ctx context.Context, limit int32) ([]model.WebhookEvent, error)
	MarkWebhookEventProcessing(ctx context.Context, id int64) error
	MarkWebhookEventCompleted(ctx context.Context, id int64) error
	MarkWebhookEventFailed(ctx context.Context, arg MarkWebhookEventFailedParams) error
	SetWebhookEventUser(ctx context.Context, arg SetWebhookEventUserParams) error
	FetchDueWebhookEvents(ctx context.Context, arg FetchDueWebhookEventsParams) ([]model.WebhookEvent, error)
	ScheduleWebhookEventRetry(ctx context.Context, arg ScheduleWebhookEventRetryParams) error

	// Users
	CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)

	// Repositories
	CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error)
	GetRepository(ctx context.Context, id int64) (model.Repository, error)
	GetRepositoryByGithubID(ctx context.Context, githubID int64) (model.Repository, error)
	GetRepositoryByUserAndGithubID(ctx context.Context, arg GetRepositoryByUserAndGithubIDParams) (model.Repository, error)
	GetRepositoryByUserAndFullName(ctx context.Context, arg GetRepositoryByUserAndFullNameParams) (model.Repository, error)
	ListRepositoriesByUser(ctx context.Context, userID int64) ([]model.Repository, error)
	UpdateRepositorySyncData(ctx context.Context, arg UpdateRepositorySyncDataParams) (model.Repository, error)
	SetRepositoryTracking(ctx context.Context, arg SetRepositoryTrackingParams) (model.Repository, error)
	AcquireRepositoryLock(ctx context.Context, repositoryID int64) error

	// Commits
	CreateCommit(ctx context.Context, arg CreateCommitParams) (model.Commit, error)
	GetCommit(ctx context.Context, id int64) (model.Commit, error)
	CommitExists(ctx context.Context, sha string) (bool, error)
	ListCommitsByRepository(ctx context.Context, repositoryID int64) ([]model.Commit, error)
	ListCommitsBySession(ctx context.Context, sessionID int64) ([]model.Commit, error)
	ListUngroupedCommitsByRepository(ctx context.Context, arg ListUngroupedCommitsByRepositoryParams) ([]model.Commit, error)
	ListUngroupedCommitsByUser(ctx context.Context, userID int64) ([]model.Commit, error)
	AssignCommitSession(ctx context.Context, arg AssignCommitSessionParams) (int64, error)
	UpdateCommitStats(ctx context.Context, arg UpdateCommitStatsParams) error

	// Coding sessions
	CreateCodingSession(ctx context.Context, arg CreateCodingSessionParams) (model.CodingSession, error)
	GetCodingSession(ctx context.Context, id int64) (model.CodingSession, error)
	ListCodingSessionsByUser(ctx context.Context, arg ListCodingSessionsByUserParams) ([]model.CodingSession, error)
	DeleteCodingSession(ctx context.Context, id int64) error
	UpdateCodingSessionStats(ctx context.Context, arg UpdateCodingSessionStatsParams) (model.CodingSession, error)
	SetCodingSessionSummary(ctx context.Context, arg SetCodingSessionSummaryParams) error
}

var _ Querier = (*Queries)(nil)

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, optionally matching a specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
