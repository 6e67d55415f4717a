// internal/webhook/processor.go
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	apperrors "github.com/KhlifiIsmail/devlog-backend/internal/errors"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
	"github.com/KhlifiIsmail/devlog-backend/internal/session"
)

// Result reports the effects of processing one push event.
type Result struct {
	CommitsCreated  int    `json:"commits_created"`
	SessionsCreated int    `json:"sessions_created"`
	Repository      string `json:"repository,omitempty"`
	UserID          int64  `json:"user_id,omitempty"`
}

// Processor orchestrates push-event processing: resolve the owner, resolve
// or create the repository, ingest commits, and group sessions, all inside
// one transaction. Event-status bookkeeping happens outside the transaction
// so the outcome is recorded even when the domain work rolls back.
type Processor struct {
	pool     *pgxpool.Pool
	grouper  *session.Grouper
	logger   *slog.Logger
	window   time.Duration
	users    UserResolver
	repos    RepositoryResolver
	ingestor CommitIngestor
	now      func() time.Time
}

// NewProcessor creates a Processor. window bounds the recent-commits
// candidate set for per-webhook session grouping.
func NewProcessor(pool *pgxpool.Pool, grouper *session.Grouper, logger *slog.Logger, window time.Duration) *Processor {
	return &Processor{
		pool:     pool,
		grouper:  grouper,
		logger:   logger,
		window:   window,
		users:    UserResolver{logger: logger},
		repos:    RepositoryResolver{logger: logger},
		ingestor: CommitIngestor{logger: logger, now: time.Now},
		now:      time.Now,
	}
}

// IsTerminal reports whether err is a processing failure that retrying
// cannot repair (malformed payload, unresolvable owner). Terminal failures
// are recorded on the event and must not be redelivered.
func IsTerminal(err error) bool {
	var validationErr *apperrors.ValidationError
	var resolutionErr *apperrors.UserResolutionError
	return errors.As(err, &validationErr) || errors.As(err, &resolutionErr)
}

// ProcessEvent runs the push pipeline for a stored event. Any returned
// error has already been recorded on the event; the caller only decides
// whether to retry.
func (p *Processor) ProcessEvent(ctx context.Context, eventID int64) (Result, error) {
	logger := p.logger.With("event_id", eventID)
	q := database.New(p.pool)

	event, err := q.GetWebhookEvent(ctx, eventID)
	if err != nil {
		return Result{}, fmt.Errorf("load webhook event %d: %w", eventID, err)
	}
	if event.Status == model.EventStatusCompleted {
		logger.Info("Event already completed, skipping redelivery")
		return Result{}, nil
	}

	logger.Info("Processing push event", "delivery_id", event.DeliveryID)
	if err := q.MarkWebhookEventProcessing(ctx, event.ID); err != nil {
		return Result{}, fmt.Errorf("mark event processing: %w", err)
	}

	result, err := p.runInTransaction(ctx, event)
	if err != nil {
		// The bookkeeping write must land even when ctx is past its
		// deadline, otherwise the event would be stuck in "processing".
		bookCtx := context.WithoutCancel(ctx)
		if markErr := q.MarkWebhookEventFailed(bookCtx, database.MarkWebhookEventFailedParams{
			ID:           event.ID,
			ErrorMessage: err.Error(),
		}); markErr != nil {
			logger.Error("Failed to record event failure", "error", markErr)
		}
		logger.Error("Error processing push event", "error", err)
		return Result{}, err
	}

	if err := q.MarkWebhookEventCompleted(ctx, event.ID); err != nil {
		return Result{}, fmt.Errorf("mark event completed: %w", err)
	}

	logger.Info("Push event processed",
		"commits_created", result.CommitsCreated,
		"sessions_created", result.SessionsCreated,
		"repository", result.Repository)
	return result, nil
}

// runInTransaction wraps the domain work in a single transaction: either
// the entire push event's effects land or none do.
func (p *Processor) runInTransaction(ctx context.Context, event model.WebhookEvent) (Result, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback(ctx) // No-op once committed.

	result, err := p.processPush(ctx, database.New(tx), event)
	if err != nil {
		return Result{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return result, nil
}

// processPush is the push pipeline over one transaction's query handle.
func (p *Processor) processPush(ctx context.Context, q database.Querier, event model.WebhookEvent) (Result, error) {
	var payload PushPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return Result{}, &apperrors.ValidationError{Reason: "malformed payload: " + err.Error()}
	}
	if payload.Repository.FullName == "" {
		return Result{}, &apperrors.ValidationError{Reason: "missing repository full_name in payload"}
	}

	if len(payload.Commits) == 0 {
		// Branch deletions and tag pushes arrive with an empty commit list.
		p.logger.Info("No commits in push event, skipping", "event_id", event.ID)
		return Result{Repository: payload.Repository.FullName}, nil
	}

	user, err := p.users.Resolve(ctx, q, payload.Pusher.Email, payload.Repository.ID)
	if err != nil {
		return Result{}, err
	}
	if user == nil {
		return Result{}, &apperrors.UserResolutionError{
			PusherEmail:  payload.Pusher.Email,
			GithubRepoID: payload.Repository.ID,
		}
	}

	repo, err := p.repos.GetOrCreate(ctx, q, *user, payload.Repository)
	if err != nil {
		return Result{}, err
	}

	if err := q.SetWebhookEventUser(ctx, database.SetWebhookEventUserParams{
		ID:     event.ID,
		UserID: user.ID,
	}); err != nil {
		return Result{}, err
	}

	if !repo.IsTrackingEnabled {
		p.logger.Info("Tracking disabled for repository, skipping commits",
			"event_id", event.ID, "repository", repo.FullName)
		return Result{Repository: repo.FullName, UserID: user.ID}, nil
	}

	commitsCreated, err := p.ingestor.Ingest(ctx, q, repo, payload.Commits, payload.Branch())
	if err != nil {
		return Result{}, err
	}

	since := p.now().Add(-p.window)
	sessionsCreated, err := p.grouper.GroupRepositoryCommits(ctx, q, user.ID, repo.ID, since)
	if err != nil {
		return Result{}, err
	}

	return Result{
		CommitsCreated:  commitsCreated,
		SessionsCreated: sessionsCreated,
		Repository:      repo.FullName,
		UserID:          user.ID,
	}, nil
}
