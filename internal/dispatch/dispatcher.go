// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
	"github.com/KhlifiIsmail/devlog-backend/internal/webhook"
)

// EventProcessor is the handler a claimed event is dispatched to.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, eventID int64) (webhook.Result, error)
}

// Config tunes the dispatcher's polling, retry, and timeout behavior.
type Config struct {
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int32
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	SoftLimit    time.Duration
}

// Dispatcher is an at-least-once task runner over the webhook_events table.
// Events double as the durable queue: workers claim due rows with
// FOR UPDATE SKIP LOCKED, invoke the processor under a soft time limit, and
// reschedule transient failures with exponential backoff and jitter until
// the attempt budget is exhausted.
type Dispatcher struct {
	pool   *pgxpool.Pool
	q      database.Querier
	proc   EventProcessor
	logger *slog.Logger
	cfg    Config
}

// New creates a Dispatcher.
func New(pool *pgxpool.Pool, proc EventProcessor, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Minute
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Minute
	}
	if cfg.SoftLimit <= 0 {
		cfg.SoftLimit = 2 * time.Minute
	}
	return &Dispatcher{pool: pool, q: database.New(pool), proc: proc, logger: logger, cfg: cfg}
}

// Run starts the worker pool and blocks until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Starting dispatcher", "workers", d.cfg.Workers, "poll_interval", d.cfg.PollInterval.String())

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < d.cfg.Workers; w++ {
		g.Go(func() error {
			d.workerLoop(gctx)
			return nil
		})
	}
	err := g.Wait()
	d.logger.Info("Dispatcher shut down", "reason", ctx.Err())
	return err
}

func (d *Dispatcher) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Drain everything currently due before sleeping again.
		for {
			n, err := d.dispatchOnce(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					d.logger.Error("Dispatch pass failed", "error", err)
				}
				break
			}
			if n == 0 {
				break
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// dispatchOnce claims at most one due event and processes it, returning the
// number of events handled.
func (d *Dispatcher) dispatchOnce(ctx context.Context) (int, error) {
	event, claimed, err := d.claim(ctx)
	if err != nil || !claimed {
		return 0, err
	}

	d.process(ctx, event)
	return 1, nil
}

// claim pulls one due event and charges an attempt to it, inside its own
// transaction so concurrent workers skip each other's rows.
func (d *Dispatcher) claim(ctx context.Context) (model.WebhookEvent, bool, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return model.WebhookEvent{}, false, err
	}
	defer tx.Rollback(ctx)

	q := database.New(tx)
	events, err := q.FetchDueWebhookEvents(ctx, database.FetchDueWebhookEventsParams{
		MaxAttempts: d.cfg.MaxAttempts,
		Limit:       1,
	})
	if err != nil {
		return model.WebhookEvent{}, false, err
	}
	if len(events) == 0 {
		return model.WebhookEvent{}, false, nil
	}

	event := events[0]
	event.Attempts++
	// Push next_attempt_at out past the soft limit so a crashed worker's
	// claim expires instead of wedging the event.
	if err := q.ScheduleWebhookEventRetry(ctx, database.ScheduleWebhookEventRetryParams{
		ID:            event.ID,
		Attempts:      event.Attempts,
		NextAttemptAt: time.Now().Add(d.cfg.SoftLimit + d.retryDelay(event.Attempts)),
	}); err != nil {
		return model.WebhookEvent{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.WebhookEvent{}, false, err
	}
	return event, true, nil
}

func (d *Dispatcher) process(ctx context.Context, event model.WebhookEvent) {
	logger := d.logger.With("event_id", event.ID, "attempt", event.Attempts)

	runCtx, cancel := context.WithTimeout(ctx, d.cfg.SoftLimit)
	defer cancel()

	_, err := d.proc.ProcessEvent(runCtx, event.ID)
	if err == nil {
		return
	}

	bookCtx := context.WithoutCancel(ctx)

	switch {
	case webhook.IsTerminal(err):
		// Already marked failed by the processor; retrying cannot help.
		logger.Warn("Event failed terminally", "error", err)
		d.exhaust(bookCtx, event.ID)
	case event.Attempts >= d.cfg.MaxAttempts:
		logger.Error("Event failed permanently, retries exhausted", "error", err)
		if markErr := d.q.MarkWebhookEventFailed(bookCtx, database.MarkWebhookEventFailedParams{
			ID:           event.ID,
			ErrorMessage: "max retries exceeded: " + err.Error(),
		}); markErr != nil {
			logger.Error("Failed to record permanent failure", "error", markErr)
		}
	default:
		delay := d.retryDelay(event.Attempts)
		logger.Warn("Event failed, scheduling retry", "error", err, "delay", delay.String())
		if schedErr := d.q.ScheduleWebhookEventRetry(bookCtx, database.ScheduleWebhookEventRetryParams{
			ID:            event.ID,
			Attempts:      event.Attempts,
			NextAttemptAt: time.Now().Add(delay),
		}); schedErr != nil {
			logger.Error("Failed to schedule retry", "error", schedErr)
		}
	}
}

// exhaust burns the remaining attempt budget so a terminally failed event
// is never claimed again.
func (d *Dispatcher) exhaust(ctx context.Context, eventID int64) {
	if err := d.q.ScheduleWebhookEventRetry(ctx, database.ScheduleWebhookEventRetryParams{
		ID:            eventID,
		Attempts:      d.cfg.MaxAttempts,
		NextAttemptAt: time.Now(),
	}); err != nil {
		d.logger.Error("Failed to finalize terminal event", "event_id", eventID, "error", err)
	}
}

// retryDelay computes the backoff before the given attempt number is
// retried: exponential growth from BaseDelay capped at MaxDelay, with
// jitter so concurrent failures spread out.
func (d *Dispatcher) retryDelay(attempt int32) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.BaseDelay
	b.MaxInterval = d.cfg.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := int32(1); i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
