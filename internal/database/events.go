// internal/database/events.go
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/KhlifiIsmail/devlog-backend/internal/errors"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

const webhookEventColumns = `id, event_type, repository_full_name, delivery_id, payload, status,
	error_message, user_id, attempts, next_attempt_at, created_at, updated_at, processed_at`

func scanWebhookEvent(row pgx.Row) (model.WebhookEvent, error) {
	var e model.WebhookEvent
	err := row.Scan(
		&e.ID, &e.EventType, &e.RepositoryFullName, &e.DeliveryID, &e.Payload, &e.Status,
		&e.ErrorMessage, &e.UserID, &e.Attempts, &e.NextAttemptAt, &e.CreatedAt, &e.UpdatedAt, &e.ProcessedAt,
	)
	return e, err
}

type CreateWebhookEventParams struct {
	EventType          string
	RepositoryFullName string
	DeliveryID         string
	Payload            []byte
	Status             string // defaults to pending
}

// CreateWebhookEvent inserts an event, pending unless another status is
// given. Inserting directly as completed lets unprocessable event types skip
// the queue without ever being claimable. The unique constraint on
// delivery_id is the idempotency guard at the ingestion boundary; a
// collision surfaces as DuplicateDeliveryError.
func (q *Queries) CreateWebhookEvent(ctx context.Context, arg CreateWebhookEventParams) (model.WebhookEvent, error) {
	status := arg.Status
	if status == "" {
		status = model.EventStatusPending
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO webhook_events (event_type, repository_full_name, delivery_id, payload, status, processed_at)
		VALUES ($1, $2, $3, $4, $5, CASE WHEN $5 = $6 THEN now() END)
		RETURNING `+webhookEventColumns,
		arg.EventType, arg.RepositoryFullName, arg.DeliveryID, arg.Payload, status, model.EventStatusCompleted,
	)
	e, err := scanWebhookEvent(row)
	if err != nil {
		if IsUniqueViolation(err, "webhook_events_delivery_id_key") {
			return model.WebhookEvent{}, &apperrors.DuplicateDeliveryError{DeliveryID: arg.DeliveryID}
		}
		return model.WebhookEvent{}, err
	}
	return e, nil
}

func (q *Queries) GetWebhookEvent(ctx context.Context, id int64) (model.WebhookEvent, error) {
	row := q.db.QueryRow(ctx, `SELECT `+webhookEventColumns+` FROM webhook_events WHERE id = $1`, id)
	return scanWebhookEvent(row)
}

func (q *Queries) GetWebhookEventByDeliveryID(ctx context.Context, deliveryID string) (model.WebhookEvent, error) {
	row := q.db.QueryRow(ctx, `SELECT `+webhookEventColumns+` FROM webhook_events WHERE delivery_id = $1`, deliveryID)
	return scanWebhookEvent(row)
}

func (q *Queries) ListWebhookEvents(ctx context.Context, limit int32) ([]model.WebhookEvent, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+webhookEventColumns+` FROM webhook_events
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.WebhookEvent
	for rows.Next() {
		e, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (q *Queries) MarkWebhookEventProcessing(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE webhook_events SET status = $2, updated_at = now()
		WHERE id = $1`, id, model.EventStatusProcessing)
	return err
}

func (q *Queries) MarkWebhookEventCompleted(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE webhook_events SET status = $2, processed_at = now(), updated_at = now()
		WHERE id = $1`, id, model.EventStatusCompleted)
	return err
}

type MarkWebhookEventFailedParams struct {
	ID           int64
	ErrorMessage string
}

// MarkWebhookEventFailed is safe to call from any state and overwrites
// error_message with the latest cause.
func (q *Queries) MarkWebhookEventFailed(ctx context.Context, arg MarkWebhookEventFailedParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE webhook_events SET status = $2, error_message = $3, processed_at = now(), updated_at = now()
		WHERE id = $1`, arg.ID, model.EventStatusFailed, arg.ErrorMessage)
	return err
}

type SetWebhookEventUserParams struct {
	ID     int64
	UserID int64
}

func (q *Queries) SetWebhookEventUser(ctx context.Context, arg SetWebhookEventUserParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE webhook_events SET user_id = $2, updated_at = now()
		WHERE id = $1`, arg.ID, arg.UserID)
	return err
}

type FetchDueWebhookEventsParams struct {
	MaxAttempts int32
	Limit       int32
}

// FetchDueWebhookEvents claims retryable events for processing. SKIP LOCKED
// lets concurrent workers pull from the same table without contention; must
// run inside a transaction. Events stuck in "processing" become due again
// once their lease (next_attempt_at) expires, so a crashed worker cannot
// wedge them.
func (q *Queries) FetchDueWebhookEvents(ctx context.Context, arg FetchDueWebhookEventsParams) ([]model.WebhookEvent, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+webhookEventColumns+` FROM webhook_events
		WHERE status IN ($1, $2, $3)
		  AND attempts < $4
		  AND next_attempt_at <= now()
		ORDER BY next_attempt_at
		LIMIT $5
		FOR UPDATE SKIP LOCKED`,
		model.EventStatusPending, model.EventStatusProcessing, model.EventStatusFailed, arg.MaxAttempts, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.WebhookEvent
	for rows.Next() {
		e, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type ScheduleWebhookEventRetryParams struct {
	ID            int64
	Attempts      int32
	NextAttemptAt time.Time
}

func (q *Queries) ScheduleWebhookEventRetry(ctx context.Context, arg ScheduleWebhookEventRetryParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE webhook_events SET attempts = $2, next_attempt_at = $3, updated_at = now()
		WHERE id = $1`, arg.ID, arg.Attempts, arg.NextAttemptAt)
	return err
}
