// internal/dispatch/dispatcher_test.go
package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	"github.com/KhlifiIsmail/devlog-backend/internal/database/databasetest"
	apperrors "github.com/KhlifiIsmail/devlog-backend/internal/errors"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
	"github.com/KhlifiIsmail/devlog-backend/internal/webhook"
)

func testDispatcher(cfg Config) *Dispatcher {
	return New(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

// stubProcessor fails every event with a fixed error.
type stubProcessor struct {
	err   error
	calls int
}

func (s *stubProcessor) ProcessEvent(ctx context.Context, eventID int64) (webhook.Result, error) {
	s.calls++
	return webhook.Result{}, s.err
}

func mockedDispatcher(q database.Querier, procErr error) (*Dispatcher, *stubProcessor) {
	proc := &stubProcessor{err: procErr}
	d := &Dispatcher{
		q:      q,
		proc:   proc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg: Config{
			Workers:      1,
			PollInterval: time.Second,
			MaxAttempts:  3,
			BaseDelay:    time.Minute,
			MaxDelay:     10 * time.Minute,
			SoftLimit:    2 * time.Minute,
		},
	}
	return d, proc
}

func TestNewAppliesDefaults(t *testing.T) {
	d := testDispatcher(Config{})

	assert.Equal(t, 1, d.cfg.Workers)
	assert.Equal(t, 2*time.Second, d.cfg.PollInterval)
	assert.Equal(t, int32(3), d.cfg.MaxAttempts)
	assert.Equal(t, time.Minute, d.cfg.BaseDelay)
	assert.Equal(t, 10*time.Minute, d.cfg.MaxDelay)
	assert.Equal(t, 2*time.Minute, d.cfg.SoftLimit)
}

func TestProcessOutcomes(t *testing.T) {
	event := model.WebhookEvent{ID: 42, Attempts: 1}

	t.Run("success leaves the event alone", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		d, proc := mockedDispatcher(mockDB, nil)

		d.process(context.Background(), event)

		assert.Equal(t, 1, proc.calls)
		mockDB.AssertNotCalled(t, "ScheduleWebhookEventRetry", mock.Anything, mock.Anything)
		mockDB.AssertNotCalled(t, "MarkWebhookEventFailed", mock.Anything, mock.Anything)
	})

	t.Run("terminal failure burns the attempt budget", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		d, _ := mockedDispatcher(mockDB, &apperrors.ValidationError{Reason: "malformed payload"})

		mockDB.On("ScheduleWebhookEventRetry", mock.Anything, mock.MatchedBy(func(p database.ScheduleWebhookEventRetryParams) bool {
			return p.ID == event.ID && p.Attempts == d.cfg.MaxAttempts && !p.NextAttemptAt.After(time.Now())
		})).Return(nil).Once()

		d.process(context.Background(), event)

		mockDB.AssertExpectations(t)
		mockDB.AssertNotCalled(t, "MarkWebhookEventFailed", mock.Anything, mock.Anything)
	})

	t.Run("transient failure reschedules with backoff", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		d, _ := mockedDispatcher(mockDB, errors.New("connection reset"))

		mockDB.On("ScheduleWebhookEventRetry", mock.Anything, mock.MatchedBy(func(p database.ScheduleWebhookEventRetryParams) bool {
			return p.ID == event.ID && p.Attempts == event.Attempts && p.NextAttemptAt.After(time.Now())
		})).Return(nil).Once()

		d.process(context.Background(), event)

		mockDB.AssertExpectations(t)
		mockDB.AssertNotCalled(t, "MarkWebhookEventFailed", mock.Anything, mock.Anything)
	})

	t.Run("transient failure on the last attempt is permanent", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		d, _ := mockedDispatcher(mockDB, errors.New("connection reset"))

		exhausted := model.WebhookEvent{ID: 42, Attempts: d.cfg.MaxAttempts}
		mockDB.On("MarkWebhookEventFailed", mock.Anything, mock.MatchedBy(func(p database.MarkWebhookEventFailedParams) bool {
			return p.ID == exhausted.ID && strings.HasPrefix(p.ErrorMessage, "max retries exceeded: ")
		})).Return(nil).Once()

		d.process(context.Background(), exhausted)

		mockDB.AssertExpectations(t)
		mockDB.AssertNotCalled(t, "ScheduleWebhookEventRetry", mock.Anything, mock.Anything)
	})
}

func TestRetryDelay(t *testing.T) {
	d := testDispatcher(Config{
		BaseDelay: time.Minute,
		MaxDelay:  10 * time.Minute,
	})

	// Jitter makes the delay nondeterministic; assert the envelope instead
	// of exact values. With a randomization factor of 0.5 each step lands
	// within +-50% of the exponential curve.
	t.Run("first retry is near the base delay", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			delay := d.retryDelay(1)
			assert.GreaterOrEqual(t, delay, 30*time.Second)
			assert.LessOrEqual(t, delay, 90*time.Second)
		}
	})

	t.Run("second retry roughly doubles", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			delay := d.retryDelay(2)
			assert.GreaterOrEqual(t, delay, time.Minute)
			assert.LessOrEqual(t, delay, 3*time.Minute)
		}
	})

	t.Run("delay never exceeds the cap with jitter headroom", func(t *testing.T) {
		for attempt := int32(1); attempt <= 10; attempt++ {
			delay := d.retryDelay(attempt)
			assert.LessOrEqual(t, delay, 15*time.Minute)
			assert.Greater(t, delay, time.Duration(0))
		}
	})
}
