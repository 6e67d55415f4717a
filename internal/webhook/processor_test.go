// internal/webhook/processor_test.go
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	"github.com/KhlifiIsmail/devlog-backend/internal/database/databasetest"
	apperrors "github.com/KhlifiIsmail/devlog-backend/internal/errors"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
	"github.com/KhlifiIsmail/devlog-backend/internal/session"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testProcessor() *Processor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Processor{
		grouper:  session.NewGrouper(30*time.Minute, logger),
		logger:   logger,
		window:   7 * 24 * time.Hour,
		users:    UserResolver{logger: logger},
		repos:    RepositoryResolver{logger: logger},
		ingestor: CommitIngestor{logger: logger, now: func() time.Time { return fixedNow }},
		now:      func() time.Time { return fixedNow },
	}
}

func pushEvent(t *testing.T, payload map[string]any) model.WebhookEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return model.WebhookEvent{
		ID:         1,
		EventType:  model.EventTypePush,
		DeliveryID: "d-1",
		Payload:    raw,
		Status:     model.EventStatusPending,
	}
}

func TestProcessPush(t *testing.T) {
	ctx := context.Background()

	t.Run("push with two commits to a new repository", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		event := pushEvent(t, map[string]any{
			"ref": "refs/heads/main",
			"repository": map[string]any{
				"id": 555, "name": "widget", "full_name": "alice/widget",
				"html_url": "https://github.com/alice/widget", "default_branch": "main",
			},
			"pusher": map[string]any{"name": "alice", "email": "alice@example.com"},
			"commits": []map[string]any{
				{
					"id": "aaa111", "message": "Add handler", "timestamp": "2025-06-01T10:00:00Z",
					"author":   map[string]any{"name": "alice", "email": "alice@example.com"},
					"modified": []string{"internal/server/handler.go"},
				},
				{
					"id": "bbb222", "message": "Fix handler test", "timestamp": "2025-06-01T10:10:00Z",
					"author":   map[string]any{"name": "alice", "email": "alice@example.com"},
					"modified": []string{"internal/server/handler_test.go"},
				},
			},
		})

		user := model.User{ID: 1, Username: "alice", Email: "alice@example.com"}
		repo := model.Repository{ID: 10, UserID: 1, GithubID: 555, FullName: "alice/widget", IsTrackingEnabled: true}

		// Owner resolution: unknown repo id, then pusher email match.
		mockDB.On("GetRepositoryByGithubID", ctx, int64(555)).Return(model.Repository{}, pgx.ErrNoRows)
		mockDB.On("GetUserByEmail", ctx, "alice@example.com").Return(user, nil)

		// Repository resolution: nothing on file, created from the payload.
		mockDB.On("GetRepositoryByUserAndGithubID", ctx, database.GetRepositoryByUserAndGithubIDParams{
			UserID: 1, GithubID: 555,
		}).Return(model.Repository{}, pgx.ErrNoRows)
		mockDB.On("GetRepositoryByUserAndFullName", ctx, database.GetRepositoryByUserAndFullNameParams{
			UserID: 1, FullName: "alice/widget",
		}).Return(model.Repository{}, pgx.ErrNoRows)
		mockDB.On("CreateRepository", ctx, mock.MatchedBy(func(arg database.CreateRepositoryParams) bool {
			return arg.FullName == "alice/widget" && arg.Name == "widget" && arg.IsTrackingEnabled
		})).Return(repo, nil)

		mockDB.On("SetWebhookEventUser", ctx, database.SetWebhookEventUserParams{ID: 1, UserID: 1}).Return(nil)

		mockDB.On("CommitExists", ctx, "aaa111").Return(false, nil)
		mockDB.On("CommitExists", ctx, "bbb222").Return(false, nil)
		mockDB.On("CreateCommit", ctx, mock.MatchedBy(func(arg database.CreateCommitParams) bool {
			return arg.Branch == "main" && arg.RepositoryID == 10
		})).Return(model.Commit{}, nil).Times(2)

		ingested := []model.Commit{
			{ID: 100, RepositoryID: 10, CommittedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
			{ID: 101, RepositoryID: 10, CommittedAt: time.Date(2025, 6, 1, 10, 10, 0, 0, time.UTC)},
		}
		mockDB.On("AcquireRepositoryLock", ctx, int64(10)).Return(nil)
		mockDB.On("ListUngroupedCommitsByRepository", ctx, database.ListUngroupedCommitsByRepositoryParams{
			RepositoryID: 10,
			Since:        fixedNow.Add(-7 * 24 * time.Hour),
		}).Return(ingested, nil)
		mockDB.On("CreateCodingSession", ctx, mock.Anything).Return(model.CodingSession{ID: 50, UserID: 1}, nil).Once()
		mockDB.On("AssignCommitSession", ctx, mock.Anything).Return(int64(1), nil).Times(2)
		mockDB.On("UpdateCodingSessionStats", ctx, mock.Anything).Return(model.CodingSession{ID: 50}, nil).Once()

		result, err := testProcessor().processPush(ctx, mockDB, event)

		require.NoError(t, err)
		assert.Equal(t, 2, result.CommitsCreated)
		assert.Equal(t, 1, result.SessionsCreated)
		assert.Equal(t, "alice/widget", result.Repository)
		assert.Equal(t, int64(1), result.UserID)
		mockDB.AssertExpectations(t)
	})

	t.Run("malformed payload fails terminally", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		event := model.WebhookEvent{ID: 1, Payload: []byte("{not json")}

		_, err := testProcessor().processPush(ctx, mockDB, event)

		var validationErr *apperrors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.True(t, IsTerminal(err))
	})

	t.Run("missing repository full_name fails terminally", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		event := pushEvent(t, map[string]any{
			"ref":     "refs/heads/main",
			"pusher":  map[string]any{"email": "alice@example.com"},
			"commits": []map[string]any{{"id": "aaa111"}},
		})

		_, err := testProcessor().processPush(ctx, mockDB, event)

		var validationErr *apperrors.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("empty commit list completes with nothing created", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		event := pushEvent(t, map[string]any{
			"ref":        "refs/tags/v1.0.0",
			"repository": map[string]any{"id": 555, "full_name": "alice/widget"},
			"pusher":     map[string]any{"email": "alice@example.com"},
			"commits":    []map[string]any{},
		})

		result, err := testProcessor().processPush(ctx, mockDB, event)

		require.NoError(t, err)
		assert.Equal(t, 0, result.CommitsCreated)
		assert.Equal(t, 0, result.SessionsCreated)
		mockDB.AssertNotCalled(t, "CreateCommit", mock.Anything, mock.Anything)
		mockDB.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
	})

	t.Run("unresolvable owner fails terminally with a descriptive error", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		event := pushEvent(t, map[string]any{
			"ref":        "refs/heads/main",
			"repository": map[string]any{"id": 555, "full_name": "ghost/widget"},
			"pusher":     map[string]any{"email": "ghost@example.com"},
			"commits":    []map[string]any{{"id": "aaa111", "timestamp": "2025-06-01T10:00:00Z"}},
		})

		mockDB.On("GetRepositoryByGithubID", ctx, int64(555)).Return(model.Repository{}, pgx.ErrNoRows)
		mockDB.On("GetUserByEmail", ctx, "ghost@example.com").Return(model.User{}, pgx.ErrNoRows)

		_, err := testProcessor().processPush(ctx, mockDB, event)

		var resolutionErr *apperrors.UserResolutionError
		require.ErrorAs(t, err, &resolutionErr)
		assert.Contains(t, err.Error(), "ghost@example.com")
		assert.True(t, IsTerminal(err))
		mockDB.AssertNotCalled(t, "CreateRepository", mock.Anything, mock.Anything)
		mockDB.AssertNotCalled(t, "CreateCommit", mock.Anything, mock.Anything)
	})

	t.Run("owner resolved from existing repository wins over email", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		event := pushEvent(t, map[string]any{
			"ref":        "refs/heads/main",
			"repository": map[string]any{"id": 555, "full_name": "alice/widget"},
			"pusher":     map[string]any{"email": "other@example.com"},
			"commits":    []map[string]any{{"id": "aaa111", "timestamp": "2025-06-01T10:00:00Z"}},
		})

		repo := model.Repository{ID: 10, UserID: 1, GithubID: 555, FullName: "alice/widget", IsTrackingEnabled: true}
		mockDB.On("GetRepositoryByGithubID", ctx, int64(555)).Return(repo, nil)
		mockDB.On("GetUserByID", ctx, int64(1)).Return(model.User{ID: 1}, nil)
		mockDB.On("GetRepositoryByUserAndGithubID", ctx, mock.Anything).Return(repo, nil)
		mockDB.On("SetWebhookEventUser", ctx, mock.Anything).Return(nil)
		mockDB.On("CommitExists", ctx, "aaa111").Return(false, nil)
		mockDB.On("CreateCommit", ctx, mock.Anything).Return(model.Commit{}, nil)
		mockDB.On("AcquireRepositoryLock", ctx, int64(10)).Return(nil)
		mockDB.On("ListUngroupedCommitsByRepository", ctx, mock.Anything).Return([]model.Commit{}, nil)

		result, err := testProcessor().processPush(ctx, mockDB, event)

		require.NoError(t, err)
		assert.Equal(t, int64(1), result.UserID)
		mockDB.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
	})

	t.Run("commits already on file are not recreated", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		event := pushEvent(t, map[string]any{
			"ref":        "refs/heads/main",
			"repository": map[string]any{"id": 555, "full_name": "alice/widget"},
			"pusher":     map[string]any{"email": "alice@example.com"},
			"commits": []map[string]any{
				{"id": "aaa111", "timestamp": "2025-06-01T10:00:00Z"},
				{"id": "bbb222", "timestamp": "2025-06-01T10:10:00Z"},
			},
		})

		repo := model.Repository{ID: 10, UserID: 1, GithubID: 555, FullName: "alice/widget", IsTrackingEnabled: true}
		mockDB.On("GetRepositoryByGithubID", ctx, int64(555)).Return(repo, nil)
		mockDB.On("GetUserByID", ctx, int64(1)).Return(model.User{ID: 1}, nil)
		mockDB.On("GetRepositoryByUserAndGithubID", ctx, mock.Anything).Return(repo, nil)
		mockDB.On("SetWebhookEventUser", ctx, mock.Anything).Return(nil)
		mockDB.On("CommitExists", ctx, "aaa111").Return(true, nil)
		mockDB.On("CommitExists", ctx, "bbb222").Return(false, nil)
		mockDB.On("CreateCommit", ctx, mock.MatchedBy(func(arg database.CreateCommitParams) bool {
			return arg.SHA == "bbb222"
		})).Return(model.Commit{}, nil).Once()
		mockDB.On("AcquireRepositoryLock", ctx, int64(10)).Return(nil)
		mockDB.On("ListUngroupedCommitsByRepository", ctx, mock.Anything).Return([]model.Commit{}, nil)

		result, err := testProcessor().processPush(ctx, mockDB, event)

		require.NoError(t, err)
		assert.Equal(t, 1, result.CommitsCreated)
		mockDB.AssertExpectations(t)
	})

	t.Run("tracking-disabled repository skips ingestion", func(t *testing.T) {
		mockDB := new(databasetest.MockQuerier)
		event := pushEvent(t, map[string]any{
			"ref":        "refs/heads/main",
			"repository": map[string]any{"id": 555, "full_name": "alice/widget"},
			"pusher":     map[string]any{"email": "alice@example.com"},
			"commits":    []map[string]any{{"id": "aaa111", "timestamp": "2025-06-01T10:00:00Z"}},
		})

		repo := model.Repository{ID: 10, UserID: 1, GithubID: 555, FullName: "alice/widget"}
		mockDB.On("GetRepositoryByGithubID", ctx, int64(555)).Return(repo, nil)
		mockDB.On("GetUserByID", ctx, int64(1)).Return(model.User{ID: 1}, nil)
		mockDB.On("GetRepositoryByUserAndGithubID", ctx, mock.Anything).Return(repo, nil)
		mockDB.On("SetWebhookEventUser", ctx, mock.Anything).Return(nil)

		result, err := testProcessor().processPush(ctx, mockDB, event)

		require.NoError(t, err)
		assert.Equal(t, 0, result.CommitsCreated)
		mockDB.AssertNotCalled(t, "CreateCommit", mock.Anything, mock.Anything)
		mockDB.AssertNotCalled(t, "AcquireRepositoryLock", mock.Anything, mock.Anything)
	})
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(&apperrors.ValidationError{Reason: "bad payload"}))
	assert.True(t, IsTerminal(&apperrors.UserResolutionError{PusherEmail: "x@example.com"}))
	assert.False(t, IsTerminal(assert.AnError))
	assert.False(t, IsTerminal(nil))
}
