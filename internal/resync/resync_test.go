// internal/resync/resync_test.go
package resync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	"github.com/KhlifiIsmail/devlog-backend/internal/database/databasetest"
	gh "github.com/KhlifiIsmail/devlog-backend/internal/github"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

func TestSyncer_UpsertRepository(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	remote := gh.RemoteRepository{
		GithubID:      12345,
		Name:          "widget",
		FullName:      "alice/widget",
		URL:           "https://github.com/alice/widget",
		DefaultBranch: "main",
		Language:      "Go",
		StarsCount:    20,
		ForksCount:    10,
	}

	t.Run("creates a new repository if it does not exist", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		syncer := &Syncer{logger: logger}

		mockQ.On("GetRepositoryByUserAndGithubID", ctx, mock.Anything).Return(model.Repository{}, pgx.ErrNoRows).Once()
		mockQ.On("GetRepositoryByUserAndFullName", ctx, mock.Anything).Return(model.Repository{}, pgx.ErrNoRows).Once()
		mockQ.On("CreateRepository", ctx, mock.MatchedBy(func(arg database.CreateRepositoryParams) bool {
			return arg.UserID == 1 && arg.GithubID == 12345 && arg.FullName == "alice/widget" && arg.IsTrackingEnabled
		})).Return(model.Repository{ID: 1, FullName: "alice/widget"}, nil).Once()

		err := syncer.upsertRepository(ctx, mockQ, 1, remote)

		assert.NoError(t, err)
		mockQ.AssertExpectations(t)
	})

	t.Run("updates an existing repository if it is found", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		syncer := &Syncer{logger: logger}

		existing := model.Repository{ID: 1, UserID: 1, GithubID: 12345, FullName: "alice/widget"}
		mockQ.On("GetRepositoryByUserAndGithubID", ctx, mock.Anything).Return(existing, nil).Once()
		mockQ.On("UpdateRepositorySyncData", ctx, mock.MatchedBy(func(arg database.UpdateRepositorySyncDataParams) bool {
			return arg.ID == 1 && arg.StarsCount == 20
		})).Return(existing, nil).Once()

		err := syncer.upsertRepository(ctx, mockQ, 1, remote)

		assert.NoError(t, err)
		mockQ.AssertExpectations(t)
		mockQ.AssertNotCalled(t, "CreateRepository", mock.Anything, mock.Anything)
	})

	t.Run("matches webhook-created repositories by full name", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		syncer := &Syncer{logger: logger}

		// Webhook deliveries can create the repository before any sync
		// runs, sometimes without a github id on file.
		existing := model.Repository{ID: 1, UserID: 1, FullName: "alice/widget"}
		mockQ.On("GetRepositoryByUserAndGithubID", ctx, mock.Anything).Return(model.Repository{}, pgx.ErrNoRows).Once()
		mockQ.On("GetRepositoryByUserAndFullName", ctx, mock.Anything).Return(existing, nil).Once()
		mockQ.On("UpdateRepositorySyncData", ctx, mock.Anything).Return(existing, nil).Once()

		err := syncer.upsertRepository(ctx, mockQ, 1, remote)

		assert.NoError(t, err)
		mockQ.AssertNotCalled(t, "CreateRepository", mock.Anything, mock.Anything)
	})

	t.Run("returns an error if database lookup fails unexpectedly", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		syncer := &Syncer{logger: logger}
		dbError := errors.New("unexpected database error")

		mockQ.On("GetRepositoryByUserAndGithubID", ctx, mock.Anything).Return(model.Repository{}, dbError).Once()

		err := syncer.upsertRepository(ctx, mockQ, 1, remote)

		assert.Error(t, err)
		mockQ.AssertNotCalled(t, "CreateRepository", mock.Anything, mock.Anything)
		mockQ.AssertNotCalled(t, "UpdateRepositorySyncData", mock.Anything, mock.Anything)
	})
}

func TestSplitFullName(t *testing.T) {
	owner, name := splitFullName("alice/widget")
	assert.Equal(t, "alice", owner)
	assert.Equal(t, "widget", name)

	owner, name = splitFullName("widget")
	assert.Equal(t, "", owner)
	assert.Equal(t, "widget", name)
}
