// internal/database/databasetest/mock.go
//
// Package databasetest provides a testify mock of database.Querier shared
// by the service unit tests.
package databasetest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/KhlifiIsmail/devlog-backend/internal/database"
	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

// MockQuerier is a mock of the database.Querier interface.
type MockQuerier struct {
	mock.Mock
}

var _ database.Querier = (*MockQuerier)(nil)

func (m *MockQuerier) CreateWebhookEvent(ctx context.Context, arg database.CreateWebhookEventParams) (model.WebhookEvent, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.WebhookEvent), args.Error(1)
}

func (m *MockQuerier) GetWebhookEvent(ctx context.Context, id int64) (model.WebhookEvent, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.WebhookEvent), args.Error(1)
}

func (m *MockQuerier) GetWebhookEventByDeliveryID(ctx context.Context, deliveryID string) (model.WebhookEvent, error) {
	args := m.Called(ctx, deliveryID)
	return args.Get(0).(model.WebhookEvent), args.Error(1)
}

func (m *MockQuerier) ListWebhookEvents(ctx context.Context, limit int32) ([]model.WebhookEvent, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]model.WebhookEvent), args.Error(1)
}

func (m *MockQuerier) MarkWebhookEventProcessing(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuerier) MarkWebhookEventCompleted(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuerier) MarkWebhookEventFailed(ctx context.Context, arg database.MarkWebhookEventFailedParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *MockQuerier) SetWebhookEventUser(ctx context.Context, arg database.SetWebhookEventUserParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *MockQuerier) FetchDueWebhookEvents(ctx context.Context, arg database.FetchDueWebhookEventsParams) ([]model.WebhookEvent, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]model.WebhookEvent), args.Error(1)
}

func (m *MockQuerier) ScheduleWebhookEventRetry(ctx context.Context, arg database.ScheduleWebhookEventRetryParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *MockQuerier) CreateUser(ctx context.Context, arg database.CreateUserParams) (model.User, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockQuerier) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockQuerier) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockQuerier) CreateRepository(ctx context.Context, arg database.CreateRepositoryParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) GetRepository(ctx context.Context, id int64) (model.Repository, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) GetRepositoryByGithubID(ctx context.Context, githubID int64) (model.Repository, error) {
	args := m.Called(ctx, githubID)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) GetRepositoryByUserAndGithubID(ctx context.Context, arg database.GetRepositoryByUserAndGithubIDParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) GetRepositoryByUserAndFullName(ctx context.Context, arg database.GetRepositoryByUserAndFullNameParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) ListRepositoriesByUser(ctx context.Context, userID int64) ([]model.Repository, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Repository), args.Error(1)
}

func (m *MockQuerier) UpdateRepositorySyncData(ctx context.Context, arg database.UpdateRepositorySyncDataParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) SetRepositoryTracking(ctx context.Context, arg database.SetRepositoryTrackingParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) AcquireRepositoryLock(ctx context.Context, repositoryID int64) error {
	args := m.Called(ctx, repositoryID)
	return args.Error(0)
}

func (m *MockQuerier) CreateCommit(ctx context.Context, arg database.CreateCommitParams) (model.Commit, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Commit), args.Error(1)
}

func (m *MockQuerier) GetCommit(ctx context.Context, id int64) (model.Commit, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Commit), args.Error(1)
}

func (m *MockQuerier) CommitExists(ctx context.Context, sha string) (bool, error) {
	args := m.Called(ctx, sha)
	return args.Bool(0), args.Error(1)
}

func (m *MockQuerier) ListCommitsByRepository(ctx context.Context, repositoryID int64) ([]model.Commit, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).([]model.Commit), args.Error(1)
}

func (m *MockQuerier) ListCommitsBySession(ctx context.Context, sessionID int64) ([]model.Commit, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]model.Commit), args.Error(1)
}

func (m *MockQuerier) ListUngroupedCommitsByRepository(ctx context.Context, arg database.ListUngroupedCommitsByRepositoryParams) ([]model.Commit, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]model.Commit), args.Error(1)
}

func (m *MockQuerier) ListUngroupedCommitsByUser(ctx context.Context, userID int64) ([]model.Commit, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Commit), args.Error(1)
}

func (m *MockQuerier) AssignCommitSession(ctx context.Context, arg database.AssignCommitSessionParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuerier) UpdateCommitStats(ctx context.Context, arg database.UpdateCommitStatsParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *MockQuerier) CreateCodingSession(ctx context.Context, arg database.CreateCodingSessionParams) (model.CodingSession, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.CodingSession), args.Error(1)
}

func (m *MockQuerier) GetCodingSession(ctx context.Context, id int64) (model.CodingSession, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.CodingSession), args.Error(1)
}

func (m *MockQuerier) ListCodingSessionsByUser(ctx context.Context, arg database.ListCodingSessionsByUserParams) ([]model.CodingSession, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]model.CodingSession), args.Error(1)
}

func (m *MockQuerier) DeleteCodingSession(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuerier) UpdateCodingSessionStats(ctx context.Context, arg database.UpdateCodingSessionStatsParams) (model.CodingSession, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.CodingSession), args.Error(1)
}

func (m *MockQuerier) SetCodingSessionSummary(ctx context.Context, arg database.SetCodingSessionSummaryParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
