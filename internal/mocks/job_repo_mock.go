package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"gorm.io/datatypes"
)

type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobRepoMock) Get(ctx context.Context, id uint) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) List(ctx context.Context, queue string, status config.JobStatus, limit int) ([]models.Job, error) {
	args := m.Called(ctx, queue, status, limit)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) Counts(ctx context.Context, queue string, now time.Time) (*dto.QueueCounts, error) {
	args := m.Called(ctx, queue, now)

	counts, _ := args.Get(0).(*dto.QueueCounts)
	return counts, args.Error(1)
}

func (m *JobRepoMock) SetPaused(ctx context.Context, queue string, paused bool) error {
	args := m.Called(ctx, queue, paused)
	return args.Error(0)
}

// QueueStoreMock implements queue.Store.
type QueueStoreMock struct {
	mock.Mock
}

func (m *QueueStoreMock) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *QueueStoreMock) AcquireNext(ctx context.Context, queue, workerID string, now time.Time) (*models.Job, error) {
	args := m.Called(ctx, queue, workerID, now)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *QueueStoreMock) MarkCompleted(ctx context.Context, id uint, result datatypes.JSON, now time.Time) error {
	args := m.Called(ctx, id, result, now)
	return args.Error(0)
}

func (m *QueueStoreMock) RetryLater(ctx context.Context, id uint, availableAt time.Time, errMsg string) error {
	args := m.Called(ctx, id, availableAt, errMsg)
	return args.Error(0)
}

func (m *QueueStoreMock) Postpone(ctx context.Context, id uint, availableAt time.Time, errMsg string) error {
	args := m.Called(ctx, id, availableAt, errMsg)
	return args.Error(0)
}

func (m *QueueStoreMock) MarkFailed(ctx context.Context, id uint, errMsg string, now time.Time) error {
	args := m.Called(ctx, id, errMsg, now)
	return args.Error(0)
}

func (m *QueueStoreMock) UpdateProgress(ctx context.Context, id uint, progress int) error {
	args := m.Called(ctx, id, progress)
	return args.Error(0)
}

func (m *QueueStoreMock) IsPaused(ctx context.Context, queue string) (bool, error) {
	args := m.Called(ctx, queue)
	return args.Bool(0), args.Error(1)
}

func (m *QueueStoreMock) ListStuckJobs(ctx context.Context, lockedBefore time.Time) ([]models.Job, error) {
	args := m.Called(ctx, lockedBefore)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *QueueStoreMock) Release(ctx context.Context, id uint, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

type StaleExecutionsMock struct {
	mock.Mock
}

func (m *StaleExecutionsMock) ListStaleExecutions(ctx context.Context, before time.Time) ([]models.AutomationExecution, error) {
	args := m.Called(ctx, before)

	execs, _ := args.Get(0).([]models.AutomationExecution)
	return execs, args.Error(1)
}
