package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) CreateJob(ctx context.Context, dto *dto.JobCreateDTO) (uint, error) {
	args := m.Called(ctx, dto)
	id, _ := args.Get(0).(uint)
	return id, args.Error(1)
}

func (m *JobServiceMock) GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, queue string, status config.JobStatus, limit int) ([]dto.JobResponseDTO, error) {
	args := m.Called(ctx, queue, status, limit)

	jobs, _ := args.Get(0).([]dto.JobResponseDTO)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) QueueStats(ctx context.Context, queue string) (*dto.QueueCounts, error) {
	args := m.Called(ctx, queue)

	counts, _ := args.Get(0).(*dto.QueueCounts)
	return counts, args.Error(1)
}

func (m *JobServiceMock) PauseQueue(ctx context.Context, queue string) error {
	args := m.Called(ctx, queue)
	return args.Error(0)
}

func (m *JobServiceMock) ResumeQueue(ctx context.Context, queue string) error {
	args := m.Called(ctx, queue)
	return args.Error(0)
}

// EnqueuerMock implements queue.Enqueuer.
type EnqueuerMock struct {
	mock.Mock
}

func (m *EnqueuerMock) Enqueue(ctx context.Context, queueName, jobType string, payload any, opts queue.Options) (uint, error) {
	args := m.Called(ctx, queueName, jobType, payload, opts)
	id, _ := args.Get(0).(uint)
	return id, args.Error(1)
}
