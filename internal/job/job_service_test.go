package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/webramesh/email-marketing-sub000/common"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/mocks"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"gorm.io/gorm"
)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var apiErr common.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %T", err)
	return apiErr.Status
}

func TestJobService_CreateJob(t *testing.T) {
	emailPayload := []byte(`{"tenantId":1,"message":{"to":"a@example.com","from":"news@example.com","subject":"Hi","html":"<p>Hi</p>"}}`)
	eventPayload := []byte(`{"tenantId":1,"eventType":"OPENED","eventData":{"campaignId":3,"subscriberId":4},"timestamp":"2026-01-02T03:04:05Z"}`)
	when := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		dto        *dto.JobCreateDTO
		setupMock  func(*mocks.EnqueuerMock)
		setupCtx   func() context.Context
		wantID     uint
		wantStatus int
	}{
		{
			name: "email job is enqueued with priority",
			dto: &dto.JobCreateDTO{
				Queue:    config.QueueEmail,
				Type:     config.JobTypeSendEmail,
				Payload:  emailPayload,
				Priority: 5,
			},
			setupMock: func(m *mocks.EnqueuerMock) {
				m.On("Enqueue", mock.Anything, config.QueueEmail, config.JobTypeSendEmail, mock.Anything,
					queue.Options{Priority: 5}).Return(uint(11), nil)
			},
			wantID: 11,
		},
		{
			name: "scheduled analytics job",
			dto: &dto.JobCreateDTO{
				Queue:       config.QueueAnalytics,
				Type:        config.JobTypeRecordEvent,
				Payload:     eventPayload,
				MaxAttempts: 2,
				AvailableAt: &when,
			},
			setupMock: func(m *mocks.EnqueuerMock) {
				m.On("Enqueue", mock.Anything, config.QueueAnalytics, config.JobTypeRecordEvent, mock.Anything,
					queue.Options{MaxAttempts: 2, AvailableAt: when}).Return(uint(12), nil)
			},
			wantID: 12,
		},
		{
			name:       "invalid JSON payload",
			dto:        &dto.JobCreateDTO{Queue: config.QueueEmail, Type: config.JobTypeSendEmail, Payload: []byte(`{invalid}`)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "nil payload",
			dto:        &dto.JobCreateDTO{Queue: config.QueueEmail, Type: config.JobTypeSendEmail},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown queue",
			dto:        &dto.JobCreateDTO{Queue: "payments", Type: config.JobTypeSendEmail, Payload: emailPayload},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "job type not accepted by queue",
			dto:        &dto.JobCreateDTO{Queue: config.QueueCampaign, Type: config.JobTypeSendEmail, Payload: emailPayload},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "payload fails validation",
			dto:        &dto.JobCreateDTO{Queue: config.QueueEmail, Type: config.JobTypeSendEmail, Payload: []byte(`{"tenantId":1}`)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "canceled context",
			dto:        &dto.JobCreateDTO{Queue: config.QueueEmail, Type: config.JobTypeSendEmail, Payload: emailPayload},
			wantStatus: http.StatusRequestTimeout,
			setupCtx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
		},
		{
			name: "store failure",
			dto:  &dto.JobCreateDTO{Queue: config.QueueEmail, Type: config.JobTypeSendEmail, Payload: emailPayload},
			setupMock: func(m *mocks.EnqueuerMock) {
				m.On("Enqueue", mock.Anything, config.QueueEmail, config.JobTypeSendEmail, mock.Anything, mock.Anything).
					Return(uint(0), fmt.Errorf("enqueue: %w", errors.New("connection refused")))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enq := new(mocks.EnqueuerMock)
			if tt.setupMock != nil {
				tt.setupMock(enq)
			}

			ctx := context.Background()
			if tt.setupCtx != nil {
				ctx = tt.setupCtx()
			}

			svc := NewJobService(new(mocks.JobRepoMock), enq)
			id, err := svc.CreateJob(ctx, tt.dto)

			if tt.wantStatus != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
				if tt.setupMock != nil {
					enq.AssertExpectations(t)
				} else {
					enq.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			enq.AssertExpectations(t)
		})
	}
}

func TestJobService_GetJobByID(t *testing.T) {
	tests := []struct {
		name       string
		setupMock  func(*mocks.JobRepoMock)
		wantStatus int
	}{
		{
			name: "found",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, uint(1)).Return(&models.Job{
					ID:     1,
					Queue:  config.QueueEmail,
					Type:   config.JobTypeSendEmail,
					Status: config.JobStatusCompleted,
				}, nil)
			},
		},
		{
			name: "not found",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, uint(1)).Return(nil, fmt.Errorf("get job 1: %w", gorm.ErrRecordNotFound))
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "deadline exceeded",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, uint(1)).Return(nil, context.DeadlineExceeded)
			},
			wantStatus: http.StatusRequestTimeout,
		},
		{
			name: "database error",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, uint(1)).Return(nil, errors.New("boom"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			tt.setupMock(repo)

			svc := NewJobService(repo, new(mocks.EnqueuerMock))
			resp, err := svc.GetJobByID(context.Background(), 1)

			if tt.wantStatus != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
				assert.Nil(t, resp)
			} else {
				require.NoError(t, err)
				assert.Equal(t, config.JobStatusCompleted, resp.Status)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestJobService_ListJobs(t *testing.T) {
	t.Run("filters by status", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)
		repo.On("List", mock.Anything, config.QueueCampaign, config.JobStatusFailed, 10).
			Return([]models.Job{{ID: 3, Queue: config.QueueCampaign, Status: config.JobStatusFailed, Error: "campaign not found"}}, nil)

		svc := NewJobService(repo, new(mocks.EnqueuerMock))
		jobs, err := svc.ListJobs(context.Background(), config.QueueCampaign, config.JobStatusFailed, 10)

		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "campaign not found", jobs[0].Error)
		repo.AssertExpectations(t)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		svc := NewJobService(new(mocks.JobRepoMock), new(mocks.EnqueuerMock))
		_, err := svc.ListJobs(context.Background(), config.QueueCampaign, "done", 10)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})

	t.Run("rejects unknown queue", func(t *testing.T) {
		svc := NewJobService(new(mocks.JobRepoMock), new(mocks.EnqueuerMock))
		_, err := svc.ListJobs(context.Background(), "reports", "", 10)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})
}

func TestJobService_QueueControl(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	repo := new(mocks.JobRepoMock)
	repo.On("SetPaused", mock.Anything, config.QueueEmail, true).Return(nil).Once()
	repo.On("SetPaused", mock.Anything, config.QueueEmail, false).Return(nil).Once()
	repo.On("Counts", mock.Anything, config.QueueEmail, now).
		Return(&dto.QueueCounts{Queue: config.QueueEmail, Waiting: 4, Delayed: 2}, nil)

	svc := NewJobService(repo, new(mocks.EnqueuerMock))
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.PauseQueue(context.Background(), config.QueueEmail))
	require.NoError(t, svc.ResumeQueue(context.Background(), config.QueueEmail))

	counts, err := svc.QueueStats(context.Background(), config.QueueEmail)
	require.NoError(t, err)
	assert.EqualValues(t, 4, counts.Waiting)
	assert.EqualValues(t, 2, counts.Delayed)

	err = svc.PauseQueue(context.Background(), "unknown")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	repo.AssertExpectations(t)
}
