package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/mocks"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
)

var now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func noop(context.Context, *queue.Job) (any, error) { return nil, nil }

func TestNewWorkerPool_SizesByPolicy(t *testing.T) {
	registry := queue.NewRegistry()
	registry.Register(config.QueueEmail, config.JobTypeSendEmail, noop, nil)
	registry.Register(config.QueueCampaign, config.JobTypeProcessCampaign, noop, nil)

	policies := queue.WithConcurrency(queue.DefaultPolicies(), map[string]int{
		config.QueueEmail:    3,
		config.QueueCampaign: 2,
	})

	p := NewWorkerPool(new(mocks.QueueStoreMock), nil, registry, policies, Options{NamePrefix: "host"}, nil)
	assert.Equal(t, 5, p.Size())
	assert.Equal(t, "host-campaign-1", p.workers[0].ID)
	assert.Equal(t, "host-email-3", p.workers[4].ID)
}

func TestWorkerPool_Sweep(t *testing.T) {
	tests := []struct {
		name         string
		withExecs    bool
		setupMock    func(*mocks.QueueStoreMock, *mocks.StaleExecutionsMock)
		wantReleased int
		wantStale    int
		wantErr      bool
	}{
		{
			name:      "releases stuck jobs and reports stale executions",
			withExecs: true,
			setupMock: func(s *mocks.QueueStoreMock, e *mocks.StaleExecutionsMock) {
				s.On("ListStuckJobs", mock.Anything, now.Add(-10*time.Minute)).
					Return([]models.Job{{ID: 1}, {ID: 2}}, nil)
				s.On("Release", mock.Anything, uint(1), now).Return(nil)
				s.On("Release", mock.Anything, uint(2), now).Return(errors.New("conflict"))
				e.On("ListStaleExecutions", mock.Anything, now.Add(-time.Hour)).
					Return([]models.AutomationExecution{{ID: "e-1", AutomationID: 3}}, nil)
			},
			wantReleased: 1,
			wantStale:    1,
		},
		{
			name: "no execution reporter",
			setupMock: func(s *mocks.QueueStoreMock, _ *mocks.StaleExecutionsMock) {
				s.On("ListStuckJobs", mock.Anything, now.Add(-10*time.Minute)).Return(nil, nil)
			},
		},
		{
			name:      "list error stops the sweep",
			withExecs: true,
			setupMock: func(s *mocks.QueueStoreMock, _ *mocks.StaleExecutionsMock) {
				s.On("ListStuckJobs", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mocks.QueueStoreMock)
			execs := new(mocks.StaleExecutionsMock)
			tt.setupMock(store, execs)

			var lister StaleExecutionLister
			if tt.withExecs {
				lister = execs
			}

			p := NewWorkerPool(store, lister, queue.NewRegistry(), nil, Options{}, nil)
			p.now = func() time.Time { return now }

			released, stale, err := p.Sweep(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				execs.AssertNotCalled(t, "ListStaleExecutions", mock.Anything, mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantReleased, released)
			assert.Equal(t, tt.wantStale, stale)
			store.AssertExpectations(t)
			execs.AssertExpectations(t)
		})
	}
}

func TestWorkerPool_StartStop(t *testing.T) {
	store := new(mocks.QueueStoreMock)
	store.On("IsPaused", mock.Anything, config.QueueAnalytics).Return(true, nil).Maybe()

	registry := queue.NewRegistry()
	registry.Register(config.QueueAnalytics, config.JobTypeRecordEvent, noop, nil)

	p := NewWorkerPool(store, nil, registry, map[string]queue.Policy{config.QueueAnalytics: {Concurrency: 2}}, Options{}, nil)
	p.Start()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
}
