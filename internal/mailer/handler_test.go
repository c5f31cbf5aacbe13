package mailer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/mailer"
	"github.com/webramesh/email-marketing-sub000/internal/mocks"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"github.com/webramesh/email-marketing-sub000/internal/queue/queuetest"
	"github.com/webramesh/email-marketing-sub000/shared/logger"
	"gorm.io/datatypes"
)

const emailPayload = `{
	"tenantId": 3,
	"campaignId": 11,
	"subscriberId": 21,
	"message": {"to": "ann@example.com", "from": "news@example.com", "subject": "Hi Ann", "html": "<p>Hi</p>"}
}`

func emailJob(payload string) *queue.Job {
	return queue.NewJob(&models.Job{
		ID:          5,
		Queue:       config.QueueEmail,
		Type:        config.JobTypeSendEmail,
		Payload:     datatypes.JSON(payload),
		Attempts:    1,
		MaxAttempts: 3,
	}, nil)
}

func TestHandler_Handle(t *testing.T) {
	msg := dto.EmailMessage{To: "ann@example.com", From: "news@example.com", Subject: "Hi Ann", HTML: "<p>Hi</p>"}

	tests := []struct {
		name          string
		payload       string
		setupMock     func(*mocks.TransportMock, *mocks.LimiterMock)
		wantErr       error
		wantPermanent bool
		wantEvents    int
	}{
		{
			name:    "sends and records SENT",
			payload: emailPayload,
			setupMock: func(tr *mocks.TransportMock, l *mocks.LimiterMock) {
				l.On("Allow", mock.Anything, uint(3)).Return(true, nil)
				tr.On("SendEmail", mock.Anything, msg, uint(3)).Return(mailer.SendResult{Success: true, MessageID: "m-1"}, nil)
			},
			wantEvents: 1,
		},
		{
			name:    "rate limited is retryable",
			payload: emailPayload,
			setupMock: func(_ *mocks.TransportMock, l *mocks.LimiterMock) {
				l.On("Allow", mock.Anything, uint(3)).Return(false, nil)
			},
			wantErr: queue.ErrRateLimited,
		},
		{
			name:    "unsuccessful result is retryable",
			payload: emailPayload,
			setupMock: func(tr *mocks.TransportMock, l *mocks.LimiterMock) {
				l.On("Allow", mock.Anything, uint(3)).Return(true, nil)
				tr.On("SendEmail", mock.Anything, msg, uint(3)).Return(mailer.SendResult{Error: "mailbox full"}, nil)
			},
			wantErr: mailer.ErrSendRejected,
		},
		{
			name:    "transport error is retryable",
			payload: emailPayload,
			setupMock: func(tr *mocks.TransportMock, l *mocks.LimiterMock) {
				l.On("Allow", mock.Anything, uint(3)).Return(true, nil)
				tr.On("SendEmail", mock.Anything, msg, uint(3)).Return(mailer.SendResult{}, context.DeadlineExceeded)
			},
			wantErr: context.DeadlineExceeded,
		},
		{
			name:          "invalid recipient is permanent",
			payload:       `{"tenantId":3,"message":{"to":"nope","from":"news@example.com","subject":"s","html":"h"}}`,
			setupMock:     func(*mocks.TransportMock, *mocks.LimiterMock) {},
			wantPermanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(mocks.TransportMock)
			limiter := new(mocks.LimiterMock)
			tt.setupMock(transport, limiter)
			rec := &queuetest.Recorder{}

			h := mailer.NewHandler(transport, limiter, rec, logger.Discard())
			res, err := h.Handle(context.Background(), emailJob(tt.payload))

			switch {
			case tt.wantPermanent:
				require.Error(t, err)
				assert.True(t, queue.IsPermanent(err))
				limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, queue.IsPermanent(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, mailer.SendOutcome{MessageID: "m-1"}, res)
			}

			events := rec.Jobs(config.QueueAnalytics)
			require.Len(t, events, tt.wantEvents)
			if tt.wantEvents > 0 {
				ev, err := queuetest.Decode[dto.AnalyticsJobPayload](events[0])
				require.NoError(t, err)
				assert.Equal(t, config.EventSent, ev.EventType)
				assert.Equal(t, "m-1", ev.EventData.EmailID)
				require.NotNil(t, ev.EventData.CampaignID)
				assert.Equal(t, uint(11), *ev.EventData.CampaignID)
			}

			transport.AssertExpectations(t)
			limiter.AssertExpectations(t)
		})
	}
}

func TestHandler_SentEventFailureDoesNotFailSend(t *testing.T) {
	limiter := new(mocks.LimiterMock)
	limiter.On("Allow", mock.Anything, uint(3)).Return(true, nil)
	transport := new(mocks.TransportMock)
	transport.On("SendEmail", mock.Anything, mock.Anything, uint(3)).Return(mailer.SendResult{Success: true, MessageID: "m-2"}, nil)

	h := mailer.NewHandler(transport, limiter, &queuetest.Recorder{Err: errors.New("db down")}, logger.Discard())

	_, err := h.Handle(context.Background(), emailJob(emailPayload))
	assert.NoError(t, err)
}

func TestHandler_Register(t *testing.T) {
	registry := queue.NewRegistry()
	mailer.NewHandler(mailer.NewLogTransport(logger.Discard()), nil, nil, nil).Register(registry)

	_, hook, ok := registry.Lookup(config.QueueEmail, config.JobTypeSendEmail)
	assert.True(t, ok)
	assert.NotNil(t, hook)
}

func TestLogTransport(t *testing.T) {
	res, err := mailer.NewLogTransport(logger.Discard()).SendEmail(context.Background(), dto.EmailMessage{To: "a@x.com"}, 1)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, res.MessageID, 36)
}
