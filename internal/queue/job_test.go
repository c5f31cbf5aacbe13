package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"gorm.io/datatypes"
)

func TestDecode(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		job := NewJob(&models.Job{ID: 1, Payload: datatypes.JSON(`{"tenantId":2,"campaignId":9}`)}, nil)

		p, err := Decode[dto.CampaignJobPayload](job)
		require.NoError(t, err)
		assert.Equal(t, uint(9), p.CampaignID)
	})

	t.Run("malformed payload is permanent", func(t *testing.T) {
		job := NewJob(&models.Job{ID: 1, Payload: datatypes.JSON(`{"tenantId":`)}, nil)

		_, err := Decode[dto.CampaignJobPayload](job)
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
	})

	t.Run("missing field is permanent", func(t *testing.T) {
		job := NewJob(&models.Job{ID: 1, Payload: datatypes.JSON(`{"tenantId":2}`)}, nil)

		_, err := Decode[dto.CampaignJobPayload](job)
		assert.True(t, IsPermanent(err))
	})
}

func TestJob_ReportProgress(t *testing.T) {
	var got []int
	job := NewJob(&models.Job{ID: 4}, func(_ context.Context, id uint, p int) error {
		assert.Equal(t, uint(4), id)
		got = append(got, p)
		return nil
	})

	require.NoError(t, job.ReportProgress(context.Background(), 40))
	require.NoError(t, job.ReportProgress(context.Background(), 140))
	require.NoError(t, job.ReportProgress(context.Background(), -5))
	assert.Equal(t, []int{40, 100, 0}, got)

	assert.NoError(t, NewJob(&models.Job{}, nil).ReportProgress(context.Background(), 50))
}

func TestJob_LastAttempt(t *testing.T) {
	assert.False(t, NewJob(&models.Job{Attempts: 1, MaxAttempts: 3}, nil).LastAttempt())
	assert.True(t, NewJob(&models.Job{Attempts: 3, MaxAttempts: 3}, nil).LastAttempt())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	h := func(context.Context, *Job) (any, error) { return "ok", nil }

	r.Register(config.QueueEmail, config.JobTypeSendEmail, h, nil)
	r.Register(config.QueueAnalytics, config.JobTypeRecordEvent, h, func(context.Context, *Job, error) {})

	got, hook, ok := r.Lookup(config.QueueEmail, config.JobTypeSendEmail)
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.Nil(t, hook)

	_, hook, ok = r.Lookup(config.QueueAnalytics, config.JobTypeRecordEvent)
	require.True(t, ok)
	assert.NotNil(t, hook)

	_, _, ok = r.Lookup(config.QueueEmail, config.JobTypeRecordEvent)
	assert.False(t, ok)

	assert.Equal(t, []string{config.QueueAnalytics, config.QueueEmail}, r.Queues())
}
