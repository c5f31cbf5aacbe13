package campaign

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue/queuetest"
	"gorm.io/gorm"
)

func TestService_StartSend(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{name: "draft", status: config.CampaignStatusDraft},
		{name: "scheduled", status: config.CampaignStatusScheduled},
		{name: "already sending", status: config.CampaignStatusSending, wantErr: ErrInvalidState},
		{name: "sent", status: config.CampaignStatusSent, wantErr: ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.campaign(t, tt.status)

			err := f.service.StartSend(ctx, tenant, c.ID, 50)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.jobs.Jobs(""))
				return
			}
			require.NoError(t, err)

			got, err := f.repo.GetCampaign(ctx, tenant, c.ID)
			require.NoError(t, err)
			assert.Equal(t, config.CampaignStatusSending, got.Status)

			jobs := f.jobs.Jobs(config.QueueCampaign)
			require.Len(t, jobs, 1)
			p, err := queuetest.Decode[dto.CampaignJobPayload](jobs[0])
			require.NoError(t, err)
			assert.Equal(t, dto.CampaignJobPayload{TenantID: tenant, CampaignID: c.ID, BatchSize: 50}, p)
		})
	}

	t.Run("missing campaign", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.service.StartSend(ctx, tenant, 99, 0), gorm.ErrRecordNotFound)
	})

	t.Run("enqueue failure marks the campaign failed", func(t *testing.T) {
		f := newFixture(t)
		c := f.campaign(t, config.CampaignStatusDraft)
		f.jobs.Err = errors.New("db down")

		require.Error(t, f.service.StartSend(ctx, tenant, c.ID, 0))

		got, err := f.repo.GetCampaign(ctx, tenant, c.ID)
		require.NoError(t, err)
		assert.Equal(t, config.CampaignStatusFailed, got.Status)
		assert.Contains(t, got.FailureReason, "db down")
	})
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	c := f.campaign(t, config.CampaignStatusSending)
	require.NoError(t, f.service.Cancel(ctx, tenant, c.ID))

	status, err := f.service.Status(ctx, tenant, c.ID)
	require.NoError(t, err)
	assert.Equal(t, config.CampaignStatusCancelled, status.Status)

	assert.ErrorIs(t, f.service.Cancel(ctx, tenant, c.ID), ErrInvalidState)
}

func TestService_Resume(t *testing.T) {
	ctx := context.Background()

	t.Run("failed campaign resumes after the last recorded subscriber", func(t *testing.T) {
		f := newFixture(t)
		c := f.campaign(t, config.CampaignStatusSending)
		f.audience(t, 5)

		_, err := f.processor.ProcessCampaignJob(ctx, dto.CampaignJobPayload{TenantID: tenant, CampaignID: c.ID, BatchSize: 2})
		require.NoError(t, err)
		require.NoError(t, f.repo.RecordFailure(ctx, c.ID, "batch at offset 2 failed"))
		f.jobs.Take(config.QueueCampaign)

		offset, err := f.service.Resume(ctx, tenant, c.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, offset)

		resumed := f.jobs.Jobs(config.QueueCampaign)
		require.Len(t, resumed, 1)
		p, err := queuetest.Decode[dto.CampaignJobPayload](resumed[0])
		require.NoError(t, err)
		assert.Equal(t, uint(2), p.AfterID)

		f.drain(t)
		assert.Len(t, f.jobs.Jobs(config.QueueEmail), 5)

		status, err := f.service.Status(ctx, tenant, c.ID)
		require.NoError(t, err)
		assert.Equal(t, config.CampaignStatusSent, status.Status)
		assert.Empty(t, status.FailureReason)
	})

	t.Run("draft cannot be resumed", func(t *testing.T) {
		f := newFixture(t)
		c := f.campaign(t, config.CampaignStatusDraft)

		_, err := f.service.Resume(ctx, tenant, c.ID, 0)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestService_Status(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, config.CampaignStatusSending)
	f.audience(t, 3)
	campaignID := c.ID
	for _, typ := range []string{config.EventSent, config.EventSent, config.EventOpened, config.EventBounced} {
		require.NoError(t, f.repo.RecordEvent(ctx, &models.EmailEvent{TenantID: tenant, CampaignID: &campaignID, Type: typ}))
	}

	status, err := f.service.Status(ctx, tenant, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.Sent)
	assert.Equal(t, int64(1), status.Opened)
	assert.Equal(t, int64(1), status.Bounced)
	assert.Zero(t, status.Clicked)
	assert.EqualValues(t, 3, status.Audience)

	_, err = f.service.Status(ctx, tenant+1, c.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
