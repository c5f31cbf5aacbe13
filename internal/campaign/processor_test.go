package campaign

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"github.com/webramesh/email-marketing-sub000/internal/queue/queuetest"
	"github.com/webramesh/email-marketing-sub000/internal/storage/postgres"
	"github.com/webramesh/email-marketing-sub000/internal/storage/storagetest"
	"github.com/webramesh/email-marketing-sub000/shared/logger"
	"gorm.io/datatypes"
)

const tenant = uint(1)

type fixture struct {
	repo      *postgres.CampaignRepository
	jobs      *queuetest.Recorder
	processor *Processor
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := storagetest.NewDB(t)
	f := &fixture{
		repo: postgres.NewCampaignRepository(db),
		jobs: &queuetest.Recorder{},
	}
	f.processor = NewProcessor(f.repo, f.jobs, logger.Discard())
	f.service = NewService(f.repo, f.jobs, logger.Discard())
	return f
}

func (f *fixture) campaign(t *testing.T, status string) *models.Campaign {
	t.Helper()

	c := &models.Campaign{
		TenantID:    tenant,
		Name:        "April newsletter",
		Subject:     "Hello {{firstName}}",
		FromEmail:   "news@example.com",
		FromName:    "Example News",
		HTMLContent: "<p>Dear {{fullName}}, your plan is {{plan}}{{unknown}}.</p>",
		TextContent: "Dear {{firstName}}",
		ListID:      10,
		Status:      status,
	}
	require.NoError(t, f.repo.CreateCampaign(context.Background(), c))
	return c
}

func (f *fixture) audience(t *testing.T, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		require.NoError(t, f.repo.CreateSubscriber(context.Background(), &models.Subscriber{
			TenantID:     tenant,
			ListID:       10,
			Email:        fmt.Sprintf("user%03d@example.com", i),
			FirstName:    fmt.Sprintf("User%d", i),
			LastName:     "Smith",
			Status:       config.SubscriberStatusActive,
			CustomFields: datatypes.JSON(`{"plan":"pro"}`),
		}))
	}
}

func asJob(e queuetest.Enqueued) *queue.Job {
	return &queue.Job{ID: e.ID, Queue: e.Queue, Type: e.Type, Payload: datatypes.JSON(e.Payload), Attempts: 1, MaxAttempts: 2}
}

// drain processes campaign batches until the chain ends and returns every result.
func (f *fixture) drain(t *testing.T) []BatchResult {
	t.Helper()

	var results []BatchResult
	for i := 0; i < 1000; i++ {
		e, ok := f.jobs.Take(config.QueueCampaign)
		if !ok {
			return results
		}
		res, err := f.processor.Handle(context.Background(), asJob(e))
		require.NoError(t, err)
		results = append(results, res.(BatchResult))
	}
	t.Fatal("campaign chain did not terminate")
	return nil
}

func TestProcessor_FanOut(t *testing.T) {
	tests := []struct {
		recipients  int
		batchSize   int
		wantBatches int
	}{
		{recipients: 250, batchSize: 100, wantBatches: 3},
		{recipients: 200, batchSize: 100, wantBatches: 2},
		{recipients: 7, batchSize: 3, wantBatches: 3},
		{recipients: 1, batchSize: 0, wantBatches: 1},
		{recipients: 0, batchSize: 100, wantBatches: 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d recipients in batches of %d", tt.recipients, tt.batchSize), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			c := f.campaign(t, config.CampaignStatusDraft)
			f.audience(t, tt.recipients)

			require.NoError(t, f.service.StartSend(ctx, tenant, c.ID, tt.batchSize))

			results := f.drain(t)
			assert.Len(t, results, tt.wantBatches)

			sent := 0
			for _, r := range results {
				if r.Result == ResultSent {
					sent++
				}
			}
			assert.Equal(t, 1, sent, "campaign is finalized exactly once")
			assert.Equal(t, ResultSent, results[len(results)-1].Result)

			emails := f.jobs.Jobs(config.QueueEmail)
			assert.Len(t, emails, tt.recipients)

			seen := map[string]bool{}
			for _, e := range emails {
				p, err := queuetest.Decode[dto.EmailJobPayload](e)
				require.NoError(t, err)
				assert.False(t, seen[p.Message.To], "duplicate send to %s", p.Message.To)
				seen[p.Message.To] = true
			}

			got, err := f.repo.GetCampaign(ctx, tenant, c.ID)
			require.NoError(t, err)
			assert.Equal(t, config.CampaignStatusSent, got.Status)
			assert.NotNil(t, got.SentAt)
		})
	}
}

func TestProcessor_Personalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, config.CampaignStatusSending)
	f.audience(t, 1)

	res, err := f.processor.ProcessCampaignJob(ctx, dto.CampaignJobPayload{TenantID: tenant, CampaignID: c.ID, BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Enqueued)

	emails := f.jobs.Jobs(config.QueueEmail)
	require.Len(t, emails, 1)
	p, err := queuetest.Decode[dto.EmailJobPayload](emails[0])
	require.NoError(t, err)

	assert.Equal(t, "Hello User0", p.Message.Subject)
	assert.Equal(t, "<p>Dear User0 Smith, your plan is pro.</p>", p.Message.HTML)
	assert.Equal(t, "Dear User0", p.Message.Text)
	assert.Equal(t, "user000@example.com", p.Message.To)
	assert.Equal(t, "news@example.com", p.Message.From)
	require.NotNil(t, p.CampaignID)
	assert.Equal(t, c.ID, *p.CampaignID)
	require.NotNil(t, p.SubscriberID)
}

func TestProcessor_SkipsInactiveSubscribers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, config.CampaignStatusSending)
	f.audience(t, 3)
	require.NoError(t, f.repo.CreateSubscriber(ctx, &models.Subscriber{
		TenantID: tenant, ListID: 10, Email: "gone@example.com", Status: config.SubscriberStatusUnsubscribed,
	}))

	_, err := f.processor.ProcessCampaignJob(ctx, dto.CampaignJobPayload{TenantID: tenant, CampaignID: c.ID, BatchSize: 10})
	require.NoError(t, err)
	assert.Len(t, f.jobs.Jobs(config.QueueEmail), 3)
}

func TestProcessor_RecordsProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, config.CampaignStatusSending)
	f.audience(t, 5)

	res, err := f.processor.ProcessCampaignJob(ctx, dto.CampaignJobPayload{TenantID: tenant, CampaignID: c.ID, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{CampaignID: c.ID, Offset: 0, Enqueued: 2, NextOffset: 2, LastSubscriberID: 2, Result: ResultBatch}, res)

	got, err := f.repo.GetCampaign(ctx, tenant, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.NextOffset)
	assert.Equal(t, uint(2), got.LastSubscriberID)
	assert.Equal(t, config.CampaignStatusSending, got.Status)

	next := f.jobs.Jobs(config.QueueCampaign)
	require.Len(t, next, 1)
	assert.Equal(t, LockKey(c.ID), next[0].Opts.LockKey)
	p, err := queuetest.Decode[dto.CampaignJobPayload](next[0])
	require.NoError(t, err)
	assert.Equal(t, dto.CampaignJobPayload{TenantID: tenant, CampaignID: c.ID, BatchSize: 2, Offset: 2, AfterID: 2}, p)
}

func TestProcessor_AudienceShrinksMidSend(t *testing.T) {
	tests := []struct {
		name  string
		event string
	}{
		{name: "bounce", event: config.EventBounced},
		{name: "complaint", event: config.EventComplained},
		{name: "unsubscribe", event: config.EventUnsubscribed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			c := f.campaign(t, config.CampaignStatusDraft)
			f.audience(t, 4)
			require.NoError(t, f.service.StartSend(ctx, tenant, c.ID, 2))

			first, _ := f.jobs.Take(config.QueueCampaign)
			_, err := f.processor.Handle(ctx, asJob(first))
			require.NoError(t, err)

			// the first recipient reacts before the next batch runs
			campaignID, subscriberID := c.ID, uint(1)
			require.NoError(t, f.repo.RecordEvent(ctx, &models.EmailEvent{
				TenantID: tenant, CampaignID: &campaignID, SubscriberID: &subscriberID, Type: tt.event,
			}))

			results := f.drain(t)
			require.Len(t, results, 1)
			assert.Equal(t, ResultSent, results[0].Result)
			assert.Equal(t, 2, results[0].Enqueued)
			assert.Equal(t, 4, results[0].NextOffset)

			var to []string
			for _, e := range f.jobs.Jobs(config.QueueEmail) {
				p, err := queuetest.Decode[dto.EmailJobPayload](e)
				require.NoError(t, err)
				to = append(to, p.Message.To)
			}
			assert.Equal(t, []string{
				"user000@example.com", "user001@example.com", "user002@example.com", "user003@example.com",
			}, to)
		})
	}
}

func TestProcessor_RetriedBatchDoesNotDuplicateEmails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, config.CampaignStatusSending)
	f.audience(t, 3)

	payload := dto.CampaignJobPayload{TenantID: tenant, CampaignID: c.ID, BatchSize: 2}
	for range 2 {
		res, err := f.processor.ProcessCampaignJob(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Enqueued)
	}

	emails := f.jobs.Jobs(config.QueueEmail)
	require.Len(t, emails, 2)
	assert.Equal(t, EmailDedupKey(c.ID, 1), emails[0].Opts.DedupKey)
	assert.Equal(t, EmailDedupKey(c.ID, 2), emails[1].Opts.DedupKey)
	assert.Equal(t, "campaign:"+fmt.Sprint(c.ID)+":subscriber:2", emails[1].Opts.DedupKey)
}

func TestProcessor_TerminalCampaigns(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{status: config.CampaignStatusCancelled, want: ResultCancelled},
		{status: config.CampaignStatusSent, want: ResultSkipped},
		{status: config.CampaignStatusFailed, want: ResultSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			f := newFixture(t)
			c := f.campaign(t, tt.status)
			f.audience(t, 3)

			res, err := f.processor.ProcessCampaignJob(context.Background(), dto.CampaignJobPayload{TenantID: tenant, CampaignID: c.ID})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Result)
			assert.Empty(t, f.jobs.Jobs(""))
		})
	}
}

func TestProcessor_CancelMidChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, config.CampaignStatusDraft)
	f.audience(t, 6)
	require.NoError(t, f.service.StartSend(ctx, tenant, c.ID, 2))

	first, _ := f.jobs.Take(config.QueueCampaign)
	_, err := f.processor.Handle(ctx, asJob(first))
	require.NoError(t, err)

	require.NoError(t, f.service.Cancel(ctx, tenant, c.ID))

	results := f.drain(t)
	require.Len(t, results, 1)
	assert.Equal(t, ResultCancelled, results[0].Result)
	assert.Len(t, f.jobs.Jobs(config.QueueEmail), 2)
}

func TestProcessor_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing campaign is permanent", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.processor.ProcessCampaignJob(ctx, dto.CampaignJobPayload{TenantID: tenant, CampaignID: 404})
		require.Error(t, err)
		assert.True(t, queue.IsPermanent(err))
	})

	t.Run("enqueue error is retryable", func(t *testing.T) {
		f := newFixture(t)
		c := f.campaign(t, config.CampaignStatusSending)
		f.audience(t, 2)
		f.jobs.Err = errors.New("db down")

		_, err := f.processor.ProcessCampaignJob(ctx, dto.CampaignJobPayload{TenantID: tenant, CampaignID: c.ID})
		require.Error(t, err)
		assert.False(t, queue.IsPermanent(err))
	})

	t.Run("progress is not recorded when an email enqueue fails", func(t *testing.T) {
		f := newFixture(t)
		c := f.campaign(t, config.CampaignStatusSending)
		f.audience(t, 2)
		f.jobs.Err = errors.New("db down")

		_, err := f.processor.ProcessCampaignJob(ctx, dto.CampaignJobPayload{TenantID: tenant, CampaignID: c.ID})
		require.Error(t, err)

		got, err := f.repo.GetCampaign(ctx, tenant, c.ID)
		require.NoError(t, err)
		assert.Zero(t, got.NextOffset)
		assert.Zero(t, got.LastSubscriberID)
	})

	t.Run("failure hook records the offset", func(t *testing.T) {
		f := newFixture(t)
		c := f.campaign(t, config.CampaignStatusSending)

		f.processor.OnFailure(ctx, &queue.Job{
			ID:      3,
			Payload: datatypes.JSON(fmt.Sprintf(`{"tenantId":1,"campaignId":%d,"batchSize":100,"offset":300}`, c.ID)),
		}, errors.New("smtp pool exhausted"))

		got, err := f.repo.GetCampaign(ctx, tenant, c.ID)
		require.NoError(t, err)
		assert.Equal(t, config.CampaignStatusFailed, got.Status)
		assert.Equal(t, "batch at offset 300 failed: smtp pool exhausted", got.FailureReason)
	})
}
