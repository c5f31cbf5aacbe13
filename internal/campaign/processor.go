package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/content"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/metrics"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"gorm.io/gorm"
)

// Repository is the campaign persistence used by the processor and the service.
type Repository interface {
	GetCampaign(ctx context.Context, tenantID, id uint) (*models.Campaign, error)
	ListActiveSubscribers(ctx context.Context, tenantID, listID, afterID uint, limit int) ([]models.Subscriber, error)
	CountActiveSubscribers(ctx context.Context, tenantID, listID uint) (int64, error)
	TransitionStatus(ctx context.Context, tenantID, id uint, to string, from ...string) (bool, error)
	MarkSent(ctx context.Context, tenantID, id uint, now time.Time) (bool, error)
	RecordBatchProgress(ctx context.Context, id uint, nextOffset int, lastSubscriberID uint) error
	RecordFailure(ctx context.Context, id uint, reason string) error
}

const (
	ResultBatch     = "batch"
	ResultSent      = "sent"
	ResultCancelled = "cancelled"
	ResultSkipped   = "skipped"
)

// BatchResult is stored as the campaign job's result.
type BatchResult struct {
	CampaignID       uint   `json:"campaignId"`
	Offset           int    `json:"offset"`
	Enqueued         int    `json:"enqueued"`
	NextOffset       int    `json:"nextOffset"`
	LastSubscriberID uint   `json:"lastSubscriberId"`
	Result           string `json:"result"`
}

// LockKey serializes the batch chain of one campaign.
func LockKey(campaignID uint) string {
	return "campaign:" + strconv.FormatUint(uint64(campaignID), 10)
}

// EmailDedupKey identifies the single email a campaign sends to one subscriber.
func EmailDedupKey(campaignID, subscriberID uint) string {
	return LockKey(campaignID) + ":subscriber:" + strconv.FormatUint(uint64(subscriberID), 10)
}

// Processor fans a campaign out to its list, one batch per job. Each batch enqueues
// the next until the audience is exhausted. Batches page by subscriber id, so
// subscribers leaving the audience mid-send never shift later pages.
type Processor struct {
	repo     Repository
	enqueuer queue.Enqueuer
	log      *slog.Logger
	now      func() time.Time
}

func NewProcessor(repo Repository, enqueuer queue.Enqueuer, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		repo:     repo,
		enqueuer: enqueuer,
		log:      log.With("component", "campaign"),
		now:      time.Now,
	}
}

func (p *Processor) Register(reg *queue.Registry) {
	reg.Register(config.QueueCampaign, config.JobTypeProcessCampaign, p.Handle, p.OnFailure)
}

func (p *Processor) Handle(ctx context.Context, job *queue.Job) (any, error) {
	payload, err := queue.Decode[dto.CampaignJobPayload](job)
	if err != nil {
		return nil, err
	}
	return p.ProcessCampaignJob(ctx, payload)
}

// ProcessCampaignJob sends one batch of the campaign: the next BatchSize active
// subscribers with an id above AfterID.
func (p *Processor) ProcessCampaignJob(ctx context.Context, payload dto.CampaignJobPayload) (BatchResult, error) {
	batchSize := payload.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultCampaignBatchSize
	}
	res := BatchResult{CampaignID: payload.CampaignID, Offset: payload.Offset}
	log := p.log.With("campaign_id", payload.CampaignID, "offset", payload.Offset)

	c, err := p.repo.GetCampaign(ctx, payload.TenantID, payload.CampaignID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return res, queue.Permanent(err)
		}
		return res, err
	}

	switch c.Status {
	case config.CampaignStatusCancelled:
		log.Info("campaign cancelled, batch dropped")
		metrics.RecordCampaignBatch(ResultCancelled)
		res.Result = ResultCancelled
		return res, nil
	case config.CampaignStatusSent, config.CampaignStatusFailed:
		res.Result = ResultSkipped
		return res, nil
	}

	// one extra row tells whether another batch follows
	subs, err := p.repo.ListActiveSubscribers(ctx, c.TenantID, c.ListID, payload.AfterID, batchSize+1)
	if err != nil {
		return res, err
	}

	more := len(subs) > batchSize
	if more {
		subs = subs[:batchSize]
	}
	if len(subs) == 0 {
		return p.finish(ctx, c, res)
	}

	tpl := content.Message{Subject: c.Subject, HTML: c.HTMLContent, Text: c.TextContent}
	for i := range subs {
		s := &subs[i]
		msg := content.Personalize(tpl, content.ForSubscriber(s))

		campaignID := c.ID
		subscriberID := s.ID
		email := dto.EmailJobPayload{
			TenantID: c.TenantID,
			Message: dto.EmailMessage{
				To:       s.Email,
				From:     c.FromEmail,
				FromName: c.FromName,
				ReplyTo:  c.ReplyTo,
				Subject:  msg.Subject,
				HTML:     msg.HTML,
				Text:     msg.Text,
			},
			CampaignID:   &campaignID,
			SubscriberID: &subscriberID,
		}
		if _, err := p.enqueuer.Enqueue(ctx, config.QueueEmail, config.JobTypeSendEmail, email, queue.Options{
			DedupKey: EmailDedupKey(c.ID, s.ID),
		}); err != nil {
			return res, fmt.Errorf("enqueue email for subscriber %d: %w", s.ID, err)
		}
		res.Enqueued++
	}

	res.NextOffset = payload.Offset + len(subs)
	res.LastSubscriberID = subs[len(subs)-1].ID
	if err := p.repo.RecordBatchProgress(ctx, c.ID, res.NextOffset, res.LastSubscriberID); err != nil {
		return res, err
	}

	if !more {
		return p.finish(ctx, c, res)
	}

	next := dto.CampaignJobPayload{
		TenantID:   c.TenantID,
		CampaignID: c.ID,
		BatchSize:  batchSize,
		Offset:     res.NextOffset,
		AfterID:    res.LastSubscriberID,
	}
	if _, err := p.enqueuer.Enqueue(ctx, config.QueueCampaign, config.JobTypeProcessCampaign, next, queue.Options{
		LockKey: LockKey(c.ID),
	}); err != nil {
		return res, fmt.Errorf("enqueue batch at offset %d: %w", res.NextOffset, err)
	}

	metrics.RecordCampaignBatch(ResultBatch)
	log.Info("campaign batch enqueued", "emails", res.Enqueued, "next_offset", res.NextOffset, "after_id", res.LastSubscriberID)
	res.Result = ResultBatch
	return res, nil
}

func (p *Processor) finish(ctx context.Context, c *models.Campaign, res BatchResult) (BatchResult, error) {
	changed, err := p.repo.MarkSent(ctx, c.TenantID, c.ID, p.now().UTC())
	if err != nil {
		return res, err
	}

	res.Result = ResultSent
	if !changed {
		res.Result = ResultSkipped
		return res, nil
	}

	metrics.RecordCampaignBatch(ResultSent)
	p.log.Info("campaign sent", "campaign_id", c.ID, "last_batch", res.Enqueued)
	return res, nil
}

// OnFailure records the abandoned batch on the campaign so it can be resumed.
func (p *Processor) OnFailure(ctx context.Context, job *queue.Job, cause error) {
	var payload dto.CampaignJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.CampaignID == 0 {
		p.log.Error("campaign job abandoned without campaign", "job_id", job.ID, "error", cause)
		return
	}

	reason := fmt.Sprintf("batch at offset %d failed: %v", payload.Offset, cause)
	if err := p.repo.RecordFailure(ctx, payload.CampaignID, reason); err != nil {
		p.log.Error("record campaign failure failed", "campaign_id", payload.CampaignID, "error", err)
		return
	}
	metrics.RecordCampaignBatch("failed")
	p.log.Warn("campaign failed", "campaign_id", payload.CampaignID, "offset", payload.Offset, "error", cause)
}
