package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
)

// ErrInvalidState is returned when a campaign cannot make the requested transition.
var ErrInvalidState = errors.New("campaign state does not allow this operation")

type Service struct {
	repo     Repository
	enqueuer queue.Enqueuer
	log      *slog.Logger
}

func NewService(repo Repository, enqueuer queue.Enqueuer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, enqueuer: enqueuer, log: log.With("component", "campaign")}
}

// StartSend moves a draft or scheduled campaign to sending and enqueues its first batch.
func (s *Service) StartSend(ctx context.Context, tenantID, campaignID uint, batchSize int) error {
	changed, err := s.repo.TransitionStatus(ctx, tenantID, campaignID, config.CampaignStatusSending,
		config.CampaignStatusDraft, config.CampaignStatusScheduled)
	if err != nil {
		return err
	}
	if !changed {
		return s.stateError(ctx, tenantID, campaignID, "send")
	}

	if err := s.enqueueBatch(ctx, tenantID, campaignID, batchSize, 0, 0); err != nil {
		if rErr := s.repo.RecordFailure(ctx, campaignID, "first batch not enqueued: "+err.Error()); rErr != nil {
			s.log.Error("record campaign failure failed", "campaign_id", campaignID, "error", rErr)
		}
		return err
	}

	s.log.Info("campaign send started", "campaign_id", campaignID)
	return nil
}

// Cancel stops a campaign that has not finished. Batches already queued become no-ops.
func (s *Service) Cancel(ctx context.Context, tenantID, campaignID uint) error {
	changed, err := s.repo.TransitionStatus(ctx, tenantID, campaignID, config.CampaignStatusCancelled,
		config.CampaignStatusDraft, config.CampaignStatusScheduled, config.CampaignStatusSending)
	if err != nil {
		return err
	}
	if !changed {
		return s.stateError(ctx, tenantID, campaignID, "cancel")
	}

	s.log.Info("campaign cancelled", "campaign_id", campaignID)
	return nil
}

// Resume re-enqueues the chain after the last recorded subscriber. It recovers failed
// campaigns and sending campaigns whose chain stalled. It returns the resume offset.
func (s *Service) Resume(ctx context.Context, tenantID, campaignID uint, batchSize int) (int, error) {
	c, err := s.repo.GetCampaign(ctx, tenantID, campaignID)
	if err != nil {
		return 0, err
	}

	switch c.Status {
	case config.CampaignStatusFailed:
		changed, err := s.repo.TransitionStatus(ctx, tenantID, campaignID, config.CampaignStatusSending, config.CampaignStatusFailed)
		if err != nil {
			return 0, err
		}
		if !changed {
			return 0, s.stateError(ctx, tenantID, campaignID, "resume")
		}
	case config.CampaignStatusSending:
	default:
		return 0, fmt.Errorf("resume campaign %d in status %s: %w", campaignID, c.Status, ErrInvalidState)
	}

	if err := s.enqueueBatch(ctx, tenantID, campaignID, batchSize, c.NextOffset, c.LastSubscriberID); err != nil {
		return 0, err
	}

	s.log.Info("campaign resumed", "campaign_id", campaignID, "offset", c.NextOffset)
	return c.NextOffset, nil
}

func (s *Service) Status(ctx context.Context, tenantID, campaignID uint) (*dto.CampaignStatusDTO, error) {
	c, err := s.repo.GetCampaign(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}

	audience, err := s.repo.CountActiveSubscribers(ctx, c.TenantID, c.ListID)
	if err != nil {
		return nil, err
	}

	return &dto.CampaignStatusDTO{
		ID:            c.ID,
		Status:        c.Status,
		SentAt:        c.SentAt,
		NextOffset:    c.NextOffset,
		Audience:      audience,
		FailureReason: c.FailureReason,
		Sent:          c.SentCount,
		Delivered:     c.DeliveredCount,
		Opened:        c.OpenedCount,
		Clicked:       c.ClickedCount,
		Bounced:       c.BouncedCount,
		Complained:    c.ComplainedCount,
		Unsubscribed:  c.UnsubscribedCount,
	}, nil
}

func (s *Service) enqueueBatch(ctx context.Context, tenantID, campaignID uint, batchSize, offset int, afterID uint) error {
	payload := dto.CampaignJobPayload{
		TenantID:   tenantID,
		CampaignID: campaignID,
		BatchSize:  batchSize,
		Offset:     offset,
		AfterID:    afterID,
	}
	if _, err := s.enqueuer.Enqueue(ctx, config.QueueCampaign, config.JobTypeProcessCampaign, payload, queue.Options{
		LockKey: LockKey(campaignID),
	}); err != nil {
		return fmt.Errorf("enqueue campaign batch: %w", err)
	}
	return nil
}

// stateError distinguishes a missing campaign from one in the wrong state.
func (s *Service) stateError(ctx context.Context, tenantID, campaignID uint, op string) error {
	c, err := s.repo.GetCampaign(ctx, tenantID, campaignID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%s campaign %d in status %s: %w", op, campaignID, c.Status, ErrInvalidState)
}
