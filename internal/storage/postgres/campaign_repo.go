package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"gorm.io/gorm"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// counterColumns maps event types to the campaign counter they increment.
var counterColumns = map[string]string{
	config.EventSent:         "sent_count",
	config.EventDelivered:    "delivered_count",
	config.EventOpened:       "opened_count",
	config.EventClicked:      "clicked_count",
	config.EventBounced:      "bounced_count",
	config.EventComplained:   "complained_count",
	config.EventUnsubscribed: "unsubscribed_count",
}

// subscriberStatusFor maps event types that take a subscriber out of the active audience.
var subscriberStatusFor = map[string]string{
	config.EventBounced:      config.SubscriberStatusBounced,
	config.EventComplained:   config.SubscriberStatusComplained,
	config.EventUnsubscribed: config.SubscriberStatusUnsubscribed,
}

// GetCampaign loads a campaign owned by tenantID. A missing campaign wraps gorm.ErrRecordNotFound.
func (r *CampaignRepository) GetCampaign(ctx context.Context, tenantID, id uint) (*models.Campaign, error) {
	var c models.Campaign
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&c).Error; err != nil {
		return nil, fmt.Errorf("get campaign %d: %w", id, err)
	}
	return &c, nil
}

func (r *CampaignRepository) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// ListActiveSubscribers returns up to limit active subscribers of the list with an id
// above afterID, in id order.
func (r *CampaignRepository) ListActiveSubscribers(ctx context.Context, tenantID, listID, afterID uint, limit int) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND list_id = ? AND status = ? AND id > ?", tenantID, listID, config.SubscriberStatusActive, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return subs, nil
}

func (r *CampaignRepository) CountActiveSubscribers(ctx context.Context, tenantID, listID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Subscriber{}).
		Where("tenant_id = ? AND list_id = ? AND status = ?", tenantID, listID, config.SubscriberStatusActive).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

func (r *CampaignRepository) GetSubscriber(ctx context.Context, tenantID, id uint) (*models.Subscriber, error) {
	var s models.Subscriber
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&s).Error; err != nil {
		return nil, fmt.Errorf("get subscriber %d: %w", id, err)
	}
	return &s, nil
}

func (r *CampaignRepository) CreateSubscriber(ctx context.Context, s *models.Subscriber) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

// TransitionStatus moves the campaign to status `to` only if its current status is one of from.
// It reports whether the row changed.
func (r *CampaignRepository) TransitionStatus(ctx context.Context, tenantID, id uint, to string, from ...string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("tenant_id = ? AND id = ? AND status IN ?", tenantID, id, from).
		Updates(map[string]any{"status": to, "failure_reason": ""})
	if res.Error != nil {
		return false, fmt.Errorf("transition campaign %d to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkSent finalizes a campaign. It is idempotent: a campaign already sent, cancelled or
// failed is left untouched and false is returned.
func (r *CampaignRepository) MarkSent(ctx context.Context, tenantID, id uint, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("tenant_id = ? AND id = ? AND status IN ?", tenantID, id, []string{
			config.CampaignStatusDraft,
			config.CampaignStatusScheduled,
			config.CampaignStatusSending,
		}).
		Updates(map[string]any{
			"status":  config.CampaignStatusSent,
			"sent_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark campaign %d sent: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecordBatchProgress stores the offset and keyset cursor of the next unprocessed batch.
func (r *CampaignRepository) RecordBatchProgress(ctx context.Context, id uint, nextOffset int, lastSubscriberID uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]any{"next_offset": nextOffset, "last_subscriber_id": lastSubscriberID}).Error; err != nil {
		return fmt.Errorf("record batch progress: %w", err)
	}
	return nil
}

// RecordFailure marks a sending campaign as failed with reason.
func (r *CampaignRepository) RecordFailure(ctx context.Context, id uint, reason string) error {
	if err := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", id, []string{config.CampaignStatusSending, config.CampaignStatusScheduled}).
		Updates(map[string]any{
			"status":         config.CampaignStatusFailed,
			"failure_reason": reason,
		}).Error; err != nil {
		return fmt.Errorf("record campaign failure: %w", err)
	}
	return nil
}

// RecordEvent stores the raw event, bumps the campaign counter for its type and, for
// bounces, complaints and unsubscribes, takes the subscriber out of the active audience.
// All three writes share one transaction.
func (r *CampaignRepository) RecordEvent(ctx context.Context, event *models.EmailEvent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		if col, ok := counterColumns[event.Type]; ok && event.CampaignID != nil {
			if err := tx.Model(&models.Campaign{}).
				Where("tenant_id = ? AND id = ?", event.TenantID, *event.CampaignID).
				UpdateColumn(col, gorm.Expr(col+" + ?", 1)).Error; err != nil {
				return fmt.Errorf("increment %s: %w", col, err)
			}
		}

		if status, ok := subscriberStatusFor[event.Type]; ok && event.SubscriberID != nil {
			if err := tx.Model(&models.Subscriber{}).
				Where("tenant_id = ? AND id = ? AND status = ?", event.TenantID, *event.SubscriberID, config.SubscriberStatusActive).
				Update("status", status).Error; err != nil {
				return fmt.Errorf("update subscriber status: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ListEvents returns the events recorded for a campaign, oldest first.
func (r *CampaignRepository) ListEvents(ctx context.Context, tenantID, campaignID uint) ([]models.EmailEvent, error) {
	var events []models.EmailEvent
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND campaign_id = ?", tenantID, campaignID).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
