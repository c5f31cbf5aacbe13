// Package analytics consumes the analytics queue: it stores delivery and engagement
// events, maintains campaign counters and fires engagement triggers.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"gorm.io/datatypes"
)

// EventStore persists an event together with its counter and subscriber status effects.
type EventStore interface {
	RecordEvent(ctx context.Context, event *models.EmailEvent) error
}

type Triggers interface {
	HandleEmailOpenedTrigger(ctx context.Context, tenantID, subscriberID uint, campaignID *uint, emailID string) (int, error)
	HandleEmailClickedTrigger(ctx context.Context, tenantID, subscriberID uint, campaignID *uint, linkURL, emailID string) (int, error)
}

type Result struct {
	EventID   uint `json:"eventId"`
	Triggered int  `json:"triggered"`
}

type Recorder struct {
	events   EventStore
	triggers Triggers
	log      *slog.Logger
}

// NewRecorder builds the analytics handler. triggers may be nil to disable automation triggers.
func NewRecorder(events EventStore, triggers Triggers, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{events: events, triggers: triggers, log: log.With("component", "analytics")}
}

func (r *Recorder) Register(reg *queue.Registry) {
	reg.Register(config.QueueAnalytics, config.JobTypeRecordEvent, r.Handle, nil)
}

func (r *Recorder) Handle(ctx context.Context, job *queue.Job) (any, error) {
	p, err := queue.Decode[dto.AnalyticsJobPayload](job)
	if err != nil {
		return nil, err
	}
	return r.Record(ctx, p)
}

// Record stores the event. Trigger failures are logged and never fail the event:
// the event is already committed and a retry would count it twice.
func (r *Recorder) Record(ctx context.Context, p dto.AnalyticsJobPayload) (Result, error) {
	event := &models.EmailEvent{
		TenantID:     p.TenantID,
		CampaignID:   p.EventData.CampaignID,
		SubscriberID: p.EventData.SubscriberID,
		AutomationID: p.EventData.AutomationID,
		MessageID:    p.EventData.EmailID,
		Type:         p.EventType,
		LinkURL:      p.EventData.LinkURL,
		OccurredAt:   p.Timestamp.UTC(),
	}
	if len(p.EventData.Extra) > 0 {
		raw, err := json.Marshal(p.EventData.Extra)
		if err != nil {
			return Result{}, queue.Permanent(fmt.Errorf("event data: %w", err))
		}
		event.Data = datatypes.JSON(raw)
	}

	if err := r.events.RecordEvent(ctx, event); err != nil {
		return Result{}, err
	}

	res := Result{EventID: event.ID}
	if r.triggers == nil || p.EventData.SubscriberID == nil {
		return res, nil
	}

	subscriberID := *p.EventData.SubscriberID
	var (
		n   int
		err error
	)
	switch p.EventType {
	case config.EventOpened:
		n, err = r.triggers.HandleEmailOpenedTrigger(ctx, p.TenantID, subscriberID, p.EventData.CampaignID, p.EventData.EmailID)
	case config.EventClicked:
		n, err = r.triggers.HandleEmailClickedTrigger(ctx, p.TenantID, subscriberID, p.EventData.CampaignID, p.EventData.LinkURL, p.EventData.EmailID)
	default:
		return res, nil
	}
	if err != nil {
		r.log.Error("automation trigger failed",
			"event_id", event.ID,
			"event_type", p.EventType,
			"subscriber_id", subscriberID,
			"error", err,
		)
	}
	res.Triggered = n
	return res, nil
}
