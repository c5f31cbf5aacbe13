// Package ingest turns provider delivery events read from RabbitMQ into analytics jobs.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
)

var ErrMalformed = errors.New("malformed delivery event")

// DeliveryEvent is the message a delivery provider webhook bridge publishes.
type DeliveryEvent struct {
	TenantID     uint           `json:"tenantId"`
	Event        string         `json:"event"`
	MessageID    string         `json:"messageId"`
	CampaignID   *uint          `json:"campaignId,omitempty"`
	SubscriberID *uint          `json:"subscriberId,omitempty"`
	AutomationID *uint          `json:"automationId,omitempty"`
	URL          string         `json:"url,omitempty"`
	Timestamp    *time.Time     `json:"timestamp,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// providerEvents maps provider event names onto analytics event types.
var providerEvents = map[string]string{
	"sent":         config.EventSent,
	"delivered":    config.EventDelivered,
	"delivery":     config.EventDelivered,
	"open":         config.EventOpened,
	"opened":       config.EventOpened,
	"click":        config.EventClicked,
	"clicked":      config.EventClicked,
	"bounce":       config.EventBounced,
	"bounced":      config.EventBounced,
	"complaint":    config.EventComplained,
	"complained":   config.EventComplained,
	"spamreport":   config.EventComplained,
	"unsubscribe":  config.EventUnsubscribed,
	"unsubscribed": config.EventUnsubscribed,
}

// ToPayload converts the event. Unknown event names and invalid fields are malformed.
func (e DeliveryEvent) ToPayload(now time.Time) (dto.AnalyticsJobPayload, error) {
	eventType, ok := providerEvents[strings.ToLower(strings.TrimSpace(e.Event))]
	if !ok {
		return dto.AnalyticsJobPayload{}, fmt.Errorf("%w: unknown event %q", ErrMalformed, e.Event)
	}

	ts := now
	if e.Timestamp != nil {
		ts = *e.Timestamp
	}

	p := dto.AnalyticsJobPayload{
		TenantID:  e.TenantID,
		EventType: eventType,
		EventData: dto.EventData{
			CampaignID:   e.CampaignID,
			SubscriberID: e.SubscriberID,
			AutomationID: e.AutomationID,
			EmailID:      e.MessageID,
			LinkURL:      e.URL,
			Extra:        e.Data,
		},
		Timestamp: ts.UTC(),
	}
	if err := dto.Validate(p); err != nil {
		return dto.AnalyticsJobPayload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return p, nil
}

type Consumer struct {
	enqueuer queue.Enqueuer
	log      *slog.Logger
	now      func() time.Time
}

func NewConsumer(enqueuer queue.Enqueuer, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{enqueuer: enqueuer, log: log.With("component", "ingest"), now: time.Now}
}

// Handle enqueues one analytics job for a message body.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var e DeliveryEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	p, err := e.ToPayload(c.now())
	if err != nil {
		return err
	}

	if _, err := c.enqueuer.Enqueue(ctx, config.QueueAnalytics, config.JobTypeRecordEvent, p, queue.Options{}); err != nil {
		return fmt.Errorf("enqueue analytics event: %w", err)
	}
	return nil
}

// Run dispatches deliveries until ctx is done or the channel closes. Malformed messages
// are rejected without requeue so the broker can dead-letter them; enqueue failures
// are requeued.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	c.log.Info("delivery event consumer started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("delivery event consumer stopped")
			return

		case d, ok := <-deliveries:
			if !ok {
				c.log.Warn("delivery channel closed")
				return
			}
			c.dispatch(ctx, d)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	err := c.Handle(ctx, d.Body)

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error("ack delivery event", "delivery_tag", d.DeliveryTag, "error", ackErr)
		}
	case errors.Is(err, ErrMalformed):
		c.log.Error("dropping malformed delivery event", "delivery_tag", d.DeliveryTag, "error", err, "body", string(d.Body))
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.log.Error("nack malformed delivery event", "delivery_tag", d.DeliveryTag, "error", nackErr)
		}
	default:
		c.log.Warn("requeueing delivery event", "delivery_tag", d.DeliveryTag, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.log.Error("nack delivery event", "delivery_tag", d.DeliveryTag, "error", nackErr)
		}
	}
}
