package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/metrics"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"github.com/webramesh/email-marketing-sub000/internal/ratelimit"
)

var ErrSendRejected = errors.New("transport rejected message")

type SendOutcome struct {
	MessageID string `json:"messageId"`
}

// Handler consumes the email queue.
type Handler struct {
	transport Transport
	limiter   ratelimit.Limiter
	enqueuer  queue.Enqueuer
	log       *slog.Logger
	now       func() time.Time
}

func NewHandler(transport Transport, limiter ratelimit.Limiter, enqueuer queue.Enqueuer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		transport: transport,
		limiter:   limiter,
		enqueuer:  enqueuer,
		log:       log.With("component", "mailer"),
		now:       time.Now,
	}
}

func (h *Handler) Register(r *queue.Registry) {
	r.Register(config.QueueEmail, config.JobTypeSendEmail, h.Handle, h.OnFailure)
}

// Handle sends one email. A tenant over its rate limit gets queue.ErrRateLimited so
// the job is retried after the fixed email backoff.
func (h *Handler) Handle(ctx context.Context, job *queue.Job) (any, error) {
	p, err := queue.Decode[dto.EmailJobPayload](job)
	if err != nil {
		return nil, err
	}

	allowed, err := h.limiter.Allow(ctx, p.TenantID)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if !allowed {
		metrics.RecordRateLimited()
		return nil, fmt.Errorf("tenant %d: %w", p.TenantID, queue.ErrRateLimited)
	}

	res, err := h.transport.SendEmail(ctx, p.Message, p.TenantID)
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrSendRejected, res.Error)
	}

	// the send already happened; a lost SENT event must not cause a second send
	if err := h.recordSent(ctx, p, res.MessageID); err != nil {
		h.log.Error("enqueue SENT event failed", "job_id", job.ID, "message_id", res.MessageID, "error", err)
	}

	return SendOutcome{MessageID: res.MessageID}, nil
}

func (h *Handler) recordSent(ctx context.Context, p dto.EmailJobPayload, messageID string) error {
	event := dto.AnalyticsJobPayload{
		TenantID:  p.TenantID,
		EventType: config.EventSent,
		EventData: dto.EventData{
			CampaignID:   p.CampaignID,
			SubscriberID: p.SubscriberID,
			AutomationID: p.AutomationID,
			EmailID:      messageID,
		},
		Timestamp: h.now().UTC(),
	}

	_, err := h.enqueuer.Enqueue(ctx, config.QueueAnalytics, config.JobTypeRecordEvent, event, queue.Options{})
	return err
}

// OnFailure records an abandoned send.
func (h *Handler) OnFailure(_ context.Context, job *queue.Job, err error) {
	h.log.Error("email send abandoned",
		"job_id", job.ID,
		"attempts", job.Attempts,
		"rate_limited", errors.Is(err, queue.ErrRateLimited),
		"error", err,
	)
}
