package mailer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
)

type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

// Transport delivers one message on behalf of a tenant. An unsuccessful result is
// retried like an error.
type Transport interface {
	SendEmail(ctx context.Context, msg dto.EmailMessage, tenantID uint) (SendResult, error)
}

// LogTransport accepts every message and only logs it.
type LogTransport struct {
	log *slog.Logger
}

func NewLogTransport(log *slog.Logger) *LogTransport {
	if log == nil {
		log = slog.Default()
	}
	return &LogTransport{log: log}
}

var _ Transport = (*LogTransport)(nil)

func (t *LogTransport) SendEmail(ctx context.Context, msg dto.EmailMessage, tenantID uint) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}

	id := uuid.NewString()
	t.log.Info("email accepted",
		"tenant_id", tenantID,
		"message_id", id,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return SendResult{Success: true, MessageID: id}, nil
}
