package dto

import "time"

type EmailMessage struct {
	To       string `json:"to" validate:"required,email"`
	From     string `json:"from" validate:"required,email"`
	FromName string `json:"fromName,omitempty"`
	ReplyTo  string `json:"replyTo,omitempty" validate:"omitempty,email"`
	Subject  string `json:"subject" validate:"required"`
	HTML     string `json:"html" validate:"required"`
	Text     string `json:"text,omitempty"`
}

// EmailJobPayload is one send, consumed once by the email queue.
type EmailJobPayload struct {
	TenantID     uint           `json:"tenantId" validate:"required"`
	Message      EmailMessage   `json:"message"`
	CampaignID   *uint          `json:"campaignId,omitempty"`
	SubscriberID *uint          `json:"subscriberId,omitempty"`
	AutomationID *uint          `json:"automationId,omitempty"`
	Priority     int            `json:"priority,omitempty"`
	SendAt       *time.Time     `json:"sendAt,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
