package dto

import "time"

type EventData struct {
	CampaignID   *uint          `json:"campaignId,omitempty"`
	SubscriberID *uint          `json:"subscriberId,omitempty"`
	AutomationID *uint          `json:"automationId,omitempty"`
	EmailID      string         `json:"emailId,omitempty"`
	LinkURL      string         `json:"linkUrl,omitempty" validate:"omitempty,url"`
	Extra        map[string]any `json:"extra,omitempty"`
}

type AnalyticsJobPayload struct {
	TenantID  uint      `json:"tenantId" validate:"required"`
	EventType string    `json:"eventType" validate:"required,oneof=SENT DELIVERED OPENED CLICKED BOUNCED COMPLAINED UNSUBSCRIBED"`
	EventData EventData `json:"eventData"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}
