package dto

import "time"

type CampaignJobPayload struct {
	TenantID   uint `json:"tenantId" validate:"required"`
	CampaignID uint `json:"campaignId" validate:"required"`
	BatchSize  int  `json:"batchSize,omitempty" validate:"gte=0,lte=10000"`
	Offset     int  `json:"offset,omitempty" validate:"gte=0"`
	AfterID    uint `json:"afterId,omitempty"`
}

type CampaignSendDTO struct {
	TenantID  uint `json:"tenantId" validate:"required"`
	BatchSize int  `json:"batchSize,omitempty" validate:"gte=0,lte=10000"`
}

type CampaignStatusDTO struct {
	ID            uint       `json:"id"`
	Status        string     `json:"status"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
	NextOffset    int        `json:"nextOffset"`
	Audience      int64      `json:"audience"`
	FailureReason string     `json:"failureReason,omitempty"`
	Sent          int64      `json:"sent"`
	Delivered     int64      `json:"delivered"`
	Opened        int64      `json:"opened"`
	Clicked       int64      `json:"clicked"`
	Bounced       int64      `json:"bounced"`
	Complained    int64      `json:"complained"`
	Unsubscribed  int64      `json:"unsubscribed"`
}

type CampaignCancelDTO struct {
	TenantID uint `json:"tenantId" validate:"required"`
}

type CampaignResumedDTO struct {
	Offset int `json:"offset"`
}
