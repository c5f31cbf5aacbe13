package dto

import (
	"encoding/json"
	"time"
)

type AutomationJobPayload struct {
	TenantID     uint   `json:"tenantId" validate:"required"`
	AutomationID uint   `json:"automationId" validate:"required"`
	SubscriberID uint   `json:"subscriberId" validate:"required"`
	StepIndex    int    `json:"stepIndex" validate:"gte=0"`
	ExecutionID  string `json:"executionId" validate:"required,uuid"`
}

type AutomationPublishDTO struct {
	TenantID uint `json:"tenantId" validate:"required"`
}

type ExecutionStartDTO struct {
	TenantID     uint           `json:"tenantId" validate:"required"`
	SubscriberID uint           `json:"subscriberId" validate:"required"`
	Variables    map[string]any `json:"variables,omitempty"`
}

type ExecutionStartedDTO struct {
	ExecutionID string `json:"executionId,omitempty"`
	Started     bool   `json:"started"`
}

type ExecutionResponseDTO struct {
	ID               string          `json:"id"`
	AutomationID     uint            `json:"automationId"`
	SubscriberID     uint            `json:"subscriberId"`
	Status           string          `json:"status"`
	CurrentNodeID    string          `json:"currentNodeId,omitempty"`
	StepIndex        int             `json:"stepIndex"`
	Variables        json.RawMessage `json:"variables,omitempty"`
	LastExecutedNode string          `json:"lastExecutedNode,omitempty"`
	LastExecutedAt   *time.Time      `json:"lastExecutedAt,omitempty"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
	FailureReason    string          `json:"failureReason,omitempty"`
}
