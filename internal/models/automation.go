package models

import (
	"time"

	"gorm.io/datatypes"
)

type Automation struct {
	ID                uint           `gorm:"primaryKey;autoIncrement"`
	TenantID          uint           `gorm:"not null;index:idx_automations_trigger,priority:1"`
	Name              string         `gorm:"type:varchar(255);not null"`
	Status            string         `gorm:"type:varchar(20);not null;default:'draft';index:idx_automations_trigger,priority:2"`
	Mode              string         `gorm:"type:varchar(20);not null;default:'graph'"`
	Definition        datatypes.JSON `gorm:"type:jsonb"`
	Steps             datatypes.JSON `gorm:"type:jsonb"`
	TriggerType       string         `gorm:"type:varchar(50);index:idx_automations_trigger,priority:3"`
	TriggerCampaignID *uint
	TriggerLinkURL    string `gorm:"type:text"`
	PublishedAt       *time.Time
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// AutomationExecution is the persisted checkpoint of one subscriber's run through an automation.
type AutomationExecution struct {
	ID               string         `gorm:"primaryKey;type:varchar(36)"`
	TenantID         uint           `gorm:"not null;index"`
	AutomationID     uint           `gorm:"not null;index:idx_executions_subscriber,priority:1"`
	SubscriberID     uint           `gorm:"not null;index:idx_executions_subscriber,priority:2"`
	Status           string         `gorm:"type:varchar(20);not null;index"`
	CurrentNodeID    string         `gorm:"type:varchar(128)"`
	StepIndex        int            `gorm:"not null;default:0"`
	Variables        datatypes.JSON `gorm:"type:jsonb"`
	LastExecutedNode string         `gorm:"type:varchar(128)"`
	LastExecutedAt   *time.Time
	CompletedAt      *time.Time
	FailureReason    string    `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// All lists every model for auto-migration.
func All() []any {
	return []any{
		&Job{}, &QueueState{},
		&Campaign{}, &Subscriber{}, &EmailEvent{},
		&Automation{}, &AutomationExecution{},
	}
}

// ExecutionCheckpoint is the progress written after a step and before its successor is enqueued.
type ExecutionCheckpoint struct {
	CurrentNodeID    string
	Variables        datatypes.JSON
	LastExecutedNode string
	LastExecutedAt   time.Time
}
