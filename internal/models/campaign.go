package models

import (
	"time"

	"gorm.io/datatypes"
)

type Campaign struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	TenantID         uint   `gorm:"not null;index"`
	Name             string `gorm:"type:varchar(255);not null"`
	Subject          string `gorm:"type:varchar(998);not null"`
	FromEmail        string `gorm:"type:varchar(255);not null"`
	FromName         string `gorm:"type:varchar(255)"`
	ReplyTo          string `gorm:"type:varchar(255)"`
	HTMLContent      string `gorm:"type:text"`
	TextContent      string `gorm:"type:text"`
	ListID           uint   `gorm:"not null;index"`
	Status           string `gorm:"type:varchar(20);not null;default:'draft'"`
	SentAt           *time.Time
	NextOffset       int    `gorm:"not null;default:0"`
	LastSubscriberID uint   `gorm:"not null;default:0"`
	FailureReason    string `gorm:"type:text"`

	SentCount         int64 `gorm:"not null;default:0"`
	DeliveredCount    int64 `gorm:"not null;default:0"`
	OpenedCount       int64 `gorm:"not null;default:0"`
	ClickedCount      int64 `gorm:"not null;default:0"`
	BouncedCount      int64 `gorm:"not null;default:0"`
	ComplainedCount   int64 `gorm:"not null;default:0"`
	UnsubscribedCount int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

type Subscriber struct {
	ID           uint           `gorm:"primaryKey;autoIncrement"`
	TenantID     uint           `gorm:"not null;index:idx_subscribers_audience,priority:1"`
	ListID       uint           `gorm:"not null;index:idx_subscribers_audience,priority:2"`
	Email        string         `gorm:"type:varchar(255);not null"`
	FirstName    string         `gorm:"type:varchar(255)"`
	LastName     string         `gorm:"type:varchar(255)"`
	Status       string         `gorm:"type:varchar(20);not null;default:'active';index:idx_subscribers_audience,priority:3"`
	CustomFields datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
}

type EmailEvent struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	TenantID     uint   `gorm:"not null;index"`
	CampaignID   *uint  `gorm:"index"`
	SubscriberID *uint  `gorm:"index"`
	AutomationID *uint
	MessageID    string         `gorm:"type:varchar(255)"`
	Type         string         `gorm:"type:varchar(20);not null"`
	LinkURL      string         `gorm:"type:text"`
	Data         datatypes.JSON `gorm:"type:jsonb"`
	OccurredAt   time.Time      `gorm:"not null"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
}
