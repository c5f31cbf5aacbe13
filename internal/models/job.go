package models

import (
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"gorm.io/datatypes"
)

type Job struct {
	ID            uint             `gorm:"primaryKey;autoIncrement"`
	Queue         string           `gorm:"type:varchar(64);not null;index:idx_jobs_claim,priority:1"`
	Type          string           `gorm:"type:varchar(64);not null"`
	Payload       datatypes.JSON   `gorm:"type:jsonb"`
	Status        config.JobStatus `gorm:"type:varchar(20);not null;default:'queued';index:idx_jobs_claim,priority:2"`
	Priority      int              `gorm:"not null;default:0"`
	AvailableAt   time.Time        `gorm:"not null;index:idx_jobs_claim,priority:3"`
	Attempts      int              `gorm:"not null;default:0"`
	MaxAttempts   int              `gorm:"not null;default:3"`
	Backoff       string           `gorm:"type:varchar(20);not null;default:'fixed'"`
	BackoffBaseMs int64            `gorm:"not null;default:0"`
	Progress      int              `gorm:"not null;default:0"`
	LockKey       string           `gorm:"type:varchar(128);not null;default:'';index"`
	DedupKey      *string          `gorm:"type:varchar(191);uniqueIndex"`
	LockedBy      string           `gorm:"type:varchar(128)"`
	LockedAt      *time.Time
	Result        datatypes.JSON `gorm:"type:jsonb"`
	Error         string         `gorm:"type:text"`
	FinishedAt    *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// QueueState records operator controls for a named queue.
type QueueState struct {
	Name      string `gorm:"primaryKey;type:varchar(64)"`
	Paused    bool   `gorm:"not null;default:false"`
	UpdatedAt time.Time
}
