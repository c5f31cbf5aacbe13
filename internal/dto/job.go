package dto

import (
	"encoding/json"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
)

type JobCreateDTO struct {
	Queue       string          `json:"queue" validate:"required"`
	Type        string          `json:"type" validate:"required"`
	Payload     json.RawMessage `json:"payload" validate:"required"`
	Priority    int             `json:"priority" validate:"gte=-100,lte=100"`
	MaxAttempts int             `json:"max_attempts" validate:"gte=0,lte=20"`
	AvailableAt *time.Time      `json:"available_at,omitempty"`
}

type JobCreatedDTO struct {
	ID uint `json:"id"`
}

type JobResponseDTO struct {
	ID          uint             `json:"id"`
	Queue       string           `json:"queue"`
	Type        string           `json:"type"`
	Payload     json.RawMessage  `json:"payload"`
	Status      config.JobStatus `json:"status"`
	Priority    int              `json:"priority"`
	Attempts    int              `json:"attempts"`
	MaxAttempts int              `json:"max_attempts"`
	Progress    int              `json:"progress"`
	AvailableAt time.Time        `json:"available_at"`
	Result      json.RawMessage  `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// QueueCounts is the per-queue introspection snapshot.
type QueueCounts struct {
	Queue     string `json:"queue"`
	Paused    bool   `json:"paused"`
	Waiting   int64  `json:"waiting"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	Delayed   int64  `json:"delayed"`
}
