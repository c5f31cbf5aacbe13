package job

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
)

// JobRepoInterface defines the read and admin operations on stored jobs.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uint) (*models.Job, error)
	List(ctx context.Context, queue string, status config.JobStatus, limit int) ([]models.Job, error)
	Counts(ctx context.Context, queue string, now time.Time) (*dto.QueueCounts, error)
	SetPaused(ctx context.Context, queue string, paused bool) error
}

// JobServiceInterface defines the contract for job business logic operations.
type JobServiceInterface interface {
	CreateJob(ctx context.Context, dto *dto.JobCreateDTO) (uint, error)
	GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, queue string, status config.JobStatus, limit int) ([]dto.JobResponseDTO, error)
	QueueStats(ctx context.Context, queue string) (*dto.QueueCounts, error)
	PauseQueue(ctx context.Context, queue string) error
	ResumeQueue(ctx context.Context, queue string) error
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Stats(c *gin.Context)
	Pause(c *gin.Context)
	Resume(c *gin.Context)
}
