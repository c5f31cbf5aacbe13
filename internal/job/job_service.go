package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/webramesh/email-marketing-sub000/common"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"gorm.io/gorm"
)

type JobService struct {
	repo     JobRepoInterface
	enqueuer queue.Enqueuer
	now      func() time.Time
}

func NewJobService(repo JobRepoInterface, enqueuer queue.Enqueuer) *JobService {
	return &JobService{repo: repo, enqueuer: enqueuer, now: time.Now}
}

var _ JobServiceInterface = (*JobService)(nil)

// CreateJob validates the queue, job type and payload, then enqueues the job
// under its queue policy. It returns the new job id.
func (s *JobService) CreateJob(ctx context.Context, dto *dto.JobCreateDTO) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if !json.Valid(dto.Payload) {
		return 0, common.Errf(http.StatusBadRequest, "payload must be valid JSON")
	}

	if err := validateQueue(dto.Queue); err != nil {
		return 0, err
	}

	if !slices.Contains(config.QueueJobTypes[dto.Queue], dto.Type) {
		return 0, common.NewAPIError(
			http.StatusBadRequest,
			"invalid job type",
			map[string]any{
				"provided": dto.Type,
				"allowed":  config.QueueJobTypes[dto.Queue],
			},
		)
	}

	if err := validatePayload(dto.Type, dto.Payload); err != nil {
		return 0, err
	}

	opts := queue.Options{
		Priority:    dto.Priority,
		MaxAttempts: dto.MaxAttempts,
	}
	if dto.AvailableAt != nil {
		opts.AvailableAt = *dto.AvailableAt
	}

	id, err := s.enqueuer.Enqueue(ctx, dto.Queue, dto.Type, dto.Payload, opts)
	if err != nil {
		return 0, common.FromError(err, "failed to add job to database")
	}

	return id, nil
}

// GetJobByID retrieves a job by its ID from the repository.
// It maps repository errors to appropriate API errors
// (e.g., not found, timeout, or internal failure).
func (s *JobService) GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.Errf(http.StatusNotFound, "job not found")
		}
		return nil, common.FromError(err, "failed to get job")
	}

	resp := toResponse(job)
	return &resp, nil
}

// ListJobs retrieves the most recent jobs of a queue, optionally filtered by status.
func (s *JobService) ListJobs(ctx context.Context, queueName string, status config.JobStatus, limit int) ([]dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	if err := validateQueue(queueName); err != nil {
		return nil, err
	}

	if status != "" && !slices.Contains(config.AllowedJobStatuses, status) {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid status",
			map[string]any{"provided": status, "allowed": config.AllowedJobStatuses},
		)
	}

	jobs, err := s.repo.List(ctx, queueName, status, limit)
	if err != nil {
		return nil, common.FromError(err, "failed to list jobs")
	}

	dtos := make([]dto.JobResponseDTO, len(jobs))
	for i := range jobs {
		dtos[i] = toResponse(&jobs[i])
	}

	return dtos, nil
}

// QueueStats returns the waiting/active/completed/failed/delayed counts of a queue.
func (s *JobService) QueueStats(ctx context.Context, queueName string) (*dto.QueueCounts, error) {
	if err := validateQueue(queueName); err != nil {
		return nil, err
	}

	counts, err := s.repo.Counts(ctx, queueName, s.now().UTC())
	if err != nil {
		return nil, common.FromError(err, "failed to count jobs")
	}
	return counts, nil
}

// PauseQueue stops workers from claiming new jobs on the queue.
func (s *JobService) PauseQueue(ctx context.Context, queueName string) error {
	return s.setPaused(ctx, queueName, true)
}

func (s *JobService) ResumeQueue(ctx context.Context, queueName string) error {
	return s.setPaused(ctx, queueName, false)
}

func (s *JobService) setPaused(ctx context.Context, queueName string, paused bool) error {
	if err := validateQueue(queueName); err != nil {
		return err
	}

	if err := s.repo.SetPaused(ctx, queueName, paused); err != nil {
		return common.FromError(err, "failed to update queue state")
	}
	return nil
}

func validateQueue(name string) error {
	if slices.Contains(config.AllowedQueues, name) {
		return nil
	}
	return common.NewAPIError(
		http.StatusBadRequest,
		"invalid queue",
		map[string]any{
			"provided": name,
			"allowed":  config.AllowedQueues,
		},
	)
}

func toResponse(job *models.Job) dto.JobResponseDTO {
	return dto.JobResponseDTO{
		ID:          job.ID,
		Queue:       job.Queue,
		Type:        job.Type,
		Payload:     json.RawMessage(job.Payload),
		Status:      job.Status,
		Priority:    job.Priority,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		Progress:    job.Progress,
		AvailableAt: job.AvailableAt,
		Result:      json.RawMessage(job.Result),
		Error:       job.Error,
		FinishedAt:  job.FinishedAt,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}
