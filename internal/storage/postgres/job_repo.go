package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/job"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var (
	_ queue.Store          = (*JobRepository)(nil)
	_ job.JobRepoInterface = (*JobRepository)(nil)
)

// Create inserts a new job record into the database. It uses the provided
// context for cancellation and timeout propagation. A job whose DedupKey is
// already taken is not inserted; job is loaded with the existing row instead.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if job.Status == "" {
		job.Status = config.JobStatusQueued
	}
	if job.AvailableAt.IsZero() {
		job.AvailableAt = time.Now().UTC()
	}
	if job.DedupKey == nil {
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		return nil
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedup_key"}}, DoNothing: true}).
		Create(job)
	if res.Error != nil {
		return fmt.Errorf("create job: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	key := *job.DedupKey
	if err := r.db.WithContext(ctx).Where("dedup_key = ?", key).Take(job).Error; err != nil {
		return fmt.Errorf("load job with dedup key %s: %w", key, err)
	}
	return nil
}

// Get retrieves a single job record by its ID.
func (r *JobRepository) Get(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return &job, nil
}

// AcquireNext claims the best eligible job on queue: highest priority first, then
// earliest availability. Jobs whose lock key is held by a running job are skipped.
// The claim is a conditional update, so two workers can never own the same job.
// It returns nil, nil when nothing is eligible or another worker won the race.
func (r *JobRepository) AcquireNext(ctx context.Context, queueName, workerID string, now time.Time) (*models.Job, error) {
	var claimed *models.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidate models.Job
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue = ? AND status = ? AND available_at <= ?", queueName, config.JobStatusQueued, now).
			Where("(lock_key = '' OR NOT EXISTS (SELECT 1 FROM jobs AS running WHERE running.lock_key = jobs.lock_key AND running.status = ?))",
				config.JobStatusRunning).
			Order("priority DESC, available_at ASC, id ASC").
			Take(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", candidate.ID, config.JobStatusQueued).
			Updates(map[string]any{
				"status":    config.JobStatusRunning,
				"locked_by": workerID,
				"locked_at": now,
				"attempts":  gorm.Expr("attempts + ?", 1),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var job models.Job
		if err := tx.First(&job, "id = ?", candidate.ID).Error; err != nil {
			return err
		}
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("acquire job: %w", err)
	}

	return claimed, nil
}

// MarkCompleted stores the handler result and archives the job as completed.
func (r *JobRepository) MarkCompleted(ctx context.Context, id uint, result datatypes.JSON, now time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      config.JobStatusCompleted,
			"result":      result,
			"error":       "",
			"progress":    100,
			"locked_by":   "",
			"locked_at":   nil,
			"finished_at": now,
		}).Error; err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// RetryLater returns the job to the queue, eligible again at availableAt.
func (r *JobRepository) RetryLater(ctx context.Context, id uint, availableAt time.Time, errMsg string) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       config.JobStatusQueued,
			"available_at": availableAt,
			"error":        errMsg,
			"locked_by":    "",
			"locked_at":    nil,
		}).Error; err != nil {
		return fmt.Errorf("retry later: %w", err)
	}
	return nil
}

// Postpone returns the job to the queue without counting the claim as an attempt.
func (r *JobRepository) Postpone(ctx context.Context, id uint, availableAt time.Time, errMsg string) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       config.JobStatusQueued,
			"available_at": availableAt,
			"attempts":     gorm.Expr("CASE WHEN attempts > 0 THEN attempts - 1 ELSE 0 END"),
			"error":        errMsg,
			"locked_by":    "",
			"locked_at":    nil,
		}).Error; err != nil {
		return fmt.Errorf("postpone: %w", err)
	}
	return nil
}

// MarkFailed moves the job to the terminal failed state. The row is kept for inspection.
func (r *JobRepository) MarkFailed(ctx context.Context, id uint, errMsg string, now time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      config.JobStatusFailed,
			"error":       errMsg,
			"locked_by":   "",
			"locked_at":   nil,
			"finished_at": now,
		}).Error; err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (r *JobRepository) UpdateProgress(ctx context.Context, id uint, progress int) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Update("progress", progress).Error; err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// ListStuckJobs returns running jobs whose lock was taken before lockedBefore.
func (r *JobRepository) ListStuckJobs(ctx context.Context, lockedBefore time.Time) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND locked_at < ?", config.JobStatusRunning, lockedBefore).
		Order("id ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list stuck jobs: %w", err)
	}
	return jobs, nil
}

// Release hands a stuck job back to the queue, or fails it when its attempts are used up.
func (r *JobRepository) Release(ctx context.Context, id uint, now time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			return err
		}
		if job.Status != config.JobStatusRunning {
			return nil
		}

		updates := map[string]any{
			"status":       config.JobStatusQueued,
			"available_at": now,
			"locked_by":    "",
			"locked_at":    nil,
			"error":        "lock expired",
		}
		if job.Attempts >= job.MaxAttempts {
			updates["status"] = config.JobStatusFailed
			updates["finished_at"] = now
		}

		return tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", id, config.JobStatusRunning).
			Updates(updates).Error
	})
	if err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	return nil
}

// List retrieves jobs belonging to a queue, optionally filtered by status, newest first.
func (r *JobRepository) List(ctx context.Context, queueName string, status config.JobStatus, limit int) ([]models.Job, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Where("queue = ?", queueName)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var jobs []models.Job
	if err := q.Order("id DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Counts reports waiting/active/completed/failed/delayed totals for a queue.
// Queued jobs not yet eligible at now are counted as delayed.
func (r *JobRepository) Counts(ctx context.Context, queueName string, now time.Time) (*dto.QueueCounts, error) {
	var rows []struct {
		Status    config.JobStatus
		IsDelayed bool
		Total     int64
	}

	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select("status, (status = ? AND available_at > ?) AS is_delayed, COUNT(*) AS total", config.JobStatusQueued, now).
		Where("queue = ?", queueName).
		Group("status, is_delayed").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	paused, err := r.IsPaused(ctx, queueName)
	if err != nil {
		return nil, err
	}

	counts := &dto.QueueCounts{Queue: queueName, Paused: paused}
	for _, row := range rows {
		switch {
		case row.Status == config.JobStatusQueued && row.IsDelayed:
			counts.Delayed += row.Total
		case row.Status == config.JobStatusQueued:
			counts.Waiting += row.Total
		case row.Status == config.JobStatusRunning:
			counts.Active += row.Total
		case row.Status == config.JobStatusCompleted:
			counts.Completed += row.Total
		case row.Status == config.JobStatusFailed:
			counts.Failed += row.Total
		}
	}
	return counts, nil
}

func (r *JobRepository) IsPaused(ctx context.Context, queueName string) (bool, error) {
	var state models.QueueState
	err := r.db.WithContext(ctx).Where("name = ?", queueName).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("queue state: %w", err)
	}
	return state.Paused, nil
}

// SetPaused stops or restarts claiming on a queue. Running jobs are not interrupted.
func (r *JobRepository) SetPaused(ctx context.Context, queueName string, paused bool) error {
	state := models.QueueState{Name: queueName, Paused: paused, UpdatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"paused", "updated_at"}),
	}).Create(&state).Error; err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	return nil
}
