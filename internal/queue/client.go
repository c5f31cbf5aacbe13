package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/metrics"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"gorm.io/datatypes"
)

// Store is the persistence the queue client and workers need.
type Store interface {
	Create(ctx context.Context, job *models.Job) error
	AcquireNext(ctx context.Context, queue, workerID string, now time.Time) (*models.Job, error)
	MarkCompleted(ctx context.Context, id uint, result datatypes.JSON, now time.Time) error
	RetryLater(ctx context.Context, id uint, availableAt time.Time, errMsg string) error
	// Postpone requeues the job like RetryLater but gives back the attempt its claim used.
	Postpone(ctx context.Context, id uint, availableAt time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id uint, errMsg string, now time.Time) error
	UpdateProgress(ctx context.Context, id uint, progress int) error
	IsPaused(ctx context.Context, queue string) (bool, error)
}

// Enqueuer is injected into every component that schedules work.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobType string, payload any, opts Options) (uint, error)
}

type Options struct {
	// Delay postpones eligibility relative to now.
	Delay time.Duration
	// AvailableAt, when set, overrides Delay.
	AvailableAt time.Time
	// Higher priority jobs are claimed first among eligible jobs.
	Priority int
	// MaxAttempts of zero uses the queue policy.
	MaxAttempts int
	// LockKey serializes jobs that touch the same entity.
	LockKey string
	// DedupKey makes the enqueue idempotent: a second job with the same key is not
	// created and the id of the first is returned.
	DedupKey string
}

type Client struct {
	store    Store
	policies map[string]Policy
	now      func() time.Time
}

func NewClient(store Store, policies map[string]Policy) *Client {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Client{store: store, policies: policies, now: time.Now}
}

var _ Enqueuer = (*Client)(nil)

// Enqueue persists a job that becomes eligible at now+Delay and returns its id.
func (c *Client) Enqueue(ctx context.Context, queueName, jobType string, payload any, opts Options) (uint, error) {
	if !slices.Contains(config.AllowedQueues, queueName) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownQueue, queueName)
	}

	if !slices.Contains(config.QueueJobTypes[queueName], jobType) {
		return 0, fmt.Errorf("%w: %s on queue %s", ErrUnknownJobType, jobType, queueName)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	policy := c.policies[queueName]

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = policy.MaxAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	now := c.now().UTC()
	availableAt := now.Add(max(opts.Delay, 0))
	if !opts.AvailableAt.IsZero() {
		availableAt = opts.AvailableAt.UTC()
	}

	job := models.Job{
		Queue:         queueName,
		Type:          jobType,
		Payload:       datatypes.JSON(raw),
		Status:        config.JobStatusQueued,
		Priority:      opts.Priority,
		AvailableAt:   availableAt,
		MaxAttempts:   maxAttempts,
		Backoff:       string(policy.Backoff.Kind),
		BackoffBaseMs: policy.Backoff.Base.Milliseconds(),
		LockKey:       opts.LockKey,
	}
	if job.Backoff == "" {
		job.Backoff = string(BackoffFixed)
	}
	if opts.DedupKey != "" {
		job.DedupKey = &opts.DedupKey
	}

	if err := c.store.Create(ctx, &job); err != nil {
		return 0, fmt.Errorf("enqueue %s/%s: %w", queueName, jobType, err)
	}

	metrics.RecordJobEnqueued(queueName, jobType)
	return job.ID, nil
}
