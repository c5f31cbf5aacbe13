package queue

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"gorm.io/datatypes"
)

// ProgressFunc persists a job's progress percentage.
type ProgressFunc func(ctx context.Context, id uint, progress int) error

// Job is the handler's view of a claimed job.
type Job struct {
	ID          uint
	Queue       string
	Type        string
	Payload     datatypes.JSON
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time

	progress ProgressFunc
}

func NewJob(m *models.Job, progress ProgressFunc) *Job {
	return &Job{
		ID:          m.ID,
		Queue:       m.Queue,
		Type:        m.Type,
		Payload:     m.Payload,
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		CreatedAt:   m.CreatedAt,
		progress:    progress,
	}
}

// Decode unmarshals and validates the payload. A malformed payload is permanent.
func Decode[T any](job *Job) (T, error) {
	payload, err := dto.Decode[T](job.Payload)
	if err != nil {
		return payload, Permanent(fmt.Errorf("job %d: %w", job.ID, err))
	}
	return payload, nil
}

// ReportProgress records progress in [0,100]. It is informational only.
func (j *Job) ReportProgress(ctx context.Context, pct int) error {
	if j.progress == nil {
		return nil
	}
	return j.progress(ctx, j.ID, min(max(pct, 0), 100))
}

// LastAttempt reports whether a failure now would abandon the job.
func (j *Job) LastAttempt() bool {
	return j.Attempts >= j.MaxAttempts
}

type Handler func(ctx context.Context, job *Job) (any, error)

// FailureHook runs once when a job is abandoned, so the failure can be recorded on
// the domain entity the job referenced.
type FailureHook func(ctx context.Context, job *Job, err error)

type route struct {
	handler Handler
	onFail  FailureHook
}

type Registry struct {
	mu     sync.RWMutex
	routes map[string]route
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]route)}
}

func routeKey(queueName, jobType string) string {
	return queueName + "/" + jobType
}

func (r *Registry) Register(queueName, jobType string, h Handler, onFail FailureHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[routeKey(queueName, jobType)] = route{handler: h, onFail: onFail}
}

func (r *Registry) Lookup(queueName, jobType string) (Handler, FailureHook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routes[routeKey(queueName, jobType)]
	return rt.handler, rt.onFail, ok
}

// Queues lists every queue with at least one registered handler.
func (r *Registry) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var queues []string
	for key := range r.routes {
		q, _, _ := strings.Cut(key, "/")
		if !slices.Contains(queues, q) {
			queues = append(queues, q)
		}
	}
	slices.Sort(queues)
	return queues
}
