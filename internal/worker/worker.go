package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/metrics"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"gorm.io/datatypes"
)

type Options struct {
	// PollInterval is the wait after a processed job and the first idle wait.
	PollInterval time.Duration
	// MaxIdleDelay caps the doubling idle wait.
	MaxIdleDelay time.Duration
	// JobTimeout bounds every handler invocation.
	JobTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxIdleDelay < o.PollInterval {
		o.MaxIdleDelay = 60 * o.PollInterval
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 2 * time.Minute
	}
	return o
}

// Worker claims and runs jobs from a single queue, one at a time.
type Worker struct {
	ID       string
	queue    string
	store    queue.Store
	registry *queue.Registry
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	quit chan struct{}
	done chan struct{}
}

func NewWorker(id, queueName string, store queue.Store, registry *queue.Registry, opts Options, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		ID:       id,
		queue:    queueName,
		store:    store,
		registry: registry,
		opts:     opts.withDefaults(),
		log:      log.With("worker", id, "queue", queueName),
		now:      time.Now,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the claim loop in a goroutine until Stop is called or ctx is done.
// Idle polls back off exponentially up to MaxIdleDelay.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)

		currentDelay := w.opts.PollInterval

		for {
			processed, err := w.RunOnce(ctx)
			if err != nil {
				w.log.Error("claim failed", "error", err)
			}

			if processed {
				currentDelay = w.opts.PollInterval
			} else {
				currentDelay = min(currentDelay*2, w.opts.MaxIdleDelay)
			}

			// drain eagerly while work is available
			if processed {
				select {
				case <-w.quit:
					return
				case <-ctx.Done():
					return
				default:
					continue
				}
			}

			select {
			case <-time.After(currentDelay):
			case <-w.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RunOnce claims at most one job and processes it. It reports whether a job was processed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	paused, err := w.store.IsPaused(ctx, w.queue)
	if err != nil {
		return false, err
	}
	if paused {
		return false, nil
	}

	m, err := w.store.AcquireNext(ctx, w.queue, w.ID, w.now().UTC())
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}

	w.process(ctx, m)
	return true, nil
}

func (w *Worker) process(ctx context.Context, m *models.Job) {
	log := w.log.With("job_id", m.ID, "type", m.Type, "attempt", m.Attempts)
	job := queue.NewJob(m, w.store.UpdateProgress)

	handler, onFail, ok := w.registry.Lookup(m.Queue, m.Type)

	start := w.now()
	var (
		res any
		err error
	)
	if ok {
		res, err = w.execute(ctx, handler, job)
	} else {
		err = queue.Permanent(fmt.Errorf("%w for %s/%s", queue.ErrNoHandler, m.Queue, m.Type))
	}
	elapsed := w.now().Sub(start)

	// settle even when the worker is shutting down
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	now := w.now().UTC()

	if err == nil {
		var result datatypes.JSON
		if res != nil {
			b, mErr := json.Marshal(res)
			if mErr != nil {
				log.Warn("result not serializable", "error", mErr)
			} else {
				result = datatypes.JSON(b)
			}
		}

		if sErr := w.store.MarkCompleted(settleCtx, m.ID, result, now); sErr != nil {
			log.Error("mark completed failed", "error", sErr)
		}
		metrics.RecordJobProcessed(m.Queue, m.Type, metrics.OutcomeCompleted, elapsed)
		log.Debug("job completed", "duration", elapsed)
		return
	}

	// a rate-limit rejection says nothing about the job itself
	if errors.Is(err, queue.ErrRateLimited) && !queue.IsPermanent(err) {
		delay := max(queue.BackoffOf(m).Delay(0), time.Second)
		if sErr := w.store.Postpone(settleCtx, m.ID, now.Add(delay), err.Error()); sErr != nil {
			log.Error("postpone failed", "error", sErr)
		}
		metrics.RecordJobProcessed(m.Queue, m.Type, metrics.OutcomeDeferred, elapsed)
		log.Debug("job postponed", "error", err, "retry_in", delay)
		return
	}

	if queue.IsPermanent(err) || job.LastAttempt() {
		if sErr := w.store.MarkFailed(settleCtx, m.ID, err.Error(), now); sErr != nil {
			log.Error("mark failed failed", "error", sErr)
		}
		metrics.RecordJobProcessed(m.Queue, m.Type, metrics.OutcomeFailed, elapsed)
		log.Warn("job failed", "error", err, "permanent", queue.IsPermanent(err))

		if onFail != nil {
			w.runFailureHook(settleCtx, onFail, job, err)
		}
		return
	}

	delay := queue.BackoffOf(m).Delay(m.Attempts - 1)
	if sErr := w.store.RetryLater(settleCtx, m.ID, now.Add(delay), err.Error()); sErr != nil {
		log.Error("schedule retry failed", "error", sErr)
	}
	metrics.RecordJobProcessed(m.Queue, m.Type, metrics.OutcomeRetried, elapsed)
	log.Info("job retry scheduled", "error", err, "retry_in", delay)
}

// Stop ends the claim loop and waits for the in-flight job to settle.
func (w *Worker) Stop() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
	<-w.done
}
