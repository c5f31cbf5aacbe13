package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"github.com/webramesh/email-marketing-sub000/internal/worker"
)

// Store adds lock recovery to the queue store.
type Store interface {
	queue.Store
	ListStuckJobs(ctx context.Context, lockedBefore time.Time) ([]models.Job, error)
	Release(ctx context.Context, id uint, now time.Time) error
}

// StaleExecutionLister finds automation executions that stopped advancing.
type StaleExecutionLister interface {
	ListStaleExecutions(ctx context.Context, before time.Time) ([]models.AutomationExecution, error)
}

type Options struct {
	Worker          worker.Options
	LockDuration    time.Duration
	StaleExecution  time.Duration
	JanitorInterval time.Duration
	// NamePrefix distinguishes worker ids across processes.
	NamePrefix string
}

type WorkerPool struct {
	workers    []*worker.Worker
	store      Store
	executions StaleExecutionLister
	opts       Options
	log        *slog.Logger
	now        func() time.Time

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool starts Concurrency workers for every queue with a registered handler.
// executions may be nil when stale automation reporting is not wanted.
func NewWorkerPool(store Store, executions StaleExecutionLister, registry *queue.Registry, policies map[string]queue.Policy, opts Options, log *slog.Logger) *WorkerPool {
	if log == nil {
		log = slog.Default()
	}
	if opts.LockDuration <= 0 {
		opts.LockDuration = 5 * time.Minute
	}
	if opts.JanitorInterval <= 0 {
		opts.JanitorInterval = 30 * time.Second
	}
	if opts.StaleExecution <= 0 {
		opts.StaleExecution = time.Hour
	}
	if opts.NamePrefix == "" {
		opts.NamePrefix = "worker"
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		store:      store,
		executions: executions,
		opts:       opts,
		log:        log,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}

	for _, q := range registry.Queues() {
		n := max(policies[q].Concurrency, 1)
		for i := 1; i <= n; i++ {
			id := fmt.Sprintf("%s-%s-%d", opts.NamePrefix, q, i)
			p.workers = append(p.workers, worker.NewWorker(id, q, store, registry, opts.Worker, log))
		}
	}
	return p
}

func (p *WorkerPool) Size() int {
	return len(p.workers)
}

func (p *WorkerPool) Start() {
	for _, w := range p.workers {
		w.Start(p.ctx)
	}

	p.wg.Add(1)
	go p.janitor()

	p.log.Info("worker pool started", "workers", len(p.workers))
}

func (p *WorkerPool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.opts.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, _, err := p.Sweep(p.ctx); err != nil && p.ctx.Err() == nil {
				p.log.Error("janitor sweep failed", "error", err)
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Sweep requeues jobs whose lock outlived twice the lock duration and reports
// automation executions that have not advanced within the stale window.
// Stale executions are only logged; the executor owns their state.
func (p *WorkerPool) Sweep(ctx context.Context) (released, stale int, err error) {
	now := p.now().UTC()

	stuck, err := p.store.ListStuckJobs(ctx, now.Add(-2*p.opts.LockDuration))
	if err != nil {
		return 0, 0, err
	}
	for _, j := range stuck {
		p.log.Warn("recovering stuck job", "job_id", j.ID, "queue", j.Queue, "locked_by", j.LockedBy)
		if err := p.store.Release(ctx, j.ID, now); err != nil {
			p.log.Error("release stuck job failed", "job_id", j.ID, "error", err)
			continue
		}
		released++
	}

	if p.executions == nil {
		return released, 0, nil
	}

	execs, err := p.executions.ListStaleExecutions(ctx, now.Add(-p.opts.StaleExecution))
	if err != nil {
		return released, 0, err
	}
	for _, e := range execs {
		p.log.Warn("automation execution is stale",
			"execution_id", e.ID,
			"automation_id", e.AutomationID,
			"subscriber_id", e.SubscriberID,
			"current_node", e.CurrentNodeID,
			"last_update", e.UpdatedAt,
		)
	}
	return released, len(execs), nil
}

// Stop cancels every worker, waits for in-flight jobs to settle and stops the janitor.
func (p *WorkerPool) Stop() {
	p.cancel()
	for _, w := range p.workers {
		w.Stop()
	}
	p.wg.Wait()
	p.log.Info("worker pool stopped")
}
