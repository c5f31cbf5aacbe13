package worker

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/webramesh/email-marketing-sub000/internal/queue"
)

// execute runs h under the job timeout. A panic is converted into an ordinary,
// retryable error so one bad job cannot take the worker down.
func (w *Worker) execute(ctx context.Context, h queue.Handler, job *queue.Job) (res any, err error) {
	ctx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("handler panicked", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			res, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()

	res, err = h(ctx, job)
	if err == nil && ctx.Err() != nil {
		// the handler ignored its deadline; its work cannot be trusted as complete
		err = fmt.Errorf("job timed out after %s: %w", w.opts.JobTimeout, ctx.Err())
	}
	return res, err
}

func (w *Worker) runFailureHook(ctx context.Context, hook queue.FailureHook, job *queue.Job, cause error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("failure hook panicked", "job_id", job.ID, "panic", r)
		}
	}()

	hook(ctx, job, cause)
}
