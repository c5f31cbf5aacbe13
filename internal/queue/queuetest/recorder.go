// Package queuetest provides an in-memory Enqueuer for tests.
package queuetest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/webramesh/email-marketing-sub000/internal/queue"
)

type Enqueued struct {
	ID      uint
	Queue   string
	Type    string
	Payload json.RawMessage
	Opts    queue.Options
}

// Recorder captures enqueued jobs. Err, when set, is returned instead. Like the
// job store it keeps a single job per DedupKey, even after Take.
type Recorder struct {
	mu     sync.Mutex
	jobs   []Enqueued
	lastID uint
	dedup  map[string]uint
	Err    error
}

var _ queue.Enqueuer = (*Recorder)(nil)

func (r *Recorder) Enqueue(_ context.Context, queueName, jobType string, payload any, opts queue.Options) (uint, error) {
	if r.Err != nil {
		return 0, r.Err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.dedup[opts.DedupKey]; ok {
		return id, nil
	}

	r.lastID++
	id := r.lastID
	if opts.DedupKey != "" {
		if r.dedup == nil {
			r.dedup = map[string]uint{}
		}
		r.dedup[opts.DedupKey] = id
	}
	r.jobs = append(r.jobs, Enqueued{ID: id, Queue: queueName, Type: jobType, Payload: raw, Opts: opts})
	return id, nil
}

// Jobs returns the jobs enqueued on queueName, or all jobs when queueName is empty.
func (r *Recorder) Jobs(queueName string) []Enqueued {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Enqueued
	for _, j := range r.jobs {
		if queueName == "" || j.Queue == queueName {
			out = append(out, j)
		}
	}
	return out
}

// Take removes and returns the oldest job on queueName.
func (r *Recorder) Take(queueName string) (Enqueued, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, j := range r.jobs {
		if j.Queue == queueName {
			r.jobs = append(r.jobs[:i], r.jobs[i+1:]...)
			return j, true
		}
	}
	return Enqueued{}, false
}

// Decode unmarshals an enqueued payload.
func Decode[T any](e Enqueued) (T, error) {
	var v T
	err := json.Unmarshal(e.Payload, &v)
	return v, err
}
