package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultLimit  = 100
	DefaultWindow = time.Minute
)

// Limiter caps sends per tenant over a trailing window.
type Limiter interface {
	// Allow records a send and reports true, or reports false when the tenant
	// already has limit sends inside the window. Denied attempts are not recorded.
	Allow(ctx context.Context, tenantID uint) (bool, error)
}

// Memory is a single-process sliding-window limiter.
type Memory struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[uint][]time.Time
	now    func() time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{
		limit:  limit,
		window: window,
		hits:   make(map[uint][]time.Time),
		now:    time.Now,
	}
}

var _ Limiter = (*Memory)(nil)

func (m *Memory) Allow(ctx context.Context, tenantID uint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)

	hits := m.hits[tenantID]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) >= m.limit {
		m.hits[tenantID] = hits
		return false, nil
	}

	m.hits[tenantID] = append(hits, now)
	return true, nil
}
