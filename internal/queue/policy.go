package queue

import (
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/models"
)

type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"

	maxBackoff = 6 * time.Hour
)

type Backoff struct {
	Kind BackoffKind
	Base time.Duration
}

// Delay returns the wait before retry number retry (zero-based).
// Exponential backoff is base * 2^retry, capped at six hours.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}

	if b.Kind != BackoffExponential {
		return b.Base
	}

	d := b.Base
	for i := 0; i < retry; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// BackoffOf reads the backoff policy stored on a job row.
func BackoffOf(job *models.Job) Backoff {
	return Backoff{
		Kind: BackoffKind(job.Backoff),
		Base: time.Duration(job.BackoffBaseMs) * time.Millisecond,
	}
}

type Policy struct {
	Concurrency int
	MaxAttempts int
	Backoff     Backoff
}

// DefaultPolicies returns the per-queue defaults. Email retries wait out the one-minute
// rate window; campaign and analytics retries back off exponentially.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		config.QueueEmail: {
			Concurrency: 10,
			MaxAttempts: 3,
			Backoff:     Backoff{Kind: BackoffFixed, Base: time.Minute},
		},
		config.QueueCampaign: {
			Concurrency: 5,
			MaxAttempts: 2,
			Backoff:     Backoff{Kind: BackoffExponential, Base: 5 * time.Second},
		},
		config.QueueAutomation: {
			Concurrency: 20,
			MaxAttempts: 3,
			Backoff:     Backoff{Kind: BackoffFixed, Base: 10 * time.Second},
		},
		config.QueueAnalytics: {
			Concurrency: 50,
			MaxAttempts: 5,
			Backoff:     Backoff{Kind: BackoffExponential, Base: time.Second},
		},
	}
}

// WithConcurrency overrides the worker counts of the given policies.
func WithConcurrency(policies map[string]Policy, concurrency map[string]int) map[string]Policy {
	out := make(map[string]Policy, len(policies))
	for name, p := range policies {
		if n, ok := concurrency[name]; ok && n > 0 {
			p.Concurrency = n
		}
		out[name] = p
	}
	return out
}
