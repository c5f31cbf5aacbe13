package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/models"
)

func TestBackoff_Delay(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		retry   int
		want    time.Duration
	}{
		{"fixed ignores retry", Backoff{Kind: BackoffFixed, Base: time.Minute}, 2, time.Minute},
		{"exponential first retry", Backoff{Kind: BackoffExponential, Base: 5 * time.Second}, 0, 5 * time.Second},
		{"exponential second retry", Backoff{Kind: BackoffExponential, Base: 5 * time.Second}, 1, 10 * time.Second},
		{"exponential fourth retry", Backoff{Kind: BackoffExponential, Base: time.Second}, 3, 8 * time.Second},
		{"exponential is capped", Backoff{Kind: BackoffExponential, Base: time.Hour}, 10, 6 * time.Hour},
		{"negative retry treated as first", Backoff{Kind: BackoffExponential, Base: time.Second}, -3, time.Second},
		{"unknown kind behaves as fixed", Backoff{Kind: "linear", Base: time.Second}, 4, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.backoff.Delay(tt.retry))
		})
	}
}

func TestBackoffOf(t *testing.T) {
	b := BackoffOf(&models.Job{Backoff: "exponential", BackoffBaseMs: 1500})
	assert.Equal(t, Backoff{Kind: BackoffExponential, Base: 1500 * time.Millisecond}, b)
}

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()

	assert.Len(t, p, len(config.AllowedQueues))
	assert.Equal(t, 10, p[config.QueueEmail].Concurrency)
	assert.Equal(t, 3, p[config.QueueEmail].MaxAttempts)
	assert.Equal(t, time.Minute, p[config.QueueEmail].Backoff.Delay(2))
	assert.Equal(t, 2, p[config.QueueCampaign].MaxAttempts)
	assert.Equal(t, 10*time.Second, p[config.QueueCampaign].Backoff.Delay(1))
	assert.Equal(t, 20, p[config.QueueAutomation].Concurrency)
	assert.Equal(t, 5, p[config.QueueAnalytics].MaxAttempts)
}

func TestWithConcurrency(t *testing.T) {
	p := WithConcurrency(DefaultPolicies(), map[string]int{
		config.QueueEmail:    2,
		config.QueueCampaign: 0,
	})

	assert.Equal(t, 2, p[config.QueueEmail].Concurrency)
	assert.Equal(t, 5, p[config.QueueCampaign].Concurrency, "non-positive overrides are ignored")
	assert.Equal(t, 10, DefaultPolicies()[config.QueueEmail].Concurrency)
}

func TestPermanent(t *testing.T) {
	base := errors.New("campaign not found")

	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(base))

	perm := Permanent(base)
	assert.True(t, IsPermanent(perm))
	assert.ErrorIs(t, perm, base)
	assert.True(t, IsPermanent(fmt.Errorf("process: %w", perm)))
	assert.Same(t, perm, Permanent(perm))

	assert.False(t, IsPermanent(fmt.Errorf("send: %w", ErrRateLimited)))
}
