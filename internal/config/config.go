package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the runtime settings shared by the api, worker and queuectl binaries.
// Database settings live in postgres.Config.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR,default=:8080"`
	MetricsAddr string `env:"METRICS_ADDR,default=:9090"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	LogFormat   string `env:"LOG_FORMAT,default=console"`

	Worker    WorkerConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
}

type WorkerConfig struct {
	PollInterval     time.Duration `env:"WORKER_POLL_INTERVAL,default=1s"`
	MaxIdleDelay     time.Duration `env:"WORKER_MAX_IDLE_DELAY,default=30s"`
	JobTimeout       time.Duration `env:"WORKER_JOB_TIMEOUT,default=2m"`
	LockDuration     time.Duration `env:"WORKER_LOCK_DURATION,default=5m"`
	StaleExecution   time.Duration `env:"WORKER_STALE_EXECUTION,default=1h"`
	EmailConcurrency int           `env:"WORKER_EMAIL_CONCURRENCY,default=10"`
	CampaignConc     int           `env:"WORKER_CAMPAIGN_CONCURRENCY,default=5"`
	AutomationConc   int           `env:"WORKER_AUTOMATION_CONCURRENCY,default=20"`
	AnalyticsConc    int           `env:"WORKER_ANALYTICS_CONCURRENCY,default=50"`
}

type RateLimitConfig struct {
	PerMinute int           `env:"RATE_LIMIT_PER_MINUTE,default=100"`
	Window    time.Duration `env:"RATE_LIMIT_WINDOW,default=60s"`
}

// RedisConfig is optional: with an empty Addr the rate limiter falls back to memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
	PoolSize int    `env:"REDIS_POOL_SIZE,default=10"`
}

// RabbitMQConfig is optional: with an empty URL the delivery-event consumer is disabled.
type RabbitMQConfig struct {
	URL           string `env:"RABBITMQ_URL"`
	Queue         string `env:"RABBITMQ_EVENTS_QUEUE,default=email.events"`
	PrefetchCount int    `env:"RABBITMQ_PREFETCH,default=20"`
}

// Concurrency returns the configured worker count for a queue.
func (w WorkerConfig) Concurrency() map[string]int {
	return map[string]int{
		QueueEmail:      w.EmailConcurrency,
		QueueCampaign:   w.CampaignConc,
		QueueAutomation: w.AutomationConc,
		QueueAnalytics:  w.AnalyticsConc,
	}
}

// to help with testing
var envProcess = envconfig.Process

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errors []string

	for queue, n := range c.Worker.Concurrency() {
		if n <= 0 {
			errors = append(errors, fmt.Sprintf("concurrency for queue %q must be positive", queue))
		}
	}

	if c.Worker.PollInterval <= 0 {
		errors = append(errors, "WORKER_POLL_INTERVAL must be positive")
	}

	if c.Worker.MaxIdleDelay < c.Worker.PollInterval {
		errors = append(errors, "WORKER_MAX_IDLE_DELAY must not be shorter than WORKER_POLL_INTERVAL")
	}

	if c.Worker.JobTimeout <= 0 {
		errors = append(errors, "WORKER_JOB_TIMEOUT must be positive")
	}

	if c.Worker.LockDuration < c.Worker.JobTimeout {
		errors = append(errors, "WORKER_LOCK_DURATION must not be shorter than WORKER_JOB_TIMEOUT")
	}

	if c.RateLimit.PerMinute <= 0 {
		errors = append(errors, "RATE_LIMIT_PER_MINUTE must be positive")
	}

	if c.RateLimit.Window <= 0 {
		errors = append(errors, "RATE_LIMIT_WINDOW must be positive")
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		errors = append(errors, "LOG_FORMAT must be json or console")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}
