package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/analytics"
	"github.com/webramesh/email-marketing-sub000/internal/app"
	"github.com/webramesh/email-marketing-sub000/internal/automation"
	"github.com/webramesh/email-marketing-sub000/internal/campaign"
	"github.com/webramesh/email-marketing-sub000/internal/ingest"
	"github.com/webramesh/email-marketing-sub000/internal/mailer"
	"github.com/webramesh/email-marketing-sub000/internal/metrics"
	"github.com/webramesh/email-marketing-sub000/internal/pool"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"github.com/webramesh/email-marketing-sub000/internal/ratelimit"
	"github.com/webramesh/email-marketing-sub000/internal/trigger"
	"github.com/webramesh/email-marketing-sub000/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env, err := app.Open(ctx, true)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg, lg := env.Config, env.Log

	limiter, closeLimiter, err := newLimiter(ctx, env)
	if err != nil {
		return err
	}
	defer closeLimiter()

	evaluator := automation.NewExprEvaluator()
	automations := env.AutomationService(evaluator)

	registry := queue.NewRegistry()
	mailer.NewHandler(mailer.NewLogTransport(lg), limiter, env.Queue, lg).Register(registry)
	campaign.NewProcessor(env.Campaigns, env.Queue, lg).Register(registry)
	automation.NewRunner(env.Automations, env.Campaigns, env.Queue, evaluator, lg).Register(registry)
	analytics.NewRecorder(env.Campaigns, trigger.NewService(env.Automations, automations, lg), lg).Register(registry)

	hostname, _ := os.Hostname()
	workerPool := pool.NewWorkerPool(env.Jobs, env.Automations, registry,
		queue.WithConcurrency(queue.DefaultPolicies(), cfg.Worker.Concurrency()),
		pool.Options{
			Worker: worker.Options{
				PollInterval: cfg.Worker.PollInterval,
				MaxIdleDelay: cfg.Worker.MaxIdleDelay,
				JobTimeout:   cfg.Worker.JobTimeout,
			},
			LockDuration:   cfg.Worker.LockDuration,
			StaleExecution: cfg.Worker.StaleExecution,
			NamePrefix:     hostname,
		}, lg)
	workerPool.Start()

	if cfg.RabbitMQ.URL != "" {
		source, err := ingest.Dial(cfg.RabbitMQ, lg)
		if err != nil {
			workerPool.Stop()
			return err
		}
		defer source.Close()

		deliveries, err := source.Deliveries(hostname)
		if err != nil {
			workerPool.Stop()
			return err
		}
		go ingest.NewConsumer(env.Queue, lg).Run(ctx, deliveries)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("metrics server failed", "error", err)
		}
	}()

	lg.Info("worker running", "workers", workerPool.Size(), "metrics_addr", cfg.MetricsAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	lg.Info("received shutdown signal", "signal", sig)

	// stop consuming before the pool so no delivery is acked against a stopped queue
	cancel()
	workerPool.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		lg.Error("metrics server shutdown failed", "error", err)
	}

	lg.Info("shutdown complete")
	return nil
}

// newLimiter shares the per-tenant window through Redis when it is configured.
func newLimiter(ctx context.Context, env *app.Env) (ratelimit.Limiter, func(), error) {
	rl := env.Config.RateLimit
	if env.Config.Redis.Addr == "" {
		env.Log.Warn("REDIS_ADDR not set, rate limit is per process")
		return ratelimit.NewMemory(rl.PerMinute, rl.Window), func() {}, nil
	}

	r, err := ratelimit.NewRedis(ctx, ratelimit.RedisOptions{
		Addr:     env.Config.Redis.Addr,
		Password: env.Config.Redis.Password,
		DB:       env.Config.Redis.DB,
		PoolSize: env.Config.Redis.PoolSize,
	}, rl.PerMinute, rl.Window)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { r.Close() }, nil
}
