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

	"github.com/gin-gonic/gin"
	"github.com/webramesh/email-marketing-sub000/internal/app"
	"github.com/webramesh/email-marketing-sub000/internal/automation"
	"github.com/webramesh/email-marketing-sub000/internal/campaign"
	"github.com/webramesh/email-marketing-sub000/internal/job"
	"github.com/webramesh/email-marketing-sub000/internal/metrics"
	"github.com/webramesh/email-marketing-sub000/middleware"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	env, err := app.Open(ctx, false)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg, lg := env.Config, env.Log

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(lg), middleware.TimeoutMiddleware(30*time.Second), middleware.ErrorHandler())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	job.NewJobHandler(job.NewJobService(env.Jobs, env.Queue)).Register(r)
	campaign.NewHandler(env.CampaignService()).Register(r)
	automation.NewHandler(env.AutomationService(automation.NewExprEvaluator())).Register(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		lg.Info("api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		lg.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	lg.Info("shutdown complete")
	return nil
}
