// Package app holds the process bootstrap shared by the api, worker and queuectl binaries.
package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/webramesh/email-marketing-sub000/internal/analytics"
	"github.com/webramesh/email-marketing-sub000/internal/automation"
	"github.com/webramesh/email-marketing-sub000/internal/campaign"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/pool"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"github.com/webramesh/email-marketing-sub000/internal/trigger"
	"github.com/webramesh/email-marketing-sub000/internal/storage/postgres"
	"github.com/webramesh/email-marketing-sub000/shared/logger"
	"gorm.io/gorm"
)

var (
	_ pool.Store                 = (*postgres.JobRepository)(nil)
	_ pool.StaleExecutionLister  = (*postgres.AutomationRepository)(nil)
	_ campaign.Repository        = (*postgres.CampaignRepository)(nil)
	_ automation.Repository      = (*postgres.AutomationRepository)(nil)
	_ automation.SubscriberStore = (*postgres.CampaignRepository)(nil)
	_ analytics.EventStore       = (*postgres.CampaignRepository)(nil)
	_ trigger.AutomationFinder   = (*postgres.AutomationRepository)(nil)
	_ trigger.ExecutionStarter   = (*automation.Service)(nil)
	_ analytics.Triggers         = (*trigger.Service)(nil)
)

// Env is a connected process: configuration, logger, database and the repositories on top of it.
type Env struct {
	Config *config.Config
	Log    *slog.Logger
	DB     *gorm.DB

	Jobs        *postgres.JobRepository
	Campaigns   *postgres.CampaignRepository
	Automations *postgres.AutomationRepository
	Queue       *queue.Client
}

// Open loads an optional .env file, reads the environment and connects to Postgres.
// With migrate set the embedded goose migrations are applied first.
func Open(ctx context.Context, migrate bool) (*Env, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	lg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(lg)

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	db, err := postgres.ConnectDB(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	if migrate {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := postgres.RunMigrations(sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	jobs := postgres.NewJobRepository(db)
	return &Env{
		Config:      cfg,
		Log:         lg,
		DB:          db,
		Jobs:        jobs,
		Campaigns:   postgres.NewCampaignRepository(db),
		Automations: postgres.NewAutomationRepository(db),
		Queue:       queue.NewClient(jobs, queue.WithConcurrency(queue.DefaultPolicies(), cfg.Worker.Concurrency())),
	}, nil
}

// CampaignService builds the campaign send service on top of the env's repositories.
func (e *Env) CampaignService() *campaign.Service {
	return campaign.NewService(e.Campaigns, e.Queue, e.Log)
}

// AutomationService builds the automation service with the given condition evaluator.
func (e *Env) AutomationService(evaluator automation.ConditionEvaluator) *automation.Service {
	return automation.NewService(e.Automations, e.Queue, evaluator, e.Log)
}

func (e *Env) Close() {
	if sqlDB, err := e.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
