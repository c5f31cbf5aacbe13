package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"github.com/webramesh/email-marketing-sub000/internal/queue/queuetest"
	"github.com/webramesh/email-marketing-sub000/internal/storage/postgres"
	"github.com/webramesh/email-marketing-sub000/internal/storage/storagetest"
	"github.com/webramesh/email-marketing-sub000/shared/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const tenant = uint(1)

type fixture struct {
	db        *gorm.DB
	repo      *postgres.AutomationRepository
	campaigns *postgres.CampaignRepository
	jobs      *queuetest.Recorder
	service   *Service
	runner    *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := storagetest.NewDB(t)
	f := &fixture{
		db:        db,
		repo:      postgres.NewAutomationRepository(db),
		campaigns: postgres.NewCampaignRepository(db),
		jobs:      &queuetest.Recorder{},
	}
	evaluator := NewExprEvaluator()
	f.service = NewService(f.repo, f.jobs, evaluator, logger.Discard())
	f.runner = NewRunner(f.repo, f.campaigns, f.jobs, evaluator, logger.Discard())
	return f
}

func (f *fixture) subscriber(t *testing.T, status, customFields string) *models.Subscriber {
	t.Helper()

	s := &models.Subscriber{
		TenantID:     tenant,
		ListID:       1,
		Email:        "ada@example.com",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Status:       status,
		CustomFields: datatypes.JSON(customFields),
	}
	require.NoError(t, f.campaigns.CreateSubscriber(context.Background(), s))
	return s
}

func (f *fixture) graphAutomation(t *testing.T, status, definition string) *models.Automation {
	t.Helper()

	a := &models.Automation{
		TenantID:    tenant,
		Name:        "welcome",
		Status:      status,
		Mode:        config.AutomationModeGraph,
		Definition:  datatypes.JSON(definition),
		TriggerType: config.TriggerManual,
	}
	require.NoError(t, f.repo.CreateAutomation(context.Background(), a))
	return a
}

func (f *fixture) legacyAutomation(t *testing.T, status, steps string) *models.Automation {
	t.Helper()

	a := &models.Automation{
		TenantID:    tenant,
		Name:        "drip",
		Status:      status,
		Mode:        config.AutomationModeLegacy,
		Steps:       datatypes.JSON(steps),
		TriggerType: config.TriggerManual,
	}
	require.NoError(t, f.repo.CreateAutomation(context.Background(), a))
	return a
}

func asJob(e queuetest.Enqueued) *queue.Job {
	return &queue.Job{
		ID:          e.ID,
		Queue:       e.Queue,
		Type:        e.Type,
		Payload:     datatypes.JSON(e.Payload),
		Attempts:    1,
		MaxAttempts: 3,
	}
}

// drain runs automation jobs until none are left and returns the step outcomes.
func (f *fixture) drain(t *testing.T) []StepOutcome {
	t.Helper()

	var outcomes []StepOutcome
	for i := 0; i < 50; i++ {
		e, ok := f.jobs.Take(config.QueueAutomation)
		if !ok {
			return outcomes
		}
		res, err := f.runner.Handle(context.Background(), asJob(e))
		require.NoError(t, err)
		outcomes = append(outcomes, res.(StepOutcome))
	}
	t.Fatal("automation did not terminate")
	return nil
}

// branching: trigger -> condition -> (pro | free)
const branchingGraph = `{
	"nodes": [
		{"id": "start", "type": "TRIGGER", "config": {"triggerType": "manual"}},
		{"id": "is-pro", "type": "CONDITION", "config": {"expression": "subscriber.customFields.plan == \"pro\""}},
		{"id": "pro", "type": "ACTION", "config": {"actionType": "email", "subject": "Pro tips for {{firstName}}", "htmlContent": "<p>pro</p>", "fromEmail": "news@example.com"}},
		{"id": "free", "type": "ACTION", "config": {"actionType": "email", "subject": "Upgrade, {{firstName}}", "htmlContent": "<p>free</p>", "fromEmail": "news@example.com"}}
	],
	"connections": [
		{"source": "start", "target": "is-pro"},
		{"source": "is-pro", "target": "pro", "condition": {"type": "conditional"}},
		{"source": "is-pro", "target": "free", "condition": {"type": "always"}}
	]
}`
