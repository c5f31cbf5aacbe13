package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"gorm.io/datatypes"
)

var ErrAutomationInactive = errors.New("automation is not active")

type Service struct {
	repo      Repository
	enqueuer  queue.Enqueuer
	evaluator ConditionEvaluator
	log       *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, enqueuer queue.Enqueuer, evaluator ConditionEvaluator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	return &Service{
		repo:      repo,
		enqueuer:  enqueuer,
		evaluator: evaluator,
		log:       log.With("component", "automation"),
		now:       time.Now,
	}
}

// StartExecution creates a RUNNING execution and enqueues its first step. A subscriber
// already inside the automation is not entered twice: started is false and id is empty.
func (s *Service) StartExecution(ctx context.Context, tenantID, automationID, subscriberID uint, variables map[string]any) (id string, started bool, err error) {
	a, err := s.repo.GetAutomation(ctx, tenantID, automationID)
	if err != nil {
		return "", false, err
	}
	if a.Status != config.AutomationStatusActive {
		return "", false, fmt.Errorf("automation %d: %w", automationID, ErrAutomationInactive)
	}

	running, err := s.repo.HasRunningExecution(ctx, automationID, subscriberID)
	if err != nil {
		return "", false, err
	}
	if running {
		s.log.Debug("subscriber already in automation", "automation_id", automationID, "subscriber_id", subscriberID)
		return "", false, nil
	}

	if variables == nil {
		variables = map[string]any{}
	}
	rawVars, err := json.Marshal(variables)
	if err != nil {
		return "", false, fmt.Errorf("marshal variables: %w", err)
	}

	exec := &models.AutomationExecution{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		AutomationID: automationID,
		SubscriberID: subscriberID,
		Status:       config.ExecutionStatusRunning,
		Variables:    datatypes.JSON(rawVars),
	}
	if err := s.repo.CreateExecution(ctx, exec); err != nil {
		return "", false, err
	}

	payload := dto.AutomationJobPayload{
		TenantID:     tenantID,
		AutomationID: automationID,
		SubscriberID: subscriberID,
		StepIndex:    0,
		ExecutionID:  exec.ID,
	}
	if _, err := s.enqueuer.Enqueue(ctx, config.QueueAutomation, config.JobTypeRunAutomation, payload, queue.Options{
		LockKey: LockKey(exec.ID),
	}); err != nil {
		// never leave a RUNNING execution without a job
		if _, cErr := s.repo.CompleteExecution(ctx, exec.ID, false, "first step not enqueued: "+err.Error(), s.now().UTC()); cErr != nil {
			s.log.Error("fail unstarted execution", "execution_id", exec.ID, "error", cErr)
		}
		return "", false, fmt.Errorf("enqueue first step: %w", err)
	}

	s.log.Info("automation execution started", "execution_id", exec.ID, "automation_id", automationID, "subscriber_id", subscriberID)
	return exec.ID, true, nil
}

// Publish validates the automation's definition and activates it. The stored
// definition is re-encoded in canonical form.
func (s *Service) Publish(ctx context.Context, tenantID, automationID uint) error {
	a, err := s.repo.GetAutomation(ctx, tenantID, automationID)
	if err != nil {
		return err
	}

	definition := a.Definition
	switch a.Mode {
	case config.AutomationModeLegacy:
		steps, err := ParseSteps(a.Steps)
		if err != nil {
			return err
		}
		if err := ValidateSteps(steps, s.evaluator); err != nil {
			return err
		}

	case config.AutomationModeGraph, "":
		def, err := ParseDefinition(a.Definition)
		if err != nil {
			return err
		}
		if err := def.Validate(s.evaluator); err != nil {
			return err
		}
		canonical, err := json.Marshal(def)
		if err != nil {
			return err
		}
		definition = datatypes.JSON(canonical)

	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidDefinition, a.Mode)
	}

	if err := s.repo.Activate(ctx, tenantID, automationID, definition, s.now().UTC()); err != nil {
		return err
	}

	s.log.Info("automation published", "automation_id", automationID, "mode", a.Mode)
	return nil
}

// CompleteExecution terminates a RUNNING execution. It reports whether anything changed.
func (s *Service) CompleteExecution(ctx context.Context, executionID string, success bool, reason string) (bool, error) {
	return s.repo.CompleteExecution(ctx, executionID, success, reason, s.now().UTC())
}

func (s *Service) GetExecution(ctx context.Context, executionID string) (*models.AutomationExecution, error) {
	return s.repo.GetExecution(ctx, executionID)
}
