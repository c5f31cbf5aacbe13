// Package trigger enters subscribers into automations when email engagement matches
// an automation's trigger.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/models"
)

type AutomationFinder interface {
	FindTriggered(ctx context.Context, tenantID uint, triggerType string, campaignID *uint, linkURL string) ([]models.Automation, error)
}

type ExecutionStarter interface {
	StartExecution(ctx context.Context, tenantID, automationID, subscriberID uint, variables map[string]any) (string, bool, error)
}

type Service struct {
	automations AutomationFinder
	executions  ExecutionStarter
	log         *slog.Logger
}

func NewService(automations AutomationFinder, executions ExecutionStarter, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{automations: automations, executions: executions, log: log.With("component", "trigger")}
}

// HandleEmailOpenedTrigger starts every active automation listening for opens of campaignID.
// It returns the number of executions started.
func (s *Service) HandleEmailOpenedTrigger(ctx context.Context, tenantID, subscriberID uint, campaignID *uint, emailID string) (int, error) {
	return s.fire(ctx, tenantID, subscriberID, config.TriggerEmailOpened, campaignID, "", emailID)
}

// HandleEmailClickedTrigger starts every active automation listening for clicks on linkURL.
func (s *Service) HandleEmailClickedTrigger(ctx context.Context, tenantID, subscriberID uint, campaignID *uint, linkURL, emailID string) (int, error) {
	return s.fire(ctx, tenantID, subscriberID, config.TriggerEmailClicked, campaignID, linkURL, emailID)
}

// fire starts all matching automations. One failing automation does not stop the others;
// their errors are joined.
func (s *Service) fire(ctx context.Context, tenantID, subscriberID uint, triggerType string, campaignID *uint, linkURL, emailID string) (int, error) {
	matches, err := s.automations.FindTriggered(ctx, tenantID, triggerType, campaignID, linkURL)
	if err != nil {
		return 0, err
	}

	vars := map[string]any{"trigger": triggerType}
	if campaignID != nil {
		vars["campaignId"] = *campaignID
	}
	if linkURL != "" {
		vars["linkUrl"] = linkURL
	}
	if emailID != "" {
		vars["emailId"] = emailID
	}

	started := 0
	var errs []error
	for _, a := range matches {
		id, ok, err := s.executions.StartExecution(ctx, tenantID, a.ID, subscriberID, vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("automation %d: %w", a.ID, err))
			continue
		}
		if ok {
			started++
			s.log.Info("automation triggered", "automation_id", a.ID, "execution_id", id, "subscriber_id", subscriberID, "trigger", triggerType)
		}
	}
	return started, errors.Join(errs...)
}
