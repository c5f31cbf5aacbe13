package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AutomationRepository struct {
	db *gorm.DB
}

func NewAutomationRepository(db *gorm.DB) *AutomationRepository {
	return &AutomationRepository{db: db}
}

func (r *AutomationRepository) CreateAutomation(ctx context.Context, a *models.Automation) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create automation: %w", err)
	}
	return nil
}

// GetAutomation loads an automation owned by tenantID. A missing row wraps gorm.ErrRecordNotFound.
func (r *AutomationRepository) GetAutomation(ctx context.Context, tenantID, id uint) (*models.Automation, error) {
	var a models.Automation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&a).Error; err != nil {
		return nil, fmt.Errorf("get automation %d: %w", id, err)
	}
	return &a, nil
}

// Activate stores the validated definition and marks the automation active.
func (r *AutomationRepository) Activate(ctx context.Context, tenantID, id uint, definition datatypes.JSON, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Automation{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{
			"definition":   definition,
			"status":       config.AutomationStatusActive,
			"published_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("activate automation %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("activate automation %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// FindTriggered returns the active automations of a tenant listening for triggerType.
// An automation without a campaign or link filter matches any campaign or link.
func (r *AutomationRepository) FindTriggered(ctx context.Context, tenantID uint, triggerType string, campaignID *uint, linkURL string) ([]models.Automation, error) {
	q := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND trigger_type = ?", tenantID, config.AutomationStatusActive, triggerType)

	if campaignID != nil {
		q = q.Where("(trigger_campaign_id IS NULL OR trigger_campaign_id = ?)", *campaignID)
	} else {
		q = q.Where("trigger_campaign_id IS NULL")
	}

	if linkURL != "" {
		q = q.Where("(trigger_link_url = '' OR trigger_link_url IS NULL OR trigger_link_url = ?)", linkURL)
	} else {
		q = q.Where("(trigger_link_url = '' OR trigger_link_url IS NULL)")
	}

	var out []models.Automation
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find triggered automations: %w", err)
	}
	return out, nil
}

func (r *AutomationRepository) CreateExecution(ctx context.Context, e *models.AutomationExecution) error {
	if e.Status == "" {
		e.Status = config.ExecutionStatusRunning
	}
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

func (r *AutomationRepository) GetExecution(ctx context.Context, id string) (*models.AutomationExecution, error) {
	var e models.AutomationExecution
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&e).Error; err != nil {
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	}
	return &e, nil
}

// HasRunningExecution reports whether subscriberID is already inside the automation.
func (r *AutomationRepository) HasRunningExecution(ctx context.Context, automationID, subscriberID uint) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.AutomationExecution{}).
		Where("automation_id = ? AND subscriber_id = ? AND status = ?", automationID, subscriberID, config.ExecutionStatusRunning).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("running executions: %w", err)
	}
	return n > 0, nil
}

// Checkpoint records step progress and advances step_index from expectedStep to expectedStep+1.
// The update only applies to a RUNNING execution still at expectedStep; false means another
// job already advanced it.
func (r *AutomationRepository) Checkpoint(ctx context.Context, id string, expectedStep int, cp models.ExecutionCheckpoint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.AutomationExecution{}).
		Where("id = ? AND status = ? AND step_index = ?", id, config.ExecutionStatusRunning, expectedStep).
		Updates(map[string]any{
			"current_node_id":    cp.CurrentNodeID,
			"variables":          cp.Variables,
			"last_executed_node": cp.LastExecutedNode,
			"last_executed_at":   cp.LastExecutedAt,
			"step_index":         expectedStep + 1,
		})
	if res.Error != nil {
		return false, fmt.Errorf("checkpoint execution %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CompleteExecution moves a RUNNING execution to COMPLETED or FAILED.
// Terminal executions are left untouched and false is returned.
func (r *AutomationRepository) CompleteExecution(ctx context.Context, id string, success bool, reason string, now time.Time) (bool, error) {
	status := config.ExecutionStatusCompleted
	if !success {
		status = config.ExecutionStatusFailed
	}

	res := r.db.WithContext(ctx).Model(&models.AutomationExecution{}).
		Where("id = ? AND status = ?", id, config.ExecutionStatusRunning).
		Updates(map[string]any{
			"status":         status,
			"failure_reason": reason,
			"completed_at":   now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete execution %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListStaleExecutions returns RUNNING executions untouched since before.
func (r *AutomationRepository) ListStaleExecutions(ctx context.Context, before time.Time) ([]models.AutomationExecution, error) {
	var out []models.AutomationExecution
	// an execution with a pending job is waiting, not stuck
	pending := r.db.Model(&models.Job{}).
		Select("1").
		Where("jobs.lock_key = 'execution:' || automation_executions.id").
		Where("jobs.status IN ?", []config.JobStatus{config.JobStatusQueued, config.JobStatusRunning})

	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", config.ExecutionStatusRunning, before).
		Where("NOT EXISTS (?)", pending).
		Order("updated_at ASC").
		Limit(500).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list stale executions: %w", err)
	}
	return out, nil
}
