package automation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/webramesh/email-marketing-sub000/common"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/middleware"
	"gorm.io/gorm"
)

type ServiceInterface interface {
	StartExecution(ctx context.Context, tenantID, automationID, subscriberID uint, variables map[string]any) (string, bool, error)
	Publish(ctx context.Context, tenantID, automationID uint) error
	GetExecution(ctx context.Context, executionID string) (*models.AutomationExecution, error)
}

var _ ServiceInterface = (*Service)(nil)

type Handler struct {
	service ServiceInterface
}

func NewHandler(s ServiceInterface) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/automations/:id/publish", h.Publish)
	r.POST("/automations/:id/executions", h.Start)
	r.GET("/executions/:id", h.GetExecution)
}

func (h *Handler) Publish(c *gin.Context) {
	id, ok := automationID(c)
	if !ok {
		return
	}

	var req dto.AutomationPublishDTO
	if !middleware.Bind(c, &req) {
		return
	}

	if err := h.service.Publish(c.Request.Context(), req.TenantID, id); err != nil {
		c.Error(toAPIError(err))
		return
	}

	c.Status(http.StatusNoContent)
}

// Start enters a subscriber into an automation manually.
func (h *Handler) Start(c *gin.Context) {
	id, ok := automationID(c)
	if !ok {
		return
	}

	var req dto.ExecutionStartDTO
	if !middleware.Bind(c, &req) {
		return
	}

	execID, started, err := h.service.StartExecution(c.Request.Context(), req.TenantID, id, req.SubscriberID, req.Variables)
	if err != nil {
		c.Error(toAPIError(err))
		return
	}

	status := http.StatusAccepted
	if !started {
		status = http.StatusOK
	}
	c.JSON(status, dto.ExecutionStartedDTO{ExecutionID: execID, Started: started})
}

func (h *Handler) GetExecution(c *gin.Context) {
	e, err := h.service.GetExecution(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(toAPIError(err))
		return
	}

	c.JSON(http.StatusOK, dto.ExecutionResponseDTO{
		ID:               e.ID,
		AutomationID:     e.AutomationID,
		SubscriberID:     e.SubscriberID,
		Status:           e.Status,
		CurrentNodeID:    e.CurrentNodeID,
		StepIndex:        e.StepIndex,
		Variables:        json.RawMessage(e.Variables),
		LastExecutedNode: e.LastExecutedNode,
		LastExecutedAt:   e.LastExecutedAt,
		CompletedAt:      e.CompletedAt,
		FailureReason:    e.FailureReason,
	})
}

func automationID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id < 1 {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return 0, false
	}
	return uint(id), true
}

func toAPIError(err error) common.APIError {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return common.Errf(http.StatusNotFound, "not found")
	case errors.Is(err, ErrInvalidDefinition):
		return common.Errf(http.StatusUnprocessableEntity, "%s", err.Error())
	case errors.Is(err, ErrAutomationInactive):
		return common.Errf(http.StatusConflict, "%s", err.Error())
	}
	return common.FromError(err, "automation request failed")
}
