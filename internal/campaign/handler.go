package campaign

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/webramesh/email-marketing-sub000/common"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/middleware"
	"gorm.io/gorm"
)

type ServiceInterface interface {
	StartSend(ctx context.Context, tenantID, campaignID uint, batchSize int) error
	Cancel(ctx context.Context, tenantID, campaignID uint) error
	Resume(ctx context.Context, tenantID, campaignID uint, batchSize int) (int, error)
	Status(ctx context.Context, tenantID, campaignID uint) (*dto.CampaignStatusDTO, error)
}

var _ ServiceInterface = (*Service)(nil)

type Handler struct {
	service ServiceInterface
}

func NewHandler(s ServiceInterface) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/campaigns/:id")
	g.POST("/send", h.Send)
	g.POST("/cancel", h.Cancel)
	g.POST("/resume", h.Resume)
	g.GET("/status", h.Status)
}

func (h *Handler) Send(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var req dto.CampaignSendDTO
	if !middleware.Bind(c, &req) {
		return
	}

	if err := h.service.StartSend(c.Request.Context(), req.TenantID, id, req.BatchSize); err != nil {
		c.Error(toAPIError(err))
		return
	}

	c.Status(http.StatusAccepted)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var req dto.CampaignCancelDTO
	if !middleware.Bind(c, &req) {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), req.TenantID, id); err != nil {
		c.Error(toAPIError(err))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Resume(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var req dto.CampaignSendDTO
	if !middleware.Bind(c, &req) {
		return
	}

	offset, err := h.service.Resume(c.Request.Context(), req.TenantID, id, req.BatchSize)
	if err != nil {
		c.Error(toAPIError(err))
		return
	}

	c.JSON(http.StatusAccepted, dto.CampaignResumedDTO{Offset: offset})
}

// Status takes the tenant from the tenantId query parameter.
func (h *Handler) Status(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	tenantID, err := strconv.ParseUint(c.Query("tenantId"), 10, 0)
	if err != nil || tenantID < 1 {
		c.Error(common.Errf(http.StatusBadRequest, "tenantId query parameter is required"))
		return
	}

	status, err := h.service.Status(c.Request.Context(), uint(tenantID), id)
	if err != nil {
		c.Error(toAPIError(err))
		return
	}

	c.JSON(http.StatusOK, status)
}

func campaignID(c *gin.Context) (uint, bool) {
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
		return common.Errf(http.StatusNotFound, "campaign not found")
	case errors.Is(err, ErrInvalidState):
		return common.Errf(http.StatusConflict, "%s", err.Error())
	}
	return common.FromError(err, "campaign request failed")
}
