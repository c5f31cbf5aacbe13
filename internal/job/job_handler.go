package job

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/webramesh/email-marketing-sub000/common"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// Register mounts the job and queue admin routes.
func (h *JobHandler) Register(r gin.IRouter) {
	r.POST("/jobs", h.Create)
	r.GET("/jobs/:id", h.Get)
	r.GET("/queues/:name/jobs", h.List)
	r.GET("/queues/:name/stats", h.Stats)
	r.POST("/queues/:name/pause", h.Pause)
	r.POST("/queues/:name/resume", h.Resume)
}

// Create handles HTTP requests for enqueuing a new job.
// It validates and binds the request body, delegates to the JobService,
// and returns HTTP 201 with the job id on success.
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.JobCreateDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	id, err := h.service.CreateJob(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, dto.JobCreatedDTO{ID: id})
}

// Get handles HTTP requests to fetch a job by its ID.
func (h *JobHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id < 1 {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return
	}

	resp, err := h.service.GetJobByID(c.Request.Context(), uint(id))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles HTTP requests to retrieve the jobs of a queue.
// The optional status and limit query parameters narrow the result.
func (h *JobHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.Error(common.Errf(http.StatusBadRequest, "limit must be a positive number"))
			return
		}
		limit = n
	}

	jobs, err := h.service.ListJobs(
		c.Request.Context(),
		c.Param("name"),
		config.JobStatus(c.Query("status")),
		limit,
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

func (h *JobHandler) Stats(c *gin.Context) {
	counts, err := h.service.QueueStats(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

func (h *JobHandler) Pause(c *gin.Context) {
	if err := h.service.PauseQueue(c.Request.Context(), c.Param("name")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *JobHandler) Resume(c *gin.Context) {
	if err := h.service.ResumeQueue(c.Request.Context(), c.Param("name")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
