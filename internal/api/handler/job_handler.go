package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/michaelayoade/isp-framework/internal/api/dto"
	"github.com/michaelayoade/isp-framework/internal/queue"
	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	spec := queue.JobSpec{
		ServiceID:    req.ServiceID,
		ServiceType:  req.ServiceType,
		CustomerID:   req.CustomerID,
		Priority:     domain.Priority(req.Priority),
		ScheduledFor: req.ScheduledFor,
		MaxRetries:   req.MaxRetries,
	}

	job, err := h.queue.CreateJob(c.Request.Context(), spec, req.CreatedBy)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
// Returns the job together with its audit history.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.queue.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	history, err := h.queue.JobHistory(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	historyDTO := make([]dto.JobHistoryDTO, len(history))
	for i := range history {
		historyDTO[i] = dto.NewJobHistoryDTO(&history[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"job":     dto.NewJobDTO(job),
		"history": historyDTO,
	})
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	filter := queue.JobFilter{
		Status:      domain.Status(req.Status),
		Priority:    domain.Priority(req.Priority),
		ServiceType: req.ServiceType,
		CustomerID:  req.CustomerID,
		WorkerID:    req.WorkerID,
	}

	page, err := h.queue.ListJobs(c.Request.Context(), filter, req.Page, req.PerPage)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	jobs := make([]dto.JobDTO, len(page.Jobs))
	for i := range page.Jobs {
		jobs[i] = dto.NewJobDTO(&page.Jobs[i])
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:    jobs,
		Page:    page.Page,
		PerPage: page.PerPage,
		HasMore: page.HasMore,
	})
}

// NextJob handles POST /api/v1/jobs/next
// A worker polls for its next eligible job; 204 means nothing to do now.
func (h *JobHandler) NextJob(c *gin.Context) {
	var req dto.NextJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.queue.GetNextJob(c.Request.Context(), req.WorkerID, req.ServiceTypes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if job == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// UpdateJobStatus handles POST /api/v1/jobs/:job_id/status
func (h *JobHandler) UpdateJobStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.UpdateJobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.queue.UpdateJobStatus(c.Request.Context(), jobID, queue.StatusUpdate{
		Status:       domain.Status(req.Status),
		Message:      req.Message,
		ResultData:   req.ResultData,
		ErrorMessage: req.ErrorMessage,
		UpdatedBy:    req.UpdatedBy,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.CancelJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.queue.CancelJob(c.Request.Context(), jobID, req.Reason, req.CancelledBy)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// RetryJob handles POST /api/v1/jobs/:job_id/retry
func (h *JobHandler) RetryJob(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.RetryJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.queue.RetryJob(c.Request.Context(), jobID, req.RetriedBy)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// Statistics handles GET /api/v1/queue/statistics
func (h *JobHandler) Statistics(c *gin.Context) {
	stats, err := h.queue.GetQueueStatistics(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
