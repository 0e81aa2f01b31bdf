package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/michaelayoade/isp-framework/internal/api/dto"
)

// RegisterWorker handles POST /api/v1/workers
// Registration is an upsert: re-registering overwrites descriptive fields
// and refreshes the heartbeat.
func (h *WorkerHandler) RegisterWorker(c *gin.Context) {
	var req dto.RegisterWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	worker, err := h.queue.RegisterWorker(c.Request.Context(), req.WorkerID, req.Name, req.ServiceTypes, req.MaxConcurrentJobs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewWorkerDTO(worker))
}

// Heartbeat handles POST /api/v1/workers/:worker_id/heartbeat
func (h *WorkerHandler) Heartbeat(c *gin.Context) {
	workerID := c.Param("worker_id")

	worker, err := h.queue.Heartbeat(c.Request.Context(), workerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewWorkerDTO(worker))
}

// ListActiveWorkers handles GET /api/v1/workers
func (h *WorkerHandler) ListActiveWorkers(c *gin.Context) {
	workers, err := h.queue.ActiveWorkers(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	workersDTO := make([]dto.WorkerDTO, len(workers))
	for i := range workers {
		workersDTO[i] = dto.NewWorkerDTO(&workers[i])
	}

	c.JSON(http.StatusOK, gin.H{"workers": workersDTO})
}
