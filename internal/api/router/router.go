package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/michaelayoade/isp-framework/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "provisioning-queue-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	workerHandler := handler.NewWorkerHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a new provisioning job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// POST /api/v1/jobs/next - Worker polls for its next job
			jobs.POST("/next", jobHandler.NextJob)

			// GET /api/v1/jobs/:job_id - Get job details and history
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/status - Worker status report
			jobs.POST("/:job_id/status", jobHandler.UpdateJobStatus)

			// POST /api/v1/jobs/:job_id/cancel - Cancel a job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)

			// POST /api/v1/jobs/:job_id/retry - Manually retry a failed job
			jobs.POST("/:job_id/retry", jobHandler.RetryJob)
		}

		queueGroup := v1.Group("/queue")
		{
			// GET /api/v1/queue/statistics - Queue-wide counters
			queueGroup.GET("/statistics", jobHandler.Statistics)
		}

		workers := v1.Group("/workers")
		{
			// POST /api/v1/workers - Register or refresh a worker
			workers.POST("", workerHandler.RegisterWorker)

			// GET /api/v1/workers - List active workers
			workers.GET("", workerHandler.ListActiveWorkers)

			// POST /api/v1/workers/:worker_id/heartbeat - Liveness ping
			workers.POST("/:worker_id/heartbeat", workerHandler.Heartbeat)
		}
	}

	return r
}
