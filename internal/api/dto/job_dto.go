package dto

import (
	"time"

	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

type CreateJobRequest struct {
	ServiceID    int64      `json:"service_id" binding:"required"`
	ServiceType  string     `json:"service_type" binding:"required"`
	CustomerID   *int64     `json:"customer_id"`
	Priority     string     `json:"priority"`
	ScheduledFor *time.Time `json:"scheduled_for"`
	MaxRetries   *int       `json:"max_retries"`
	CreatedBy    string     `json:"created_by"`
}

type NextJobRequest struct {
	WorkerID     string   `json:"worker_id" binding:"required"`
	ServiceTypes []string `json:"service_types" binding:"required,min=1"`
}

type UpdateJobStatusRequest struct {
	Status       string                 `json:"status" binding:"required"`
	Message      string                 `json:"message"`
	ResultData   map[string]interface{} `json:"result_data"`
	ErrorMessage string                 `json:"error_message"`
	UpdatedBy    string                 `json:"updated_by"`
}

type CancelJobRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
}

type RetryJobRequest struct {
	RetriedBy string `json:"retried_by"`
}

type ListJobsRequest struct {
	Status      string `form:"status"`
	Priority    string `form:"priority"`
	ServiceType string `form:"service_type"`
	CustomerID  *int64 `form:"customer_id"`
	WorkerID    string `form:"worker_id"`
	Page        int    `form:"page"`
	PerPage     int    `form:"per_page"`
}

type ListJobsResponse struct {
	Jobs    []JobDTO `json:"jobs"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
	HasMore bool     `json:"has_more"`
}

type JobDTO struct {
	JobID        string     `json:"job_id"`
	ServiceID    int64      `json:"service_id"`
	ServiceType  string     `json:"service_type"`
	CustomerID   *int64     `json:"customer_id,omitempty"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	WorkerID     *string    `json:"worker_id,omitempty"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	ResultData   *string    `json:"result_data,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewJobDTO maps a domain job onto the wire representation.
func NewJobDTO(job *domain.Job) JobDTO {
	return JobDTO{
		JobID:        job.JobID,
		ServiceID:    job.ServiceID,
		ServiceType:  job.ServiceType,
		CustomerID:   job.CustomerID,
		Priority:     string(job.Priority),
		Status:       string(job.Status),
		WorkerID:     job.WorkerID,
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		ScheduledFor: job.ScheduledFor,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		NextRetryAt:  job.NextRetryAt,
		ResultData:   job.ResultData,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

type JobHistoryDTO struct {
	OldStatus *string   `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJobHistoryDTO maps one history entry.
func NewJobHistoryDTO(entry *domain.JobHistory) JobHistoryDTO {
	dto := JobHistoryDTO{
		NewStatus: string(entry.NewStatus),
		Message:   entry.Message,
		Details:   entry.Details,
		CreatedBy: entry.CreatedBy,
		CreatedAt: entry.CreatedAt,
	}
	if entry.OldStatus != nil {
		old := string(*entry.OldStatus)
		dto.OldStatus = &old
	}
	return dto
}

type RegisterWorkerRequest struct {
	WorkerID          string   `json:"worker_id" binding:"required"`
	Name              string   `json:"name"`
	ServiceTypes      []string `json:"service_types" binding:"required,min=1"`
	MaxConcurrentJobs int      `json:"max_concurrent_jobs"`
}

type WorkerDTO struct {
	WorkerID              string    `json:"worker_id"`
	Name                  string    `json:"name"`
	SupportedServiceTypes []string  `json:"supported_service_types"`
	MaxConcurrentJobs     int       `json:"max_concurrent_jobs"`
	LastHeartbeat         time.Time `json:"last_heartbeat"`
}

// NewWorkerDTO maps a registered worker.
func NewWorkerDTO(worker *domain.Worker) WorkerDTO {
	return WorkerDTO{
		WorkerID:              worker.WorkerID,
		Name:                  worker.Name,
		SupportedServiceTypes: worker.SupportedServiceTypes,
		MaxConcurrentJobs:     worker.MaxConcurrentJobs,
		LastHeartbeat:         worker.LastHeartbeat,
	}
}
