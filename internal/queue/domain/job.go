package domain

import (
	"time"

	"github.com/lib/pq"
)

// Priority is the scheduling class of a job. It controls the default
// scheduling delay at creation and the claim ordering between eligible jobs.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank returns the claim ordering rank: lower rank is claimed first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// DefaultDelay returns the scheduling delay applied at creation when the
// caller did not request an explicit start time.
func (p Priority) DefaultDelay() time.Duration {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 30 * time.Second
	case PriorityLow:
		return 300 * time.Second
	default:
		return 60 * time.Second
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Status is the lifecycle state of a job.
//
// queued → processing → {completed, failed, cancelled}
// failed → queued (automatic, while retry budget remains)
// queued/processing → cancelled
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether a worker status report may still move the job.
// A job at rest in failed has by construction exhausted its retry budget
// (failures with budget left are requeued in the same transition), so only
// CancelJob or RetryJob may act on it.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Cancellable reports whether CancelJob is legal in state s.
func (s Status) Cancellable() bool {
	return s != StatusCompleted && s != StatusCancelled
}

// Reportable reports whether s is a status a worker may report through
// UpdateJobStatus.
func (s Status) Reportable() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job is a unit of provisioning work tracked through the status lifecycle.
// WorkerID is non-nil exactly while the job is processing, except for
// completed/cancelled jobs which retain it for audit.
type Job struct {
	ID           int64      `db:"id"`
	JobID        string     `db:"job_id"`
	ServiceID    int64      `db:"service_id"`
	ServiceType  string     `db:"service_type"`
	CustomerID   *int64     `db:"customer_id"`
	Priority     Priority   `db:"priority"`
	Status       Status     `db:"status"`
	WorkerID     *string    `db:"worker_id"`
	RetryCount   int        `db:"retry_count"`
	MaxRetries   int        `db:"max_retries"`
	ScheduledFor time.Time  `db:"scheduled_for"`
	StartedAt    *time.Time `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	NextRetryAt  *time.Time `db:"next_retry_at"`
	ResultData   *string    `db:"result_data"`
	ErrorMessage *string    `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// JobHistory is one append-only status-transition record. The first entry
// for a job has a nil OldStatus. History is written for audit and never read
// back into scheduling decisions.
type JobHistory struct {
	ID        int64     `db:"id"`
	JobID     string    `db:"job_id"`
	OldStatus *Status   `db:"old_status"`
	NewStatus Status    `db:"new_status"`
	Message   string    `db:"message"`
	Details   *string   `db:"details"`
	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

// Worker is a registered worker process. Workers are never hard-deleted;
// liveness is purely a function of heartbeat age.
type Worker struct {
	ID                    int64          `db:"id"`
	WorkerID              string         `db:"worker_id"`
	Name                  string         `db:"name"`
	SupportedServiceTypes pq.StringArray `db:"supported_service_types"`
	MaxConcurrentJobs     int            `db:"max_concurrent_jobs"`
	LastHeartbeat         time.Time      `db:"last_heartbeat"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

// Supports reports whether the worker advertises the given service type.
func (w *Worker) Supports(serviceType string) bool {
	for _, st := range w.SupportedServiceTypes {
		if st == serviceType {
			return true
		}
	}
	return false
}
