package queue

import (
	"context"
	"time"

	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

// JobFilter narrows ListJobs results. Zero-valued fields are ignored.
type JobFilter struct {
	Status      domain.Status
	Priority    domain.Priority
	ServiceType string
	CustomerID  *int64
	WorkerID    string

	// Limit and Offset are filled in by the service from page/per_page.
	Limit  int
	Offset int
}

// JobPage is one page of ListJobs results. HasMore is derived by fetching
// one row past the page boundary.
type JobPage struct {
	Jobs    []domain.Job
	Page    int
	PerPage int
	HasMore bool
}

// Statistics is the queue-wide snapshot returned by GetQueueStatistics.
type Statistics struct {
	ByStatus                 map[domain.Status]int   `json:"by_status"`
	ByPriority               map[domain.Priority]int `json:"by_priority"`
	ByServiceType            map[string]int          `json:"by_service_type"`
	AverageProcessingSeconds float64                 `json:"average_processing_seconds"`
	ActiveWorkers            int                     `json:"active_workers"`
}

// JobStore is the durable storage of jobs. ClaimNext is the one
// correctness-critical primitive: selection and claim must be a single atomic
// conditional operation so that among N concurrent callers racing for the
// same eligible job exactly one succeeds.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error

	// GetByJobID returns domain.ErrJobNotFound for an unknown job_id.
	GetByJobID(ctx context.Context, jobID string) (*domain.Job, error)

	// ClaimNext atomically claims the best eligible queued job for workerID:
	// status queued, service_type in serviceTypes, scheduled_for <= now,
	// ordered by priority rank then created_at. Returns (nil, nil) when no
	// eligible job exists or the claim race was lost.
	ClaimNext(ctx context.Context, workerID string, serviceTypes []string, now time.Time) (*domain.Job, error)

	// UpdateFrom persists job's mutable fields conditionally on the stored
	// status still being current. Returns false (no error) when the
	// condition failed, so a terminal status can never be overwritten by a
	// stale concurrent report.
	UpdateFrom(ctx context.Context, job *domain.Job, current domain.Status) (bool, error)

	List(ctx context.Context, filter JobFilter) ([]domain.Job, error)

	// Statistics fills everything except ActiveWorkers, which the service
	// takes from the worker registry.
	Statistics(ctx context.Context) (*Statistics, error)
}

// HistoryStore persists append-only status-transition records.
type HistoryStore interface {
	Append(ctx context.Context, entry *domain.JobHistory) error
	ListByJobID(ctx context.Context, jobID string) ([]domain.JobHistory, error)
}

// WorkerStore persists worker registrations. Workers are upserted and
// refreshed, never deleted.
type WorkerStore interface {
	Upsert(ctx context.Context, worker *domain.Worker) error

	// GetByWorkerID returns domain.ErrWorkerNotFound for an unknown worker.
	GetByWorkerID(ctx context.Context, workerID string) (*domain.Worker, error)

	// Touch refreshes last_heartbeat; domain.ErrWorkerNotFound when the
	// worker was never registered.
	Touch(ctx context.Context, workerID string, at time.Time) (*domain.Worker, error)

	ListActive(ctx context.Context, since time.Time) ([]domain.Worker, error)
	CountActive(ctx context.Context, since time.Time) (int, error)
}
