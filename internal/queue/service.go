package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/michaelayoade/isp-framework/internal/queue/domain"
	"github.com/michaelayoade/isp-framework/internal/queue/notify"
)

// JobSpec describes a job to be created.
type JobSpec struct {
	ServiceID    int64
	ServiceType  string
	CustomerID   *int64
	Priority     domain.Priority
	ScheduledFor *time.Time
	MaxRetries   *int
}

// StatusUpdate is a worker's report about a claimed job.
type StatusUpdate struct {
	Status       domain.Status
	Message      string
	ResultData   map[string]interface{}
	ErrorMessage string
	UpdatedBy    string
}

// Config holds Service dependencies.
type Config struct {
	Jobs     JobStore
	History  *Recorder
	Registry *Registry
	Retry    RetryPolicy
	Sink     notify.Sink
	Logger   *slog.Logger

	// Clock overrides time.Now in tests. The service shares it with the
	// recorder and registry so all timestamps come from one source.
	Clock func() time.Time
}

// Service is the provisioning job queue orchestrator. It is the sole writer
// of job status, worker binding, and retry fields; worker processes mutate
// state only through its operations, never against the store directly.
type Service struct {
	jobs      JobStore
	history   *Recorder
	registry  *Registry
	retry     RetryPolicy
	scheduler Scheduler
	sink      notify.Sink
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new Service instance with injected dependencies.
func NewService(cfg *Config) *Service {
	retry := cfg.Retry
	if retry.BaseDelay <= 0 {
		retry = DefaultRetryPolicy()
	}

	sink := cfg.Sink
	if sink == nil {
		sink = notify.NopSink{}
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	// One clock everywhere: history timestamps and heartbeats must order
	// consistently against the job rows.
	if cfg.History != nil {
		cfg.History.now = now
	}
	if cfg.Registry != nil {
		cfg.Registry.now = now
	}

	return &Service{
		jobs:     cfg.Jobs,
		history:  cfg.History,
		registry: cfg.Registry,
		retry:    retry,
		sink:     sink,
		logger:   cfg.Logger,
		now:      now,
	}
}

// CreateJob persists a new queued job. The effective scheduled_for is the
// requested time (never moved into the past) or the priority's default
// delay. Creation never blocks on worker-capability checks: a job may
// legitimately queue before any capable worker exists.
func (s *Service) CreateJob(ctx context.Context, spec JobSpec, createdBy string) (*domain.Job, error) {
	if spec.ServiceType == "" {
		return nil, domain.NewValidationError("service_type is required")
	}

	priority := spec.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.Valid() {
		return nil, domain.NewValidationError("invalid priority: %s", spec.Priority)
	}

	maxRetries := DefaultMaxRetries
	if spec.MaxRetries != nil {
		if *spec.MaxRetries < 0 {
			return nil, domain.NewValidationError("max_retries must not be negative")
		}
		maxRetries = *spec.MaxRetries
	}

	now := s.now().UTC()
	job := &domain.Job{
		JobID:        uuid.New().String(),
		ServiceID:    spec.ServiceID,
		ServiceType:  spec.ServiceType,
		CustomerID:   spec.CustomerID,
		Priority:     priority,
		Status:       domain.StatusQueued,
		RetryCount:   0,
		MaxRetries:   maxRetries,
		ScheduledFor: s.scheduler.ScheduleFor(priority, spec.ScheduledFor, now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		s.logger.Error("Failed to create job",
			slog.String("service_type", spec.ServiceType),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.history.Append(ctx, job.JobID, nil, domain.StatusQueued, "job created", nil, createdBy); err != nil {
		return nil, err
	}

	s.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("service_type", job.ServiceType),
		slog.String("priority", string(job.Priority)),
		slog.Time("scheduled_for", job.ScheduledFor),
	)

	s.notify(ctx, notify.EventJobCreated, job, nil, "job created")

	return job, nil
}

// GetNextJob atomically claims the best eligible queued job for a worker.
// Returns (nil, nil) when nothing is eligible or the claim race was lost;
// both are normal outcomes, not errors.
func (s *Service) GetNextJob(ctx context.Context, workerID string, serviceTypes []string) (*domain.Job, error) {
	if workerID == "" {
		return nil, domain.NewValidationError("worker_id is required")
	}
	if len(serviceTypes) == 0 {
		return nil, domain.NewValidationError("at least one supported service type is required")
	}

	job, err := s.jobs.ClaimNext(ctx, workerID, serviceTypes, s.now().UTC())
	if err != nil {
		s.logger.Error("Failed to claim next job",
			slog.String("worker_id", workerID),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to claim next job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	old := domain.StatusQueued
	msg := fmt.Sprintf("claimed by worker %s", workerID)
	if err := s.history.Append(ctx, job.JobID, &old, domain.StatusProcessing, msg, nil, workerID); err != nil {
		return nil, err
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", job.JobID),
		slog.String("worker_id", workerID),
		slog.String("service_type", job.ServiceType),
	)

	s.notify(ctx, notify.EventJobStatusChanged, job, &old, msg)

	return job, nil
}

// UpdateJobStatus applies a worker's status report. Reports are only legal
// against a claimed job: processing is the sole source state for
// processing/completed/failed/cancelled reports, so a report on a queued job
// is rejected rather than skipping the claim step. A failed report with
// retry budget remaining requeues the job with exponential backoff; with the
// budget exhausted the job stays failed terminally. Terminal states are
// guarded by a conditional store update and can never be overwritten by a
// later stale report.
func (s *Service) UpdateJobStatus(ctx context.Context, jobID string, update StatusUpdate) (*domain.Job, error) {
	if !update.Status.Reportable() {
		return nil, domain.NewValidationError("invalid status for update: %s", update.Status)
	}

	job, err := s.jobs.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return nil, domain.NewValidationError("job %s is already %s", jobID, job.Status)
	}
	if job.Status != domain.StatusProcessing {
		return nil, domain.NewValidationError("job %s is %s; status reports require a claimed job", jobID, job.Status)
	}

	now := s.now().UTC()
	old := job.Status
	applied := *job
	requeued := false

	switch update.Status {
	case domain.StatusProcessing:
		applied.Status = domain.StatusProcessing
		if applied.StartedAt == nil {
			applied.StartedAt = &now
		}

	case domain.StatusCompleted:
		applied.Status = domain.StatusCompleted
		applied.CompletedAt = &now
		if update.ResultData != nil {
			raw, merr := json.Marshal(update.ResultData)
			if merr != nil {
				return nil, domain.NewValidationError("result_data is not serializable: %v", merr)
			}
			data := string(raw)
			applied.ResultData = &data
		}

	case domain.StatusCancelled:
		applied.Status = domain.StatusCancelled
		applied.CompletedAt = &now

	case domain.StatusFailed:
		if update.ErrorMessage != "" {
			errMsg := update.ErrorMessage
			applied.ErrorMessage = &errMsg
		}
		if s.retry.Exhausted(job.RetryCount, job.MaxRetries) {
			applied.Status = domain.StatusFailed
		} else {
			// Requeue with backoff. The backoff index is the count of
			// failures before this one, so the first retry waits BaseDelay.
			retryAt := now.Add(s.retry.Backoff(job.RetryCount))
			applied.Status = domain.StatusQueued
			applied.RetryCount = job.RetryCount + 1
			applied.NextRetryAt = &retryAt
			applied.ScheduledFor = retryAt
			applied.WorkerID = nil
			applied.StartedAt = nil
			requeued = true
		}
	}

	applied.UpdatedAt = now

	ok, err := s.jobs.UpdateFrom(ctx, &applied, old)
	if err != nil {
		s.logger.Error("Failed to update job status",
			slog.String("job_id", jobID),
			slog.String("new_status", string(update.Status)),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}
	if !ok {
		// The job moved under us; the stored status wins.
		return nil, domain.NewValidationError("job %s was updated concurrently", jobID)
	}

	message := update.Message
	if message == "" {
		message = fmt.Sprintf("status changed to %s", update.Status)
	}

	if requeued {
		// Record both legs of the automatic retry so the history traces a
		// valid path: processing -> failed -> queued.
		failed := domain.StatusFailed
		retryMsg := fmt.Sprintf("retry %d/%d scheduled", applied.RetryCount, applied.MaxRetries)
		if err := s.history.Append(ctx, jobID, &old, failed, message, nil, update.UpdatedBy); err != nil {
			return nil, err
		}
		if err := s.history.Append(ctx, jobID, &failed, domain.StatusQueued, retryMsg, nil, update.UpdatedBy); err != nil {
			return nil, err
		}
	} else {
		if err := s.history.Append(ctx, jobID, &old, applied.Status, message, nil, update.UpdatedBy); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("old_status", string(old)),
		slog.String("new_status", string(applied.Status)),
		slog.Int("retry_count", applied.RetryCount),
	)

	s.notify(ctx, notify.EventJobStatusChanged, &applied, &old, message)

	return &applied, nil
}

// CancelJob cancels a job that has not yet reached completed or cancelled.
// Cancelling a job already dispatched to a worker is bookkeeping only: no
// signal reaches the worker, and its eventual report will lose the terminal
// guard. Cancelling an already-terminal job is a ValidationError so caller
// bugs surface instead of being silently ignored.
func (s *Service) CancelJob(ctx context.Context, jobID, reason, cancelledBy string) (*domain.Job, error) {
	job, err := s.jobs.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !job.Status.Cancellable() {
		return nil, domain.NewValidationError("cannot cancel job %s in status %s", jobID, job.Status)
	}

	now := s.now().UTC()
	old := job.Status
	applied := *job
	applied.Status = domain.StatusCancelled
	applied.CompletedAt = &now
	applied.UpdatedAt = now

	ok, err := s.jobs.UpdateFrom(ctx, &applied, old)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}
	if !ok {
		return nil, domain.NewValidationError("job %s was updated concurrently", jobID)
	}

	message := reason
	if message == "" {
		message = "job cancelled"
	}
	if err := s.history.Append(ctx, jobID, &old, domain.StatusCancelled, message, nil, cancelledBy); err != nil {
		return nil, err
	}

	s.logger.Info("Job cancelled",
		slog.String("job_id", jobID),
		slog.String("previous_status", string(old)),
		slog.String("reason", reason),
	)

	s.notify(ctx, notify.EventJobStatusChanged, &applied, &old, message)

	return &applied, nil
}

// RetryJob manually requeues a terminally failed job. Manual retry resets
// the retry budget: a job at rest in failed has by construction exhausted
// it, so the operation starts a fresh cycle rather than counting against the
// spent one.
func (s *Service) RetryJob(ctx context.Context, jobID, retriedBy string) (*domain.Job, error) {
	job, err := s.jobs.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != domain.StatusFailed {
		return nil, domain.NewValidationError("cannot retry job %s in status %s", jobID, job.Status)
	}

	now := s.now().UTC()
	old := job.Status
	applied := *job
	applied.Status = domain.StatusQueued
	applied.RetryCount = 0
	applied.ScheduledFor = now
	applied.WorkerID = nil
	applied.StartedAt = nil
	applied.CompletedAt = nil
	applied.NextRetryAt = nil
	applied.ErrorMessage = nil
	applied.UpdatedAt = now

	ok, err := s.jobs.UpdateFrom(ctx, &applied, old)
	if err != nil {
		return nil, fmt.Errorf("failed to retry job: %w", err)
	}
	if !ok {
		return nil, domain.NewValidationError("job %s was updated concurrently", jobID)
	}

	message := fmt.Sprintf("manual retry by %s", retriedBy)
	if err := s.history.Append(ctx, jobID, &old, domain.StatusQueued, message, nil, retriedBy); err != nil {
		return nil, err
	}

	s.logger.Info("Job manually retried",
		slog.String("job_id", jobID),
		slog.String("retried_by", retriedBy),
	)

	s.notify(ctx, notify.EventJobStatusChanged, &applied, &old, message)

	return &applied, nil
}

// GetJob returns a job by its external identifier.
func (s *Service) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.jobs.GetByJobID(ctx, jobID)
}

// JobHistory returns the audit trail of a job, oldest entry first.
func (s *Service) JobHistory(ctx context.Context, jobID string) ([]domain.JobHistory, error) {
	if _, err := s.jobs.GetByJobID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.history.History(ctx, jobID)
}

// ListJobs returns one page of jobs matching the filter. The store fetches
// one row past the page boundary to detect whether more pages exist.
func (s *Service) ListJobs(ctx context.Context, filter JobFilter, page, perPage int) (*JobPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	filter.Limit = perPage + 1
	filter.Offset = (page - 1) * perPage

	jobs, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	hasMore := len(jobs) > perPage
	if hasMore {
		jobs = jobs[:perPage]
	}

	return &JobPage{
		Jobs:    jobs,
		Page:    page,
		PerPage: perPage,
		HasMore: hasMore,
	}, nil
}

// GetQueueStatistics returns queue-wide counts, the average processing
// duration of completed jobs, and the active-worker count.
func (s *Service) GetQueueStatistics(ctx context.Context) (*Statistics, error) {
	stats, err := s.jobs.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect queue statistics: %w", err)
	}

	active, err := s.registry.ActiveCount(ctx)
	if err != nil {
		return nil, err
	}
	stats.ActiveWorkers = active

	return stats, nil
}

// RegisterWorker registers or refreshes a worker process.
func (s *Service) RegisterWorker(ctx context.Context, workerID, name string, serviceTypes []string, maxConcurrent int) (*domain.Worker, error) {
	return s.registry.Register(ctx, workerID, name, serviceTypes, maxConcurrent)
}

// Heartbeat refreshes a worker's liveness timestamp.
func (s *Service) Heartbeat(ctx context.Context, workerID string) (*domain.Worker, error) {
	return s.registry.Heartbeat(ctx, workerID)
}

// ActiveWorkers lists workers inside the liveness window.
func (s *Service) ActiveWorkers(ctx context.Context) ([]domain.Worker, error) {
	return s.registry.ActiveWorkers(ctx)
}

// notify forwards a lifecycle event to the sink. Failures are logged and
// swallowed: event delivery never aborts or rolls back a transition.
func (s *Service) notify(ctx context.Context, event string, job *domain.Job, oldStatus *domain.Status, message string) {
	payload := notify.Event{
		JobID:       job.JobID,
		ServiceID:   job.ServiceID,
		ServiceType: job.ServiceType,
		CustomerID:  job.CustomerID,
		NewStatus:   string(job.Status),
		Message:     message,
		Timestamp:   s.now().UTC(),
	}
	if oldStatus != nil {
		payload.OldStatus = string(*oldStatus)
	}

	if err := s.sink.Notify(ctx, event, payload); err != nil {
		s.logger.Warn("Failed to publish job event",
			slog.String("event", event),
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
	}
}
