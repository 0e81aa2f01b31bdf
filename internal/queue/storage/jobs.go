package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/michaelayoade/isp-framework/internal/queue"
	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

const jobColumns = `
	id, job_id, service_id, service_type, customer_id, priority, status,
	worker_id, retry_count, max_retries, scheduled_for, started_at,
	completed_at, next_retry_at, result_data, error_message, created_at,
	updated_at`

// priorityRank orders claim candidates: urgent before high before normal
// before low.
const priorityRank = `
	CASE priority
		WHEN 'urgent' THEN 0
		WHEN 'high' THEN 1
		WHEN 'normal' THEN 2
		ELSE 3
	END`

// JobStorage is the PostgreSQL implementation of queue.JobStore.
type JobStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobStorage creates a new JobStorage instance.
func NewJobStorage(db *sqlx.DB, logger *slog.Logger) *JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new job row and fills in the generated internal id.
func (s *JobStorage) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO provisioning_jobs (
			job_id, service_id, service_type, customer_id, priority, status,
			worker_id, retry_count, max_retries, scheduled_for, started_at,
			completed_at, next_retry_at, result_data, error_message,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17
		)
		RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		job.JobID,
		job.ServiceID,
		job.ServiceType,
		job.CustomerID,
		job.Priority,
		job.Status,
		job.WorkerID,
		job.RetryCount,
		job.MaxRetries,
		job.ScheduledFor,
		job.StartedAt,
		job.CompletedAt,
		job.NextRetryAt,
		job.ResultData,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	).Scan(&job.ID)

	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// GetByJobID retrieves a job by its external identifier.
func (s *JobStorage) GetByJobID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM provisioning_jobs WHERE job_id = $1`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ClaimNext selects and claims the best eligible queued job in one atomic
// statement. The subselect locks the candidate row and skips rows already
// locked by concurrent claimers, so among N racing callers exactly one
// succeeds per job and unrelated rows never block each other.
func (s *JobStorage) ClaimNext(ctx context.Context, workerID string, serviceTypes []string, now time.Time) (*domain.Job, error) {
	query := `
		UPDATE provisioning_jobs
		SET status = $1,
		    worker_id = $2,
		    started_at = $3,
		    updated_at = $3
		WHERE id = (
			SELECT id
			FROM provisioning_jobs
			WHERE status = $4
			  AND service_type = ANY($5)
			  AND scheduled_for <= $3
			ORDER BY ` + priorityRank + `, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		domain.StatusProcessing,
		workerID,
		now,
		domain.StatusQueued,
		pq.Array(serviceTypes),
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Nothing eligible, or every candidate was taken mid-claim.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", job.JobID),
		slog.String("worker_id", workerID),
		slog.String("service_type", job.ServiceType),
	)

	return &job, nil
}

// UpdateFrom persists the job's mutable fields, conditional on the stored
// status still matching current. Zero rows affected means the row moved
// under the caller; the stored (possibly terminal) status wins.
func (s *JobStorage) UpdateFrom(ctx context.Context, job *domain.Job, current domain.Status) (bool, error) {
	query := `
		UPDATE provisioning_jobs
		SET status = $1,
		    worker_id = $2,
		    retry_count = $3,
		    scheduled_for = $4,
		    started_at = $5,
		    completed_at = $6,
		    next_retry_at = $7,
		    result_data = $8,
		    error_message = $9,
		    updated_at = $10
		WHERE job_id = $11
		  AND status = $12
	`

	result, err := s.db.ExecContext(ctx, query,
		job.Status,
		job.WorkerID,
		job.RetryCount,
		job.ScheduledFor,
		job.StartedAt,
		job.CompletedAt,
		job.NextRetryAt,
		job.ResultData,
		job.ErrorMessage,
		job.UpdatedAt,
		job.JobID,
		current,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		s.logger.Warn("Conditional job update matched no row",
			slog.String("job_id", job.JobID),
			slog.String("expected_status", string(current)),
		)
		return false, nil
	}

	return true, nil
}

// List returns jobs matching the filter, newest first.
func (s *JobStorage) List(ctx context.Context, filter queue.JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM provisioning_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Priority != "" {
		query += fmt.Sprintf(" AND priority = $%d", argIdx)
		args = append(args, filter.Priority)
		argIdx++
	}

	if filter.ServiceType != "" {
		query += fmt.Sprintf(" AND service_type = $%d", argIdx)
		args = append(args, filter.ServiceType)
		argIdx++
	}

	if filter.CustomerID != nil {
		query += fmt.Sprintf(" AND customer_id = $%d", argIdx)
		args = append(args, *filter.CustomerID)
		argIdx++
	}

	if filter.WorkerID != "" {
		query += fmt.Sprintf(" AND worker_id = $%d", argIdx)
		args = append(args, filter.WorkerID)
		argIdx++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	var jobs []domain.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// Statistics aggregates job counts and the average processing duration of
// completed jobs. ActiveWorkers is left for the caller to fill from the
// worker registry.
func (s *JobStorage) Statistics(ctx context.Context) (*queue.Statistics, error) {
	stats := &queue.Statistics{
		ByStatus:      make(map[domain.Status]int),
		ByPriority:    make(map[domain.Priority]int),
		ByServiceType: make(map[string]int),
	}

	type bucket struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}

	var byStatus []bucket
	err := s.db.SelectContext(ctx, &byStatus,
		`SELECT status AS key, COUNT(*) AS count FROM provisioning_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	for _, b := range byStatus {
		stats.ByStatus[domain.Status(b.Key)] = b.Count
	}

	var byPriority []bucket
	err = s.db.SelectContext(ctx, &byPriority,
		`SELECT priority AS key, COUNT(*) AS count FROM provisioning_jobs GROUP BY priority`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by priority: %w", err)
	}
	for _, b := range byPriority {
		stats.ByPriority[domain.Priority(b.Key)] = b.Count
	}

	var byServiceType []bucket
	err = s.db.SelectContext(ctx, &byServiceType,
		`SELECT service_type AS key, COUNT(*) AS count FROM provisioning_jobs GROUP BY service_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by service type: %w", err)
	}
	for _, b := range byServiceType {
		stats.ByServiceType[b.Key] = b.Count
	}

	err = s.db.GetContext(ctx, &stats.AverageProcessingSeconds, `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - started_at))), 0)
		FROM provisioning_jobs
		WHERE status = $1
		  AND started_at IS NOT NULL
		  AND completed_at IS NOT NULL
	`, domain.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average processing duration: %w", err)
	}

	return stats, nil
}
