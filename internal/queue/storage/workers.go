package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

const workerColumns = `
	id, worker_id, name, supported_service_types, max_concurrent_jobs,
	last_heartbeat, created_at, updated_at`

// WorkerStorage is the PostgreSQL implementation of queue.WorkerStore.
type WorkerStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewWorkerStorage creates a new WorkerStorage instance.
func NewWorkerStorage(db *sqlx.DB, logger *slog.Logger) *WorkerStorage {
	return &WorkerStorage{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts the worker or, when the worker_id exists, overwrites its
// descriptive fields and refreshes the heartbeat. Workers are never deleted.
func (s *WorkerStorage) Upsert(ctx context.Context, worker *domain.Worker) error {
	query := `
		INSERT INTO provisioning_workers (
			worker_id, name, supported_service_types, max_concurrent_jobs,
			last_heartbeat, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $6
		)
		ON CONFLICT (worker_id) DO UPDATE SET
			name = EXCLUDED.name,
			supported_service_types = EXCLUDED.supported_service_types,
			max_concurrent_jobs = EXCLUDED.max_concurrent_jobs,
			last_heartbeat = EXCLUDED.last_heartbeat,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		worker.WorkerID,
		worker.Name,
		worker.SupportedServiceTypes,
		worker.MaxConcurrentJobs,
		worker.LastHeartbeat,
		worker.CreatedAt,
	).Scan(&worker.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert worker: %w", err)
	}

	return nil
}

// GetByWorkerID retrieves a worker by its identifier.
func (s *WorkerStorage) GetByWorkerID(ctx context.Context, workerID string) (*domain.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM provisioning_workers WHERE worker_id = $1`

	var worker domain.Worker
	err := s.db.GetContext(ctx, &worker, query, workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWorkerNotFound
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}

	return &worker, nil
}

// Touch refreshes a registered worker's heartbeat timestamp.
func (s *WorkerStorage) Touch(ctx context.Context, workerID string, at time.Time) (*domain.Worker, error) {
	query := `
		UPDATE provisioning_workers
		SET last_heartbeat = $1,
		    updated_at = $1
		WHERE worker_id = $2
		RETURNING ` + workerColumns

	var worker domain.Worker
	err := s.db.GetContext(ctx, &worker, query, at, workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Heartbeat for unregistered worker",
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrWorkerNotFound
		}
		return nil, fmt.Errorf("failed to update worker heartbeat: %w", err)
	}

	return &worker, nil
}

// ListActive returns workers whose heartbeat is newer than since.
func (s *WorkerStorage) ListActive(ctx context.Context, since time.Time) ([]domain.Worker, error) {
	query := `
		SELECT ` + workerColumns + `
		FROM provisioning_workers
		WHERE last_heartbeat > $1
		ORDER BY worker_id
	`

	var workers []domain.Worker
	if err := s.db.SelectContext(ctx, &workers, query, since); err != nil {
		return nil, fmt.Errorf("failed to list active workers: %w", err)
	}

	return workers, nil
}

// CountActive returns the number of workers with a heartbeat newer than
// since.
func (s *WorkerStorage) CountActive(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM provisioning_workers WHERE last_heartbeat > $1`, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count active workers: %w", err)
	}

	return count, nil
}
