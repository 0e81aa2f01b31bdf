package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

// HistoryStorage is the PostgreSQL implementation of queue.HistoryStore.
// Rows are only ever inserted; there is no update or delete path.
type HistoryStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewHistoryStorage creates a new HistoryStorage instance.
func NewHistoryStorage(db *sqlx.DB, logger *slog.Logger) *HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

// Append inserts one transition record.
func (s *HistoryStorage) Append(ctx context.Context, entry *domain.JobHistory) error {
	query := `
		INSERT INTO provisioning_job_history (
			job_id, old_status, new_status, message, details, created_by, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		entry.JobID,
		entry.OldStatus,
		entry.NewStatus,
		entry.Message,
		entry.Details,
		entry.CreatedBy,
		entry.CreatedAt,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to insert job history: %w", err)
	}

	return nil
}

// ListByJobID returns a job's transitions, oldest first.
func (s *HistoryStorage) ListByJobID(ctx context.Context, jobID string) ([]domain.JobHistory, error) {
	query := `
		SELECT id, job_id, old_status, new_status, message, details, created_by, created_at
		FROM provisioning_job_history
		WHERE job_id = $1
		ORDER BY created_at, id
	`

	var entries []domain.JobHistory
	if err := s.db.SelectContext(ctx, &entries, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list job history: %w", err)
	}

	return entries, nil
}
