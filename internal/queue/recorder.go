package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

// Recorder writes the append-only job status history. Entries are audit
// records only; scheduling logic never reads them back.
type Recorder struct {
	store  HistoryStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a new Recorder.
func NewRecorder(store HistoryStore, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Append writes one transition record. oldStatus is nil for the creation
// entry of a job.
func (r *Recorder) Append(ctx context.Context, jobID string, oldStatus *domain.Status, newStatus domain.Status, message string, details *string, createdBy string) error {
	entry := &domain.JobHistory{
		JobID:     jobID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Message:   message,
		Details:   details,
		CreatedBy: createdBy,
		CreatedAt: r.now().UTC(),
	}

	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.Error("Failed to append job history",
			slog.String("job_id", jobID),
			slog.String("new_status", string(newStatus)),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to append job history: %w", err)
	}

	return nil
}

// History returns the recorded transitions for a job, oldest first.
func (r *Recorder) History(ctx context.Context, jobID string) ([]domain.JobHistory, error) {
	entries, err := r.store.ListByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job history: %w", err)
	}
	return entries, nil
}
