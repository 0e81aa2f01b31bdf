package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

// LivenessWindow is the heartbeat age beyond which a worker counts as stale.
// Staleness affects observability only; claim eligibility depends solely on
// the service-type match, so a worker mid-poll near the window can still
// finish a claim it already initiated.
const LivenessWindow = 5 * time.Minute

// Registry tracks worker identity, capabilities, and heartbeat-based
// liveness.
type Registry struct {
	store  WorkerStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a new Registry.
func NewRegistry(store WorkerStore, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Register upserts a worker: descriptive fields are overwritten and the
// heartbeat refreshed for an existing worker_id, otherwise a new row is
// inserted.
func (r *Registry) Register(ctx context.Context, workerID, name string, serviceTypes []string, maxConcurrent int) (*domain.Worker, error) {
	if workerID == "" {
		return nil, domain.NewValidationError("worker_id is required")
	}
	if len(serviceTypes) == 0 {
		return nil, domain.NewValidationError("at least one supported service type is required")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if name == "" {
		name = workerID
	}

	now := r.now().UTC()
	worker := &domain.Worker{
		WorkerID:              workerID,
		Name:                  name,
		SupportedServiceTypes: serviceTypes,
		MaxConcurrentJobs:     maxConcurrent,
		LastHeartbeat:         now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := r.store.Upsert(ctx, worker); err != nil {
		r.logger.Error("Failed to register worker",
			slog.String("worker_id", workerID),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to register worker: %w", err)
	}

	r.logger.Info("Worker registered",
		slog.String("worker_id", workerID),
		slog.Any("service_types", serviceTypes),
		slog.Int("max_concurrent_jobs", maxConcurrent),
	)

	return r.store.GetByWorkerID(ctx, workerID)
}

// Heartbeat refreshes last_heartbeat for a registered worker. Returns
// domain.ErrWorkerNotFound when the worker never registered; the caller must
// register first.
func (r *Registry) Heartbeat(ctx context.Context, workerID string) (*domain.Worker, error) {
	worker, err := r.store.Touch(ctx, workerID, r.now().UTC())
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Worker heartbeat",
		slog.String("worker_id", workerID),
	)

	return worker, nil
}

// ActiveWorkers lists workers whose heartbeat falls inside the liveness
// window. Observability only, never consulted for claim eligibility.
func (r *Registry) ActiveWorkers(ctx context.Context) ([]domain.Worker, error) {
	since := r.now().UTC().Add(-LivenessWindow)
	workers, err := r.store.ListActive(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list active workers: %w", err)
	}
	return workers, nil
}

// ActiveCount returns the number of live workers.
func (r *Registry) ActiveCount(ctx context.Context) (int, error) {
	since := r.now().UTC().Add(-LivenessWindow)
	count, err := r.store.CountActive(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count active workers: %w", err)
	}
	return count, nil
}
