package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

// heartbeatLoop periodically refreshes the worker's registry entry so it
// stays inside the liveness window. Liveness is observability only: a missed
// beat never interrupts a claim already in flight.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	w.logger.Debug("Heartbeat loop started",
		slog.String("worker_id", w.workerID),
		slog.Duration("interval", w.heartbeatInterval),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Heartbeat loop stopped")
			return

		case <-ctx.Done():
			w.logger.Debug("Heartbeat loop stopped - context canceled")
			return

		case <-ticker.C:
			if _, err := w.queue.Heartbeat(ctx, w.workerID); err != nil {
				if errors.Is(err, domain.ErrWorkerNotFound) {
					// Registry entry disappeared (e.g. a fresh database);
					// re-register instead of beating into the void.
					if _, rerr := w.queue.RegisterWorker(ctx, w.workerID, w.name, w.serviceTypes, w.concurrency); rerr != nil {
						w.logger.Error("Failed to re-register worker",
							slog.String("worker_id", w.workerID),
							slog.String("error", rerr.Error()),
						)
					}
					continue
				}
				w.logger.Warn("Failed to send heartbeat",
					slog.String("worker_id", w.workerID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
