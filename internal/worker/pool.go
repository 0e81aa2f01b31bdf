package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/michaelayoade/isp-framework/internal/queue"
	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

// spawnWorkerPool spawns N polling goroutines based on concurrency
// configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.pollLoop(ctx, i)
	}
}

// pollLoop is the main loop of each pool goroutine: claim, execute, report.
// An empty poll result means nothing to do now; the loop sleeps one jittered
// poll interval and tries again.
func (w *Worker) pollLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	poller := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Poll goroutine started",
		slog.String("poller", poller),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Poll goroutine stopping - stopChan closed",
				slog.String("poller", poller),
			)
			return
		case <-ctx.Done():
			w.logger.Info("Poll goroutine stopping - context canceled",
				slog.String("poller", poller),
			)
			return
		default:
		}

		job, err := w.queue.GetNextJob(ctx, w.workerID, w.serviceTypes)
		if err != nil {
			w.logger.Error("Failed to poll for next job",
				slog.String("poller", poller),
				slog.String("error", err.Error()),
			)
			w.sleep(ctx, w.pollInterval)
			continue
		}

		if job == nil {
			w.sleep(ctx, jitter(w.pollInterval))
			continue
		}

		w.logger.Info("Job claimed",
			slog.String("poller", poller),
			slog.String("job_id", job.JobID),
			slog.String("service_type", job.ServiceType),
		)

		w.runJob(ctx, job)
	}
}

// runJob executes one claimed job and reports the outcome. The queue decides
// whether a failure is requeued with backoff or terminal.
func (w *Worker) runJob(ctx context.Context, job *domain.Job) {
	result, err := w.provisioner.Provision(ctx, job)

	update := queue.StatusUpdate{
		UpdatedBy: w.workerID,
	}
	if err != nil {
		update.Status = domain.StatusFailed
		update.ErrorMessage = err.Error()
		update.Message = "provisioning failed"
	} else {
		update.Status = domain.StatusCompleted
		update.ResultData = result
		update.Message = "provisioning completed"
	}

	if _, uerr := w.queue.UpdateJobStatus(ctx, job.JobID, update); uerr != nil {
		// The claim is already ours; a failed report leaves the job in
		// processing until an operator or external reaper intervenes.
		w.logger.Error("Failed to report job status",
			slog.String("job_id", job.JobID),
			slog.String("status", string(update.Status)),
			slog.String("error", uerr.Error()),
		)
		return
	}

	if err != nil {
		w.logger.Warn("Job failed",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	} else {
		w.logger.Info("Job completed",
			slog.String("job_id", job.JobID),
		)
	}
}

// sleep waits for d or until shutdown, whichever comes first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-w.stopChan:
	case <-ctx.Done():
	}
}

// jitter spreads concurrent pollers over [d, 1.5d) so they do not hammer the
// store in lockstep.
func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}
