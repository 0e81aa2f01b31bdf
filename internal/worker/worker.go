package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/michaelayoade/isp-framework/internal/queue"
)

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Queue             *queue.Service
	Provisioner       Provisioner
	WorkerID          string
	Name              string
	ServiceTypes      []string
	Concurrency       int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// Worker is a provisioning worker process. It registers itself with the
// queue's worker registry, keeps a heartbeat alive, and runs a pool of
// polling goroutines that claim jobs, execute them through the Provisioner,
// and report the outcome back through the queue service. All state changes
// go through queue operations, never against the store directly.
type Worker struct {
	logger            *slog.Logger
	queue             *queue.Service
	provisioner       Provisioner
	workerID          string
	name              string
	serviceTypes      []string
	concurrency       int
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	wg                sync.WaitGroup
	stopChan          chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	name := cfg.Name
	if name == "" {
		name = workerID
	}

	provisioner := cfg.Provisioner
	if provisioner == nil {
		provisioner = NewServiceProvisioner(cfg.Logger)
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	heartbeatInterval := cfg.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		logger:            cfg.Logger,
		queue:             cfg.Queue,
		provisioner:       provisioner,
		workerID:          workerID,
		name:              name,
		serviceTypes:      cfg.ServiceTypes,
		concurrency:       concurrency,
		pollInterval:      pollInterval,
		heartbeatInterval: heartbeatInterval,
		stopChan:          make(chan struct{}),
	}
}

// WorkerID returns the identifier this process registered under.
func (w *Worker) WorkerID() string {
	return w.workerID
}

// Start registers the worker, spawns the heartbeat loop and the polling
// pool, then blocks until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Any("service_types", w.serviceTypes),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("poll_interval", w.pollInterval),
	)

	if _, err := w.queue.RegisterWorker(ctx, w.workerID, w.name, w.serviceTypes, w.concurrency); err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}

	w.wg.Add(1)
	go w.heartbeatLoop(ctx)

	w.spawnWorkerPool(ctx)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker and waits for in-flight jobs to finish
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...",
		slog.String("worker_id", w.workerID),
	)
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
