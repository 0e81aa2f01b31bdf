package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/michaelayoade/isp-framework/internal/queue/domain"
)

// In-memory store implementations used for isolated service tests. ClaimNext
// holds one mutex across selection and claim, mirroring the atomicity the
// PostgreSQL implementation gets from FOR UPDATE SKIP LOCKED.

type memJobStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[string]*domain.Job
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]*domain.Job)}
}

func (s *memJobStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	job.ID = s.nextID
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

func (s *memJobStore) GetByJobID(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *memJobStore) ClaimNext(_ context.Context, workerID string, serviceTypes []string, now time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supported := make(map[string]bool, len(serviceTypes))
	for _, st := range serviceTypes {
		supported[st] = true
	}

	var best *domain.Job
	for _, job := range s.jobs {
		if job.Status != domain.StatusQueued || !supported[job.ServiceType] || job.ScheduledFor.After(now) {
			continue
		}
		if best == nil || claimLess(job, best) {
			best = job
		}
	}

	if best == nil {
		return nil, nil
	}

	best.Status = domain.StatusProcessing
	wid := workerID
	best.WorkerID = &wid
	started := now
	best.StartedAt = &started
	best.UpdatedAt = now

	cp := *best
	return &cp, nil
}

func claimLess(a, b *domain.Job) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() < b.Priority.Rank()
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *memJobStore) UpdateFrom(_ context.Context, job *domain.Job, current domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[job.JobID]
	if !ok || stored.Status != current {
		return false, nil
	}
	cp := *job
	cp.ID = stored.ID
	s.jobs[job.JobID] = &cp
	return true, nil
}

func (s *memJobStore) List(_ context.Context, filter JobFilter) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.Job
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && job.Priority != filter.Priority {
			continue
		}
		if filter.ServiceType != "" && job.ServiceType != filter.ServiceType {
			continue
		}
		if filter.CustomerID != nil && (job.CustomerID == nil || *job.CustomerID != *filter.CustomerID) {
			continue
		}
		if filter.WorkerID != "" && (job.WorkerID == nil || *job.WorkerID != filter.WorkerID) {
			continue
		}
		matched = append(matched, *job)
	}

	// Newest first, matching the SQL ordering.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

func (s *memJobStore) Statistics(_ context.Context) (*Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Statistics{
		ByStatus:      make(map[domain.Status]int),
		ByPriority:    make(map[domain.Priority]int),
		ByServiceType: make(map[string]int),
	}

	var totalSeconds float64
	var completed int
	for _, job := range s.jobs {
		stats.ByStatus[job.Status]++
		stats.ByPriority[job.Priority]++
		stats.ByServiceType[job.ServiceType]++

		if job.Status == domain.StatusCompleted && job.StartedAt != nil && job.CompletedAt != nil {
			totalSeconds += job.CompletedAt.Sub(*job.StartedAt).Seconds()
			completed++
		}
	}
	if completed > 0 {
		stats.AverageProcessingSeconds = totalSeconds / float64(completed)
	}

	return stats, nil
}

type memHistoryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.JobHistory
}

func newMemHistoryStore() *memHistoryStore {
	return &memHistoryStore{}
}

func (s *memHistoryStore) Append(_ context.Context, entry *domain.JobHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memHistoryStore) ListByJobID(_ context.Context, jobID string) ([]domain.JobHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.JobHistory
	for _, entry := range s.entries {
		if entry.JobID == jobID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type memWorkerStore struct {
	mu      sync.Mutex
	nextID  int64
	workers map[string]*domain.Worker
}

func newMemWorkerStore() *memWorkerStore {
	return &memWorkerStore{workers: make(map[string]*domain.Worker)}
}

func (s *memWorkerStore) Upsert(_ context.Context, worker *domain.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.workers[worker.WorkerID]; ok {
		worker.ID = existing.ID
		worker.CreatedAt = existing.CreatedAt
	} else {
		s.nextID++
		worker.ID = s.nextID
	}
	cp := *worker
	s.workers[worker.WorkerID] = &cp
	return nil
}

func (s *memWorkerStore) GetByWorkerID(_ context.Context, workerID string) (*domain.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	worker, ok := s.workers[workerID]
	if !ok {
		return nil, domain.ErrWorkerNotFound
	}
	cp := *worker
	return &cp, nil
}

func (s *memWorkerStore) Touch(_ context.Context, workerID string, at time.Time) (*domain.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	worker, ok := s.workers[workerID]
	if !ok {
		return nil, domain.ErrWorkerNotFound
	}
	worker.LastHeartbeat = at
	worker.UpdatedAt = at
	cp := *worker
	return &cp, nil
}

func (s *memWorkerStore) ListActive(_ context.Context, since time.Time) ([]domain.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Worker
	for _, worker := range s.workers {
		if worker.LastHeartbeat.After(since) {
			out = append(out, *worker)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}

func (s *memWorkerStore) CountActive(ctx context.Context, since time.Time) (int, error) {
	workers, err := s.ListActive(ctx, since)
	return len(workers), err
}
