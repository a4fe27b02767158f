package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
)

// JobsRepository abstracts job persistence. MutateJob is the store's one
// piece of per-document atomicity: the callback runs against the current
// record under exclusion and its result is persisted before any other
// mutation of the same id is admitted. Lease acquisition is built on it.
type JobsRepository interface {
	// PutJob creates the job, overwriting any record with the same id.
	// Collect jobs rely on the overwrite for natural re-enqueue dedupe.
	PutJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	UpdateJob(ctx context.Context, job *domain.Job) error
	MutateJob(ctx context.Context, jobID string, fn func(*domain.Job) error) (*domain.Job, error)
	// ListEligibleJobs returns ids of jobs a Tick may pick up: queued, or
	// running with a lease older than ttl. Oldest first, bounded by limit.
	ListEligibleJobs(ctx context.Context, now time.Time, ttl time.Duration, limit int) ([]string, error)
}

// MemoryJobsRepository stores jobs in memory for local development and tests.
type MemoryJobsRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func NewMemoryJobsRepository() *MemoryJobsRepository {
	return &MemoryJobsRepository{
		jobs: make(map[string]*domain.Job),
	}
}

func (r *MemoryJobsRepository) PutJob(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobsRepository) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryJobsRepository) UpdateJob(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobsRepository) MutateJob(
	_ context.Context,
	jobID string,
	fn func(*domain.Job) error,
) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}

	working := cloneJob(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	r.jobs[jobID] = cloneJob(working)
	return cloneJob(working), nil
}

func (r *MemoryJobsRepository) ListEligibleJobs(
	_ context.Context,
	now time.Time,
	ttl time.Duration,
	limit int,
) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}

	eligible := make([]*domain.Job, 0)
	for _, job := range r.jobs {
		switch job.Status {
		case domain.JobStatusQueued:
			eligible = append(eligible, job)
		case domain.JobStatusRunning:
			if !job.LeaseFresh(now, ttl) {
				eligible = append(eligible, job)
			}
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	ids := make([]string, 0, limit)
	for _, job := range eligible {
		if len(ids) >= limit {
			break
		}
		ids = append(ids, job.ID)
	}
	return ids, nil
}

func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	clone := *job
	if job.Payload.Create != nil {
		create := *job.Payload.Create
		create.ImageRefs = append([]string(nil), job.Payload.Create.ImageRefs...)
		create.OCRTexts = append([]string(nil), job.Payload.Create.OCRTexts...)
		clone.Payload.Create = &create
	}
	if job.Payload.Collect != nil {
		collect := *job.Payload.Collect
		clone.Payload.Collect = &collect
	}
	return &clone
}
