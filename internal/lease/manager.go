package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/repository"
)

var (
	// ErrHeld means another live holder owns the job's lease. Not a job
	// failure; callers skip and re-poll.
	ErrHeld = errors.New("lease held")

	// ErrTerminal means the job reached done or failed and is never
	// picked again.
	ErrTerminal = errors.New("job is terminal")
)

// DefaultTTL covers one executor pass. A crashed holder's job becomes
// reclaimable after this long.
const DefaultTTL = 2 * time.Minute

// Manager hands out time-bounded exclusive leases on job records. The only
// store capability it relies on is the per-document read-modify-write; there
// is no renewal, a pass either finishes within the TTL or the next trigger
// reclaims the job and resumes from its last checkpoint.
type Manager struct {
	repo repository.JobsRepository
	now  func() time.Time
}

func NewManager(repo repository.JobsRepository) *Manager {
	return &Manager{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Tests only.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TryAcquire claims the job for holderID and returns the claimed record as
// the executor's working snapshot. A fresh lease yields ErrHeld no matter
// who holds it — concurrent passes inside one process share a holder id,
// so holder identity cannot stand in for exclusivity. A terminal job
// yields ErrTerminal. A lease older than ttl is reclaimed even though the
// job still reads as running.
func (m *Manager) TryAcquire(
	ctx context.Context,
	jobID, holderID string,
	ttl time.Duration,
) (*domain.Job, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := m.now()

	job, err := m.repo.MutateJob(ctx, jobID, func(job *domain.Job) error {
		if job.Terminal() {
			return ErrTerminal
		}
		if job.LeaseFresh(now, ttl) {
			return ErrHeld
		}
		job.Status = domain.JobStatusRunning
		job.LeaseHolder = holderID
		job.LeaseUpdatedAt = now
		job.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrHeld) || errors.Is(err, ErrTerminal) || errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("acquire lease for %s: %w", jobID, err)
	}
	return job, nil
}
