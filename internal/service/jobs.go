package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/memoza/flashcards-back/internal/cache"
	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/repository"
	"github.com/memoza/flashcards-back/internal/trigger"
)

type JobsService struct {
	repo        repository.JobsRepository
	kicker      trigger.Kicker
	statusCache *cache.StatusCache
	logger      *log.Logger
}

func NewJobsService(
	repo repository.JobsRepository,
	kicker trigger.Kicker,
	statusCache *cache.StatusCache,
	logger *log.Logger,
) *JobsService {
	return &JobsService{
		repo:        repo,
		kicker:      kicker,
		statusCache: statusCache,
		logger:      logger,
	}
}

// EnqueueCreate registers a card-generation job under a fresh id and wakes
// the executor.
func (s *JobsService) EnqueueCreate(
	ctx context.Context,
	ownerID string,
	payload domain.CreateJobPayload,
) (*domain.Job, error) {
	job := &domain.Job{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Mode:    domain.JobModeCreate,
		Payload: domain.JobPayload{
			Mode:   domain.JobModeCreate,
			Create: &payload,
		},
	}
	return s.enqueue(ctx, job)
}

// EnqueueCollect registers a deck-collect job. The id derives from
// (owner, shared deck), so re-submitting the same collect overwrites the
// existing record back to queued instead of spawning a duplicate.
func (s *JobsService) EnqueueCollect(
	ctx context.Context,
	ownerID, sharedDeckID, deckTitle string,
) (*domain.Job, error) {
	job := &domain.Job{
		ID:      domain.CollectJobID(ownerID, sharedDeckID),
		OwnerID: ownerID,
		Mode:    domain.JobModeCollect,
		Payload: domain.JobPayload{
			Mode: domain.JobModeCollect,
			Collect: &domain.CollectJobPayload{
				SharedDeckID: sharedDeckID,
				DeckTitle:    deckTitle,
			},
		},
	}
	return s.enqueue(ctx, job)
}

func (s *JobsService) enqueue(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	if err := job.Payload.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusQueued
	job.Phase = ""
	job.ErrorMessage = ""
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := s.repo.PutJob(ctx, job); err != nil {
		return nil, fmt.Errorf("put job: %w", err)
	}
	if s.statusCache != nil {
		s.statusCache.Invalidate(job.ID)
	}

	// The kick is latency sugar; a lost kick is healed by the sweep.
	if s.kicker != nil {
		if err := s.kicker.Kick(ctx, job.ID); err != nil && s.logger != nil {
			s.logger.Printf("kick after enqueue failed job_id=%s err=%v", job.ID, err)
		}
	}
	return job, nil
}

// Kick wakes the executor for one job on the caller's behalf.
func (s *JobsService) Kick(ctx context.Context, ownerID, jobID string) error {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.OwnerID != ownerID {
		return ErrPermissionDenied
	}
	if s.kicker == nil {
		return nil
	}
	if err := s.kicker.Kick(ctx, jobID); err != nil {
		return fmt.Errorf("kick job: %w", err)
	}
	return nil
}

// GetStatus returns the job record for polling. Reads go through a short
// TTL cache so clients can poll at arbitrary frequency without hammering
// the store.
func (s *JobsService) GetStatus(ctx context.Context, ownerID, jobID string) (*domain.Job, error) {
	if s.statusCache != nil {
		if job, ok := s.statusCache.Get(jobID); ok {
			if job.OwnerID != ownerID {
				return nil, ErrPermissionDenied
			}
			return job, nil
		}
	}

	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, ErrPermissionDenied
	}
	if s.statusCache != nil {
		s.statusCache.Set(jobID, job)
	}
	return job, nil
}
