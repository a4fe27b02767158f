package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/memoza/flashcards-back/internal/cache"
	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/repository"
)

type recordingKicker struct {
	mu    sync.Mutex
	kicks []string
}

func (k *recordingKicker) Kick(_ context.Context, jobID string) error {
	k.mu.Lock()
	k.kicks = append(k.kicks, jobID)
	k.mu.Unlock()
	return nil
}

func (k *recordingKicker) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.kicks)
}

func TestEnqueueCreateKicksExecutor(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	kicker := &recordingKicker{}
	svc := NewJobsService(repo, kicker, nil, nil)

	job, err := svc.EnqueueCreate(context.Background(), "owner-1", domain.CreateJobPayload{
		RawText:      "mitochondria",
		TargetDeckID: "deck-1",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if kicker.count() != 1 {
		t.Fatalf("expected one kick, got %d", kicker.count())
	}

	stored, err := repo.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("stored job: %v", err)
	}
	if stored.Payload.Create == nil || stored.Payload.Create.RawText != "mitochondria" {
		t.Fatalf("payload not persisted: %+v", stored.Payload)
	}
}

func TestEnqueueCreateRejectsEmptyPayload(t *testing.T) {
	svc := NewJobsService(repository.NewMemoryJobsRepository(), nil, nil, nil)

	_, err := svc.EnqueueCreate(context.Background(), "owner-1", domain.CreateJobPayload{
		TargetDeckID: "deck-1",
	})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload error, got %v", err)
	}
}

func TestEnqueueCollectIsIdempotentPerTarget(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	svc := NewJobsService(repo, &recordingKicker{}, nil, nil)

	first, err := svc.EnqueueCollect(context.Background(), "owner-1", "shared-1", "")
	if err != nil {
		t.Fatalf("first collect: %v", err)
	}

	// Simulate the first collect finishing, then a re-submit.
	done, err := repo.GetJob(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	done.Status = domain.JobStatusDone
	if err := repo.UpdateJob(context.Background(), done); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	second, err := svc.EnqueueCollect(context.Background(), "owner-1", "shared-1", "")
	if err != nil {
		t.Fatalf("second collect: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same owner+deck must map to the same job id: %s vs %s", first.ID, second.ID)
	}
	if second.Status != domain.JobStatusQueued {
		t.Fatalf("re-submit must reset the record to queued, got %s", second.Status)
	}

	other, err := svc.EnqueueCollect(context.Background(), "owner-2", "shared-1", "")
	if err != nil {
		t.Fatalf("other owner collect: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("different owners must get different collect job ids")
	}
}

func TestGetStatusEnforcesOwnership(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	statusCache := cache.NewStatusCache(cache.StatusConfig{})
	svc := NewJobsService(repo, nil, statusCache, nil)

	job, err := svc.EnqueueCreate(context.Background(), "owner-1", domain.CreateJobPayload{
		RawText:      "text",
		TargetDeckID: "deck-1",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := svc.GetStatus(context.Background(), "owner-1", job.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}

	// Second read is served from the cache; ownership still applies.
	if _, err := svc.GetStatus(context.Background(), "owner-2", job.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestKickUnknownJob(t *testing.T) {
	svc := NewJobsService(repository.NewMemoryJobsRepository(), &recordingKicker{}, nil, nil)

	if err := svc.Kick(context.Background(), "owner-1", "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestKickEnforcesOwnership(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	kicker := &recordingKicker{}
	svc := NewJobsService(repo, kicker, nil, nil)

	job, err := svc.EnqueueCreate(context.Background(), "owner-1", domain.CreateJobPayload{
		RawText:      "text",
		TargetDeckID: "deck-1",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := svc.Kick(context.Background(), "owner-2", job.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if err := svc.Kick(context.Background(), "owner-1", job.ID); err != nil {
		t.Fatalf("owner kick: %v", err)
	}
	// Enqueue kick + owner kick.
	if kicker.count() != 2 {
		t.Fatalf("expected 2 kicks, got %d", kicker.count())
	}
}
