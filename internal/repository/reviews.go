package repository

import (
	"context"
	"sync"

	"github.com/memoza/flashcards-back/internal/domain"
)

// ReviewsRepository persists per-owner spaced-repetition state.
// MutateStudyState mirrors JobsRepository.MutateJob: a per-document
// read-modify-write that creates the state on first review.
type ReviewsRepository interface {
	GetStudyState(ctx context.Context, ownerID, cardID string) (*domain.StudyState, error)
	MutateStudyState(
		ctx context.Context,
		ownerID, cardID string,
		fn func(*domain.StudyState) error,
	) (*domain.StudyState, error)
}

// MemoryReviewsRepository stores study state in memory for local development
// and tests.
type MemoryReviewsRepository struct {
	mu     sync.Mutex
	states map[string]*domain.StudyState
}

func NewMemoryReviewsRepository() *MemoryReviewsRepository {
	return &MemoryReviewsRepository{
		states: make(map[string]*domain.StudyState),
	}
}

func (r *MemoryReviewsRepository) GetStudyState(
	_ context.Context,
	ownerID, cardID string,
) (*domain.StudyState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[studyStateKey(ownerID, cardID)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *state
	return &clone, nil
}

func (r *MemoryReviewsRepository) MutateStudyState(
	_ context.Context,
	ownerID, cardID string,
	fn func(*domain.StudyState) error,
) (*domain.StudyState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := studyStateKey(ownerID, cardID)
	current, ok := r.states[key]
	if !ok {
		current = domain.NewStudyState(ownerID, cardID)
	}

	working := *current
	if err := fn(&working); err != nil {
		return nil, err
	}
	stored := working
	r.states[key] = &stored

	result := working
	return &result, nil
}

func studyStateKey(ownerID, cardID string) string {
	return ownerID + "|" + cardID
}
