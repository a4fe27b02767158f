package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/repository"
	"github.com/memoza/flashcards-back/internal/retrytx"
)

type DecksService struct {
	decks    repository.DecksRepository
	jobs     *JobsService
	retryCfg retrytx.Config
	logger   *log.Logger
	now      func() time.Time
}

func NewDecksService(
	decks repository.DecksRepository,
	jobs *JobsService,
	retryCfg retrytx.Config,
	logger *log.Logger,
) *DecksService {
	return &DecksService{
		decks:    decks,
		jobs:     jobs,
		retryCfg: retryCfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *DecksService) ListShared(ctx context.Context) ([]domain.SharedDeck, error) {
	return s.decks.ListSharedDecks(ctx)
}

func (s *DecksService) GetShared(ctx context.Context, sharedDeckID string) (*domain.SharedDeck, error) {
	return s.decks.GetSharedDeck(ctx, sharedDeckID)
}

// SaveResult reports what a save did: the collect job copying the cards,
// and whether the deck was already in the owner's library.
type SaveResult struct {
	Job          *domain.Job
	AlreadySaved bool
}

// Save puts a shared deck into the owner's library. The popularity counter
// increment runs inside the dedupe-checked transaction and is retried on
// write conflicts; a deck saved before short-circuits without touching the
// counter. Either way the collect job is (re-)enqueued — its writes are
// idempotent, so a re-run only fills whatever is missing.
func (s *DecksService) Save(ctx context.Context, ownerID, sharedDeckID, deckTitle string) (*SaveResult, error) {
	if _, err := s.decks.GetSharedDeck(ctx, sharedDeckID); err != nil {
		return nil, fmt.Errorf("load shared deck %s: %w", sharedDeckID, err)
	}

	result := &SaveResult{}
	err := retrytx.RunWithRetry(ctx, func(ctx context.Context) error {
		saveErr := s.decks.SaveSharedDeck(ctx, ownerID, sharedDeckID, s.now())
		if errors.Is(saveErr, repository.ErrAlreadySaved) {
			result.AlreadySaved = true
			return nil
		}
		return saveErr
	}, s.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("save shared deck: %w", err)
	}

	job, err := s.jobs.EnqueueCollect(ctx, ownerID, sharedDeckID, deckTitle)
	if err != nil {
		return nil, fmt.Errorf("enqueue collect: %w", err)
	}
	result.Job = job

	if s.logger != nil {
		s.logger.Printf("shared deck saved owner_id=%s deck_id=%s already=%t", ownerID, sharedDeckID, result.AlreadySaved)
	}
	return result, nil
}
