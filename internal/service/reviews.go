package service

import (
	"context"
	"fmt"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/repository"
	"github.com/memoza/flashcards-back/internal/srs"
)

type ReviewsService struct {
	reviews repository.ReviewsRepository
	cards   repository.CardsRepository
	now     func() time.Time
}

func NewReviewsService(reviews repository.ReviewsRepository, cards repository.CardsRepository) *ReviewsService {
	return &ReviewsService{
		reviews: reviews,
		cards:   cards,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ReviewInput is one review submission. Quality, when set, overrides the
// coarse outcome mapping.
type ReviewInput struct {
	CardID    string
	Outcome   domain.ReviewOutcome
	AttemptAt time.Time
	Quality   *int
}

// ApplyReview feeds one review through the scheduler. The attempt key
// (attempt timestamp plus outcome) dedupes resubmissions: when it matches
// the stored lastReviewKey the scheduler is not invoked and the previously
// computed state comes back unchanged, with applied=false.
func (s *ReviewsService) ApplyReview(
	ctx context.Context,
	ownerID string,
	input ReviewInput,
) (state *domain.StudyState, applied bool, err error) {
	if input.CardID == "" {
		return nil, false, fmt.Errorf("card id is required")
	}
	if input.Outcome != domain.OutcomeRemember && input.Outcome != domain.OutcomeForget {
		return nil, false, fmt.Errorf("unknown outcome %q", input.Outcome)
	}
	if input.AttemptAt.IsZero() {
		input.AttemptAt = s.now()
	}

	if _, err := s.cards.GetCard(ctx, ownerID, input.CardID); err != nil {
		return nil, false, fmt.Errorf("load card %s: %w", input.CardID, err)
	}

	attemptKey := domain.AttemptKey(input.AttemptAt, input.Outcome)
	quality := domain.QualityForOutcome(input.Outcome)
	if input.Quality != nil {
		quality = *input.Quality
	}

	state, err = s.reviews.MutateStudyState(ctx, ownerID, input.CardID, func(current *domain.StudyState) error {
		if current.LastReviewKey == attemptKey {
			return nil
		}

		result := srs.Schedule(srs.Input{
			EasinessFactor:  current.EasinessFactor,
			IntervalDays:    current.IntervalDays,
			RepetitionCount: current.RepetitionCount,
		}, quality, input.AttemptAt)

		current.EasinessFactor = result.EasinessFactor
		current.IntervalDays = result.IntervalDays
		current.RepetitionCount = result.RepetitionCount
		current.NextReviewAt = result.NextReviewAt
		current.LastReviewedAt = input.AttemptAt
		current.LastReviewKey = attemptKey
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return state, applied, nil
}

// GetStudyState returns the stored recall state of one card. Clients use
// its LastReviewedAt to reconcile review submissions whose response was
// lost.
func (s *ReviewsService) GetStudyState(ctx context.Context, ownerID, cardID string) (*domain.StudyState, error) {
	return s.reviews.GetStudyState(ctx, ownerID, cardID)
}
