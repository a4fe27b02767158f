package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/repository"
)

func seedReviewCard(t *testing.T, cards repository.CardsRepository) {
	t.Helper()
	err := cards.CreateCard(context.Background(), &domain.Card{
		ID:      "card-1",
		OwnerID: "owner-1",
		DeckID:  "deck-1",
		Front:   "f",
		Back:    "b",
	})
	if err != nil {
		t.Fatalf("seed card: %v", err)
	}
}

func TestApplyReviewFirstRemember(t *testing.T) {
	cards := repository.NewMemoryCardsRepository()
	seedReviewCard(t, cards)
	svc := NewReviewsService(repository.NewMemoryReviewsRepository(), cards)

	attemptAt := time.Now().UTC()
	state, applied, err := svc.ApplyReview(context.Background(), "owner-1", ReviewInput{
		CardID:    "card-1",
		Outcome:   domain.OutcomeRemember,
		AttemptAt: attemptAt,
	})
	if err != nil {
		t.Fatalf("apply review: %v", err)
	}
	if !applied {
		t.Fatalf("expected first review to apply")
	}
	if state.RepetitionCount != 1 || state.IntervalDays != 1 {
		t.Fatalf("expected reps=1 interval=1, got reps=%d interval=%d", state.RepetitionCount, state.IntervalDays)
	}
	if math.Abs(state.EasinessFactor-2.6) > 1e-9 {
		t.Fatalf("expected ef 2.6, got %f", state.EasinessFactor)
	}
	if !state.NextReviewAt.Equal(attemptAt.Add(24 * time.Hour)) {
		t.Fatalf("expected next review one day out, got %v", state.NextReviewAt)
	}
}

func TestApplyReviewDuplicateIsNoOp(t *testing.T) {
	cards := repository.NewMemoryCardsRepository()
	seedReviewCard(t, cards)
	svc := NewReviewsService(repository.NewMemoryReviewsRepository(), cards)

	attemptAt := time.Now().UTC()
	input := ReviewInput{CardID: "card-1", Outcome: domain.OutcomeRemember, AttemptAt: attemptAt}

	first, applied, err := svc.ApplyReview(context.Background(), "owner-1", input)
	if err != nil || !applied {
		t.Fatalf("first apply: applied=%v err=%v", applied, err)
	}

	second, applied, err := svc.ApplyReview(context.Background(), "owner-1", input)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if applied {
		t.Fatalf("duplicate attempt key must not re-apply")
	}
	if second.EasinessFactor != first.EasinessFactor ||
		second.IntervalDays != first.IntervalDays ||
		second.RepetitionCount != first.RepetitionCount {
		t.Fatalf("duplicate must return identical state: first=%+v second=%+v", first, second)
	}
}

func TestApplyReviewForgetResets(t *testing.T) {
	cards := repository.NewMemoryCardsRepository()
	seedReviewCard(t, cards)
	svc := NewReviewsService(repository.NewMemoryReviewsRepository(), cards)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if _, _, err := svc.ApplyReview(context.Background(), "owner-1", ReviewInput{
			CardID:    "card-1",
			Outcome:   domain.OutcomeRemember,
			AttemptAt: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("apply review %d: %v", i, err)
		}
	}

	state, applied, err := svc.ApplyReview(context.Background(), "owner-1", ReviewInput{
		CardID:    "card-1",
		Outcome:   domain.OutcomeForget,
		AttemptAt: base.Add(4 * time.Hour),
	})
	if err != nil || !applied {
		t.Fatalf("forget apply: applied=%v err=%v", applied, err)
	}
	if state.RepetitionCount != 0 || state.IntervalDays != 1 {
		t.Fatalf("forget must reset reps and interval, got reps=%d interval=%d", state.RepetitionCount, state.IntervalDays)
	}
}

func TestApplyReviewUnknownCard(t *testing.T) {
	svc := NewReviewsService(repository.NewMemoryReviewsRepository(), repository.NewMemoryCardsRepository())

	_, _, err := svc.ApplyReview(context.Background(), "owner-1", ReviewInput{
		CardID:  "missing",
		Outcome: domain.OutcomeRemember,
	})
	if err == nil {
		t.Fatalf("expected error for unknown card")
	}
}

func TestApplyReviewExplicitQuality(t *testing.T) {
	cards := repository.NewMemoryCardsRepository()
	seedReviewCard(t, cards)
	svc := NewReviewsService(repository.NewMemoryReviewsRepository(), cards)

	quality := 3
	state, applied, err := svc.ApplyReview(context.Background(), "owner-1", ReviewInput{
		CardID:    "card-1",
		Outcome:   domain.OutcomeRemember,
		AttemptAt: time.Now().UTC(),
		Quality:   &quality,
	})
	if err != nil || !applied {
		t.Fatalf("apply: applied=%v err=%v", applied, err)
	}
	// quality 3 lowers EF: 2.5 + 0.1 - 2*(0.08+2*0.02) = 2.36
	if math.Abs(state.EasinessFactor-2.36) > 1e-9 {
		t.Fatalf("expected ef 2.36 for quality 3, got %f", state.EasinessFactor)
	}
}
