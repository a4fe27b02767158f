package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
)

func TestListSharedDeckCardsUnknownDeckIsEmpty(t *testing.T) {
	repo := NewMemoryDecksRepository()

	cards, err := repo.ListSharedDeckCards(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected unknown deck to read as empty, got %v", err)
	}
	if len(cards) != 0 {
		t.Fatalf("expected no cards, got %d", len(cards))
	}

	// Existence is GetSharedDeck's to report.
	if _, err := repo.GetSharedDeck(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from GetSharedDeck, got %v", err)
	}
}

func TestListSharedDeckCardsReturnsCopies(t *testing.T) {
	repo := NewMemoryDecksRepository()
	if err := repo.PutSharedDeck(context.Background(), &domain.SharedDeck{
		ID:        "shared-1",
		Title:     "Biology",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("put deck: %v", err)
	}
	if err := repo.PutSharedDeckCards(context.Background(), "shared-1", []domain.Card{
		{ID: "card-a", Front: "front", Back: "back"},
	}); err != nil {
		t.Fatalf("put cards: %v", err)
	}

	cards, err := repo.ListSharedDeckCards(context.Background(), "shared-1")
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected one card, got %d", len(cards))
	}

	cards[0].Front = "mutated"
	again, err := repo.ListSharedDeckCards(context.Background(), "shared-1")
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if again[0].Front != "front" {
		t.Fatalf("expected stored card unchanged, got %q", again[0].Front)
	}
}
