package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
)

// DecksRepository persists user decks, the shared-deck marketplace records
// and the per-owner saved-deck markers.
type DecksRepository interface {
	CreateDeck(ctx context.Context, deck *domain.Deck) error
	GetDeck(ctx context.Context, ownerID, deckID string) (*domain.Deck, error)
	PutSharedDeck(ctx context.Context, deck *domain.SharedDeck) error
	GetSharedDeck(ctx context.Context, sharedDeckID string) (*domain.SharedDeck, error)
	ListSharedDecks(ctx context.Context) ([]domain.SharedDeck, error)
	ListSharedDeckCards(ctx context.Context, sharedDeckID string) ([]domain.Card, error)
	PutSharedDeckCards(ctx context.Context, sharedDeckID string, cards []domain.Card) error
	// SaveSharedDeck is the dedupe-checked counter transaction: it creates
	// the owner's membership record and increments SaveCount atomically,
	// or returns ErrAlreadySaved when the record exists. A contended commit
	// surfaces as ErrWriteConflict and is retried by the caller.
	SaveSharedDeck(ctx context.Context, ownerID, sharedDeckID string, now time.Time) error
	HasSavedDeck(ctx context.Context, ownerID, sharedDeckID string) (bool, error)
}

// MemoryDecksRepository stores decks in memory for local development and tests.
type MemoryDecksRepository struct {
	mu          sync.Mutex
	decks       map[string]*domain.Deck
	shared      map[string]*domain.SharedDeck
	sharedCards map[string][]domain.Card
	saved       map[string]domain.SavedDeckRecord
}

func NewMemoryDecksRepository() *MemoryDecksRepository {
	return &MemoryDecksRepository{
		decks:       make(map[string]*domain.Deck),
		shared:      make(map[string]*domain.SharedDeck),
		sharedCards: make(map[string][]domain.Card),
		saved:       make(map[string]domain.SavedDeckRecord),
	}
}

func (r *MemoryDecksRepository) CreateDeck(_ context.Context, deck *domain.Deck) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *deck
	r.decks[deck.ID] = &clone
	return nil
}

func (r *MemoryDecksRepository) GetDeck(_ context.Context, ownerID, deckID string) (*domain.Deck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deck, ok := r.decks[deckID]
	if !ok || deck.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	clone := *deck
	return &clone, nil
}

func (r *MemoryDecksRepository) PutSharedDeck(_ context.Context, deck *domain.SharedDeck) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *deck
	r.shared[deck.ID] = &clone
	return nil
}

func (r *MemoryDecksRepository) GetSharedDeck(_ context.Context, sharedDeckID string) (*domain.SharedDeck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deck, ok := r.shared[sharedDeckID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *deck
	return &clone, nil
}

func (r *MemoryDecksRepository) ListSharedDecks(_ context.Context) ([]domain.SharedDeck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	decks := make([]domain.SharedDeck, 0, len(r.shared))
	for _, deck := range r.shared {
		decks = append(decks, *deck)
	}
	sort.Slice(decks, func(i, j int) bool {
		if decks[i].SaveCount != decks[j].SaveCount {
			return decks[i].SaveCount > decks[j].SaveCount
		}
		return decks[i].ID < decks[j].ID
	})
	return decks, nil
}

func (r *MemoryDecksRepository) ListSharedDeckCards(_ context.Context, sharedDeckID string) ([]domain.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// An unknown deck id reads as empty, matching the Postgres query.
	// Existence checks belong to GetSharedDeck.
	return append([]domain.Card(nil), r.sharedCards[sharedDeckID]...), nil
}

func (r *MemoryDecksRepository) PutSharedDeckCards(
	_ context.Context,
	sharedDeckID string,
	cards []domain.Card,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sharedCards[sharedDeckID] = append([]domain.Card(nil), cards...)
	return nil
}

func (r *MemoryDecksRepository) SaveSharedDeck(
	_ context.Context,
	ownerID, sharedDeckID string,
	now time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	deck, ok := r.shared[sharedDeckID]
	if !ok {
		return ErrNotFound
	}

	key := savedDeckKey(ownerID, sharedDeckID)
	if _, exists := r.saved[key]; exists {
		return ErrAlreadySaved
	}

	r.saved[key] = domain.SavedDeckRecord{
		OwnerID:      ownerID,
		SharedDeckID: sharedDeckID,
		SavedAt:      now,
	}
	deck.SaveCount++
	return nil
}

func (r *MemoryDecksRepository) HasSavedDeck(_ context.Context, ownerID, sharedDeckID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.saved[savedDeckKey(ownerID, sharedDeckID)]
	return exists, nil
}

func savedDeckKey(ownerID, sharedDeckID string) string {
	return ownerID + "|" + sharedDeckID
}
