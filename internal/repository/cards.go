package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/memoza/flashcards-back/internal/domain"
)

// CardsRepository persists derived card records. ListSourceIndices backs
// the idempotent writer: it reports which output positions of a job have
// already been written.
type CardsRepository interface {
	CreateCard(ctx context.Context, card *domain.Card) error
	ListSourceIndices(ctx context.Context, ownerID, sourceJobID string) (map[int]struct{}, error)
	ListDeckCards(ctx context.Context, ownerID, deckID string) ([]domain.Card, error)
	GetCard(ctx context.Context, ownerID, cardID string) (*domain.Card, error)
}

// MemoryCardsRepository stores cards in memory for local development and tests.
type MemoryCardsRepository struct {
	mu    sync.Mutex
	cards map[string]*domain.Card
}

func NewMemoryCardsRepository() *MemoryCardsRepository {
	return &MemoryCardsRepository{
		cards: make(map[string]*domain.Card),
	}
}

func (r *MemoryCardsRepository) CreateCard(_ context.Context, card *domain.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Job-derived cards are unique per (owner, source job, source index);
	// a duplicate write is dropped the way the Postgres ON CONFLICT
	// clause drops it.
	if card.SourceJobID != "" {
		for _, existing := range r.cards {
			if existing.OwnerID == card.OwnerID &&
				existing.SourceJobID == card.SourceJobID &&
				existing.SourceIndex == card.SourceIndex {
				return nil
			}
		}
	}

	clone := *card
	r.cards[card.ID] = &clone
	return nil
}

func (r *MemoryCardsRepository) ListSourceIndices(
	_ context.Context,
	ownerID, sourceJobID string,
) (map[int]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	indices := make(map[int]struct{})
	for _, card := range r.cards {
		if card.OwnerID == ownerID && card.SourceJobID == sourceJobID {
			indices[card.SourceIndex] = struct{}{}
		}
	}
	return indices, nil
}

func (r *MemoryCardsRepository) ListDeckCards(
	_ context.Context,
	ownerID, deckID string,
) ([]domain.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cards := make([]domain.Card, 0)
	for _, card := range r.cards {
		if card.OwnerID == ownerID && card.DeckID == deckID {
			cards = append(cards, *card)
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].SourceIndex < cards[j].SourceIndex
	})
	return cards, nil
}

func (r *MemoryCardsRepository) GetCard(_ context.Context, ownerID, cardID string) (*domain.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	card, ok := r.cards[cardID]
	if !ok || card.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	clone := *card
	return &clone, nil
}
