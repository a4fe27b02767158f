package domain

import "time"

// Card is a derived record produced by a job. (OwnerID, SourceJobID,
// SourceIndex) identifies it for idempotent writes: at most one card exists
// per triple.
type Card struct {
	ID          string
	OwnerID     string
	DeckID      string
	Front       string
	Back        string
	SourceJobID string
	SourceIndex int
	CreatedAt   time.Time
}

// Deck is a user-owned card container.
type Deck struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt time.Time
}

// SharedDeck is a community-published deck. SaveCount is the hot counter
// raced by concurrent savers and mutated only through the optimistic-retry
// transaction wrapper.
type SharedDeck struct {
	ID        string
	Title     string
	CardCount int
	SaveCount int
	CreatedAt time.Time
}

// SavedDeckRecord marks that an owner already collected a shared deck.
// Its existence is the dedupe short-circuit inside the save transaction.
type SavedDeckRecord struct {
	OwnerID      string
	SharedDeckID string
	SavedAt      time.Time
}
