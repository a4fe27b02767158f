package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/memoza/flashcards-back/internal/domain"
)

func (s *PostgresStore) CreateDeck(ctx context.Context, deck *domain.Deck) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO decks (id, owner_id, title, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO NOTHING
	`, deck.ID, deck.OwnerID, deck.Title, deck.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert deck: %w", classifyPgError(err))
	}
	return nil
}

func (s *PostgresStore) GetDeck(ctx context.Context, ownerID, deckID string) (*domain.Deck, error) {
	var deck domain.Deck
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, title, created_at FROM decks
		WHERE id = $1 AND owner_id = $2
	`, deckID, ownerID).Scan(&deck.ID, &deck.OwnerID, &deck.Title, &deck.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query deck: %w", err)
	}
	return &deck, nil
}

func (s *PostgresStore) PutSharedDeck(ctx context.Context, deck *domain.SharedDeck) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shared_decks (id, title, card_count, save_count, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			card_count = EXCLUDED.card_count
	`, deck.ID, deck.Title, deck.CardCount, deck.SaveCount, deck.CreatedAt)
	if err != nil {
		return fmt.Errorf("put shared deck: %w", classifyPgError(err))
	}
	return nil
}

func (s *PostgresStore) GetSharedDeck(ctx context.Context, sharedDeckID string) (*domain.SharedDeck, error) {
	var deck domain.SharedDeck
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, card_count, save_count, created_at
		FROM shared_decks WHERE id = $1
	`, sharedDeckID).Scan(&deck.ID, &deck.Title, &deck.CardCount, &deck.SaveCount, &deck.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query shared deck: %w", err)
	}
	return &deck, nil
}

func (s *PostgresStore) ListSharedDecks(ctx context.Context) ([]domain.SharedDeck, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, card_count, save_count, created_at
		FROM shared_decks
		ORDER BY save_count DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list shared decks: %w", err)
	}
	defer rows.Close()

	decks := make([]domain.SharedDeck, 0)
	for rows.Next() {
		var deck domain.SharedDeck
		if err := rows.Scan(&deck.ID, &deck.Title, &deck.CardCount, &deck.SaveCount, &deck.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan shared deck: %w", err)
		}
		decks = append(decks, deck)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate shared decks: %w", rows.Err())
	}
	return decks, nil
}

func (s *PostgresStore) ListSharedDeckCards(ctx context.Context, sharedDeckID string) ([]domain.Card, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT card_index, front, back FROM shared_deck_cards
		WHERE shared_deck_id = $1
		ORDER BY card_index ASC
	`, sharedDeckID)
	if err != nil {
		return nil, fmt.Errorf("list shared deck cards: %w", err)
	}
	defer rows.Close()

	cards := make([]domain.Card, 0)
	for rows.Next() {
		var card domain.Card
		if err := rows.Scan(&card.SourceIndex, &card.Front, &card.Back); err != nil {
			return nil, fmt.Errorf("scan shared deck card: %w", err)
		}
		cards = append(cards, card)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate shared deck cards: %w", rows.Err())
	}
	if len(cards) == 0 {
		return nil, ErrNotFound
	}
	return cards, nil
}

func (s *PostgresStore) PutSharedDeckCards(
	ctx context.Context,
	sharedDeckID string,
	cards []domain.Card,
) error {
	for _, card := range cards {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO shared_deck_cards (shared_deck_id, card_index, front, back)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (shared_deck_id, card_index) DO UPDATE SET
				front = EXCLUDED.front,
				back = EXCLUDED.back
		`, sharedDeckID, card.SourceIndex, card.Front, card.Back)
		if err != nil {
			return fmt.Errorf("put shared deck card %d: %w", card.SourceIndex, classifyPgError(err))
		}
	}
	return nil
}

// SaveSharedDeck inserts the membership record and bumps the popularity
// counter in one transaction. The membership insert doubles as the dedupe
// pre-check: a unique violation means a previous attempt already committed,
// reported as ErrAlreadySaved so retried attempts are no-ops.
func (s *PostgresStore) SaveSharedDeck(
	ctx context.Context,
	ownerID, sharedDeckID string,
	now time.Time,
) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save shared deck: %w", classifyPgError(err))
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM saved_decks WHERE owner_id = $1 AND shared_deck_id = $2
		)
	`, ownerID, sharedDeckID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check saved deck: %w", classifyPgError(err))
	}
	if exists {
		return ErrAlreadySaved
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO saved_decks (owner_id, shared_deck_id, saved_at)
		VALUES ($1,$2,$3)
	`, ownerID, sharedDeckID, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadySaved
		}
		return fmt.Errorf("insert saved deck: %w", classifyPgError(err))
	}

	command, err := tx.Exec(ctx, `
		UPDATE shared_decks SET save_count = save_count + 1 WHERE id = $1
	`, sharedDeckID)
	if err != nil {
		return fmt.Errorf("bump save count: %w", classifyPgError(err))
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save shared deck: %w", classifyPgError(err))
	}
	return nil
}

func (s *PostgresStore) HasSavedDeck(ctx context.Context, ownerID, sharedDeckID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM saved_decks WHERE owner_id = $1 AND shared_deck_id = $2
		)
	`, ownerID, sharedDeckID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check saved deck: %w", err)
	}
	return exists, nil
}
