package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/memoza/flashcards-back/internal/domain"
)

// sourceIndexPageSize bounds each page of the idempotency scan.
const sourceIndexPageSize = 500

func (s *PostgresStore) CreateCard(ctx context.Context, card *domain.Card) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cards (
			id, owner_id, deck_id, front, back, source_job_id, source_index, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (owner_id, source_job_id, source_index) DO NOTHING
	`,
		card.ID,
		card.OwnerID,
		card.DeckID,
		card.Front,
		card.Back,
		card.SourceJobID,
		card.SourceIndex,
		card.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert card: %w", classifyPgError(err))
	}
	return nil
}

func (s *PostgresStore) ListSourceIndices(
	ctx context.Context,
	ownerID, sourceJobID string,
) (map[int]struct{}, error) {
	indices := make(map[int]struct{})
	lastIndex := -1

	for {
		rows, err := s.pool.Query(ctx, `
			SELECT source_index FROM cards
			WHERE owner_id = $1 AND source_job_id = $2 AND source_index > $3
			ORDER BY source_index ASC
			LIMIT $4
		`, ownerID, sourceJobID, lastIndex, sourceIndexPageSize)
		if err != nil {
			return nil, fmt.Errorf("list source indices: %w", err)
		}

		count := 0
		for rows.Next() {
			var index int
			if err := rows.Scan(&index); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan source index: %w", err)
			}
			indices[index] = struct{}{}
			lastIndex = index
			count++
		}
		rows.Close()
		if rows.Err() != nil {
			return nil, fmt.Errorf("iterate source indices: %w", rows.Err())
		}
		if count < sourceIndexPageSize {
			return indices, nil
		}
	}
}

func (s *PostgresStore) ListDeckCards(
	ctx context.Context,
	ownerID, deckID string,
) ([]domain.Card, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, deck_id, front, back, source_job_id, source_index, created_at
		FROM cards
		WHERE owner_id = $1 AND deck_id = $2
		ORDER BY source_index ASC, created_at ASC
	`, ownerID, deckID)
	if err != nil {
		return nil, fmt.Errorf("list deck cards: %w", err)
	}
	defer rows.Close()

	cards := make([]domain.Card, 0)
	for rows.Next() {
		var card domain.Card
		if err := rows.Scan(
			&card.ID,
			&card.OwnerID,
			&card.DeckID,
			&card.Front,
			&card.Back,
			&card.SourceJobID,
			&card.SourceIndex,
			&card.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan deck card: %w", err)
		}
		cards = append(cards, card)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate deck cards: %w", rows.Err())
	}
	return cards, nil
}

func (s *PostgresStore) GetCard(ctx context.Context, ownerID, cardID string) (*domain.Card, error) {
	var card domain.Card
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, deck_id, front, back, source_job_id, source_index, created_at
		FROM cards
		WHERE id = $1 AND owner_id = $2
	`, cardID, ownerID).Scan(
		&card.ID,
		&card.OwnerID,
		&card.DeckID,
		&card.Front,
		&card.Back,
		&card.SourceJobID,
		&card.SourceIndex,
		&card.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query card: %w", err)
	}
	return &card, nil
}
