package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/memoza/flashcards-back/internal/domain"
)

func (s *PostgresStore) GetStudyState(
	ctx context.Context,
	ownerID, cardID string,
) (*domain.StudyState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT owner_id, card_id, easiness_factor, interval_days, repetition_count,
			last_reviewed_at, next_review_at, last_review_key
		FROM study_states
		WHERE owner_id = $1 AND card_id = $2
	`, ownerID, cardID)

	state, err := scanStudyState(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query study state: %w", err)
	}
	return state, nil
}

// MutateStudyState locks (or creates) the owner's state row and applies fn
// inside one transaction, mirroring MutateJob.
func (s *PostgresStore) MutateStudyState(
	ctx context.Context,
	ownerID, cardID string,
	fn func(*domain.StudyState) error,
) (*domain.StudyState, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin mutate study state: %w", classifyPgError(err))
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT owner_id, card_id, easiness_factor, interval_days, repetition_count,
			last_reviewed_at, next_review_at, last_review_key
		FROM study_states
		WHERE owner_id = $1 AND card_id = $2
		FOR UPDATE
	`, ownerID, cardID)

	state, err := scanStudyState(row)
	if err != nil {
		if err != pgx.ErrNoRows {
			return nil, fmt.Errorf("lock study state: %w", classifyPgError(err))
		}
		state = domain.NewStudyState(ownerID, cardID)
	}

	if err := fn(state); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO study_states (
			owner_id, card_id, easiness_factor, interval_days, repetition_count,
			last_reviewed_at, next_review_at, last_review_key
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (owner_id, card_id) DO UPDATE SET
			easiness_factor = EXCLUDED.easiness_factor,
			interval_days = EXCLUDED.interval_days,
			repetition_count = EXCLUDED.repetition_count,
			last_reviewed_at = EXCLUDED.last_reviewed_at,
			next_review_at = EXCLUDED.next_review_at,
			last_review_key = EXCLUDED.last_review_key
	`,
		state.OwnerID,
		state.CardID,
		state.EasinessFactor,
		state.IntervalDays,
		state.RepetitionCount,
		state.LastReviewedAt,
		state.NextReviewAt,
		state.LastReviewKey,
	)
	if err != nil {
		return nil, fmt.Errorf("write study state: %w", classifyPgError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit mutate study state: %w", classifyPgError(err))
	}
	return state, nil
}

func scanStudyState(row pgx.Row) (*domain.StudyState, error) {
	var state domain.StudyState
	err := row.Scan(
		&state.OwnerID,
		&state.CardID,
		&state.EasinessFactor,
		&state.IntervalDays,
		&state.RepetitionCount,
		&state.LastReviewedAt,
		&state.NextReviewAt,
		&state.LastReviewKey,
	)
	if err != nil {
		return nil, err
	}
	return &state, nil
}
