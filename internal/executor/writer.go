package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/repository"
)

// WriteItem is one derived card at its position in the job's output.
type WriteItem struct {
	Index  int
	DeckID string
	Front  string
	Back   string
}

// IdempotentWriter writes derived cards exactly once per
// (owner, job, index). Before writing it scans the indices already present
// and only fills the gap, which makes a write pass safely re-runnable after
// a crash.
type IdempotentWriter struct {
	cards  repository.CardsRepository
	fanOut int
	now    func() time.Time
}

func NewIdempotentWriter(cards repository.CardsRepository, fanOut int) *IdempotentWriter {
	if fanOut <= 0 {
		fanOut = 8
	}
	return &IdempotentWriter{
		cards:  cards,
		fanOut: fanOut,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WriteMissing writes every item whose index is not yet present. Writes are
// issued in batches of fanOut concurrent requests; onBatch runs after each
// completed batch with the cumulative number of present items, so progress
// metadata is amplified per batch rather than per write.
func (w *IdempotentWriter) WriteMissing(
	ctx context.Context,
	ownerID, sourceJobID string,
	items []WriteItem,
	onBatch func(done int) error,
) (written int, err error) {
	present, err := w.cards.ListSourceIndices(ctx, ownerID, sourceJobID)
	if err != nil {
		return 0, fmt.Errorf("list present indices: %w", err)
	}

	pending := make([]WriteItem, 0, len(items))
	for _, item := range items {
		if _, exists := present[item.Index]; exists {
			continue
		}
		pending = append(pending, item)
	}

	done := len(present)
	if onBatch != nil && len(pending) == 0 {
		if err := onBatch(done); err != nil {
			return 0, err
		}
	}

	for start := 0; start < len(pending); start += w.fanOut {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}

		end := start + w.fanOut
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		var wg sync.WaitGroup
		errs := make([]error, len(batch))
		for i, item := range batch {
			wg.Add(1)
			go func(slot int, item WriteItem) {
				defer wg.Done()
				errs[slot] = w.cards.CreateCard(ctx, &domain.Card{
					ID:          uuid.NewString(),
					OwnerID:     ownerID,
					DeckID:      item.DeckID,
					Front:       item.Front,
					Back:        item.Back,
					SourceJobID: sourceJobID,
					SourceIndex: item.Index,
					CreatedAt:   w.now(),
				})
			}(i, item)
		}
		wg.Wait()

		for i, writeErr := range errs {
			if writeErr != nil {
				return written, fmt.Errorf("write card %d: %w", batch[i].Index, writeErr)
			}
		}

		written += len(batch)
		done += len(batch)
		if onBatch != nil {
			if err := onBatch(done); err != nil {
				return written, err
			}
		}
	}

	return written, nil
}
