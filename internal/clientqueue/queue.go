package clientqueue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultClockSkew is how far the client's attempt timestamp may run ahead
// of the server clock and still count as "the server saw this attempt".
const defaultClockSkew = 30 * time.Second

// CardWriter issues one card write against the server.
type CardWriter interface {
	WriteCard(ctx context.Context, deckID string, index int, card PendingCard) error
}

// ReviewSubmitter submits reviews and exposes the server-observed review
// time used to reconcile ambiguous failures.
type ReviewSubmitter interface {
	SubmitReview(ctx context.Context, cardID, outcome string, attemptAt time.Time) error
	LastReviewedAt(ctx context.Context, cardID string) (time.Time, error)
}

// Progress reports how far a Resume pass got.
type Progress struct {
	Done  int
	Total int
}

// Queue is the client-side resumable operation queue. Every intent is
// persisted before its first network call, and the cursor is re-persisted
// after each confirmed write, so a process killed mid-flush resumes
// exactly where it stopped.
type Queue struct {
	mu        sync.Mutex
	state     *queueState
	storage   Storage
	writer    CardWriter
	submitter ReviewSubmitter
	logger    *log.Logger
	clockSkew time.Duration
	now       func() time.Time
}

type Options struct {
	Logger    *log.Logger
	ClockSkew time.Duration
}

func NewQueue(storage Storage, writer CardWriter, submitter ReviewSubmitter, opts Options) (*Queue, error) {
	state, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("load queue state: %w", err)
	}
	skew := opts.ClockSkew
	if skew <= 0 {
		skew = defaultClockSkew
	}
	return &Queue{
		state:     state,
		storage:   storage,
		writer:    writer,
		submitter: submitter,
		logger:    opts.Logger,
		clockSkew: skew,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Enqueue persists a card-write intent. The intent is durable once
// Enqueue returns; no network call has happened yet.
func (q *Queue) Enqueue(intent CardIntent) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = q.now()
	}
	intent.Cursor = 0

	q.state.Intents = append(q.state.Intents, intent)
	if err := q.storage.Save(q.state); err != nil {
		q.state.Intents = q.state.Intents[:len(q.state.Intents)-1]
		return "", fmt.Errorf("persist intent: %w", err)
	}
	return intent.ID, nil
}

// Pending returns how many card writes are still unconfirmed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := 0
	for _, intent := range q.state.Intents {
		pending += len(intent.Cards) - intent.Cursor
	}
	return pending
}

// Resume replays every persisted intent from its cursor. The cursor is
// advanced and re-persisted after each confirmed write; fully flushed
// intents are deleted. A write error stops the pass with the cursor
// parked at the failed item.
func (q *Queue) Resume(ctx context.Context, onProgress func(Progress)) (Progress, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	for _, intent := range q.state.Intents {
		total += len(intent.Cards)
	}
	progress := Progress{Total: total}
	for _, intent := range q.state.Intents {
		progress.Done += intent.Cursor
	}

	for i := 0; i < len(q.state.Intents); {
		intent := &q.state.Intents[i]

		for intent.Cursor < len(intent.Cards) {
			if err := ctx.Err(); err != nil {
				return progress, err
			}

			card := intent.Cards[intent.Cursor]
			if err := q.writer.WriteCard(ctx, intent.DeckID, intent.Cursor, card); err != nil {
				return progress, fmt.Errorf("write card %d of intent %s: %w", intent.Cursor, intent.ID, err)
			}

			intent.Cursor++
			progress.Done++
			if err := q.storage.Save(q.state); err != nil {
				return progress, fmt.Errorf("persist cursor: %w", err)
			}
			if onProgress != nil {
				onProgress(progress)
			}
		}

		q.state.Intents = append(q.state.Intents[:i], q.state.Intents[i+1:]...)
		if err := q.storage.Save(q.state); err != nil {
			return progress, fmt.Errorf("persist intent removal: %w", err)
		}
	}

	return progress, nil
}

// EnqueueReview persists a pending review submission.
func (q *Queue) EnqueueReview(review PendingReview) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if review.AttemptAt.IsZero() {
		review.AttemptAt = q.now()
	}
	q.state.Reviews = append(q.state.Reviews, review)
	if err := q.storage.Save(q.state); err != nil {
		q.state.Reviews = q.state.Reviews[:len(q.state.Reviews)-1]
		return fmt.Errorf("persist pending review: %w", err)
	}
	return nil
}

// PendingReviews returns how many review submissions await confirmation.
func (q *Queue) PendingReviews() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.state.Reviews)
}

// FlushReviews submits pending reviews. A failed submission is reconciled
// against the server's lastReviewedAt: when the server already observed a
// review at or after the attempt time (minus the clock-skew allowance) the
// entry counts as applied without re-submitting, so an ambiguous network
// failure never double-credits a review. Entries that remain ambiguous
// stay persisted for the next flush.
func (q *Queue) FlushReviews(ctx context.Context, onApplied func(PendingReview)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	remaining := make([]PendingReview, 0, len(q.state.Reviews))
	for _, review := range q.state.Reviews {
		if err := ctx.Err(); err != nil {
			remaining = append(remaining, review)
			continue
		}

		submitErr := q.submitter.SubmitReview(ctx, review.CardID, review.Outcome, review.AttemptAt)
		if submitErr == nil {
			if onApplied != nil {
				onApplied(review)
			}
			continue
		}

		lastReviewed, readErr := q.submitter.LastReviewedAt(ctx, review.CardID)
		if readErr == nil && !lastReviewed.Before(review.AttemptAt.Add(-q.clockSkew)) {
			// The earlier attempt landed server-side and only the
			// response was lost.
			if onApplied != nil {
				onApplied(review)
			}
			continue
		}

		if q.logger != nil {
			q.logger.Printf("pending review kept for retry card_id=%s err=%v", review.CardID, submitErr)
		}
		remaining = append(remaining, review)
	}

	q.state.Reviews = remaining
	if err := q.storage.Save(q.state); err != nil {
		return fmt.Errorf("persist review list: %w", err)
	}
	return nil
}
