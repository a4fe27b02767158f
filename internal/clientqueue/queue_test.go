package clientqueue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

type fakeWriter struct {
	writes  map[string]int
	failOn  int
	written int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{writes: make(map[string]int), failOn: -1}
}

func (w *fakeWriter) WriteCard(_ context.Context, deckID string, index int, card PendingCard) error {
	if w.failOn >= 0 && w.written == w.failOn {
		return errors.New("network down")
	}
	w.writes[fmt.Sprintf("%s/%d/%s", deckID, index, card.Front)]++
	w.written++
	return nil
}

type fakeSubmitter struct {
	submitErr    error
	lastReviewed time.Time
	readErr      error
	submissions  int
}

func (s *fakeSubmitter) SubmitReview(_ context.Context, _, _ string, _ time.Time) error {
	s.submissions++
	return s.submitErr
}

func (s *fakeSubmitter) LastReviewedAt(_ context.Context, _ string) (time.Time, error) {
	return s.lastReviewed, s.readErr
}

func tenCardIntent() CardIntent {
	cards := make([]PendingCard, 10)
	for i := range cards {
		cards[i] = PendingCard{Front: fmt.Sprintf("front-%d", i), Back: fmt.Sprintf("back-%d", i)}
	}
	return CardIntent{JobID: "job-1", DeckID: "deck-1", Cards: cards}
}

func TestResumeSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	writer := newFakeWriter()
	writer.failOn = 4

	queue, err := NewQueue(NewFileStorage(path), writer, nil, Options{})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	if _, err := queue.Enqueue(tenCardIntent()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// First flush dies after 4 writes.
	if _, err := queue.Resume(context.Background(), nil); err == nil {
		t.Fatalf("expected interrupted resume to fail")
	}

	// Restart: a fresh queue over the same file sees only persisted state.
	writer.failOn = -1
	restarted, err := NewQueue(NewFileStorage(path), writer, nil, Options{})
	if err != nil {
		t.Fatalf("reload queue: %v", err)
	}
	if got := restarted.Pending(); got != 6 {
		t.Fatalf("expected 6 pending after restart, got %d", got)
	}

	progress, err := restarted.Resume(context.Background(), nil)
	if err != nil {
		t.Fatalf("resume after restart: %v", err)
	}
	if progress.Done != 10 || progress.Total != 10 {
		t.Fatalf("expected 10/10, got %d/%d", progress.Done, progress.Total)
	}

	// Every card written exactly once across both passes.
	if len(writer.writes) != 10 {
		t.Fatalf("expected 10 distinct writes, got %d", len(writer.writes))
	}
	for key, count := range writer.writes {
		if count != 1 {
			t.Fatalf("card %s written %d times", key, count)
		}
	}

	if restarted.Pending() != 0 {
		t.Fatalf("expected empty queue after full flush")
	}
}

func TestResumeReportsProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	writer := newFakeWriter()

	queue, err := NewQueue(NewFileStorage(path), writer, nil, Options{})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	intent := tenCardIntent()
	intent.Cards = intent.Cards[:3]
	if _, err := queue.Enqueue(intent); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var seen []int
	progress, err := queue.Resume(context.Background(), func(p Progress) {
		seen = append(seen, p.Done)
	})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if progress.Done != 3 {
		t.Fatalf("expected 3 done, got %d", progress.Done)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("expected per-write progress callbacks, got %v", seen)
	}
}

func TestFlushReviewsReconcilesLostResponse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	attemptAt := time.Now().UTC()

	// Submission fails, but the server already recorded a review at the
	// attempt time: the entry counts as applied without re-submitting.
	submitter := &fakeSubmitter{
		submitErr:    errors.New("response lost"),
		lastReviewed: attemptAt.Add(time.Second),
	}
	queue, err := NewQueue(NewFileStorage(path), nil, submitter, Options{})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	if err := queue.EnqueueReview(PendingReview{CardID: "card-1", Outcome: "remember", AttemptAt: attemptAt}); err != nil {
		t.Fatalf("enqueue review: %v", err)
	}

	var applied []PendingReview
	if err := queue.FlushReviews(context.Background(), func(r PendingReview) {
		applied = append(applied, r)
	}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(applied) != 1 || applied[0].CardID != "card-1" {
		t.Fatalf("expected reconciled review applied, got %v", applied)
	}
	if queue.PendingReviews() != 0 {
		t.Fatalf("expected reconciled review removed from pending list")
	}
}

func TestFlushReviewsKeepsAmbiguousEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	attemptAt := time.Now().UTC()

	// Submission fails and the server never saw the attempt.
	submitter := &fakeSubmitter{
		submitErr:    errors.New("network down"),
		lastReviewed: attemptAt.Add(-time.Hour),
	}
	queue, err := NewQueue(NewFileStorage(path), nil, submitter, Options{})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	if err := queue.EnqueueReview(PendingReview{CardID: "card-1", Outcome: "forget", AttemptAt: attemptAt}); err != nil {
		t.Fatalf("enqueue review: %v", err)
	}

	if err := queue.FlushReviews(context.Background(), nil); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if queue.PendingReviews() != 1 {
		t.Fatalf("expected ambiguous review kept for retry")
	}

	// Kept entries survive a restart too.
	reloaded, err := NewQueue(NewFileStorage(path), nil, submitter, Options{})
	if err != nil {
		t.Fatalf("reload queue: %v", err)
	}
	if reloaded.PendingReviews() != 1 {
		t.Fatalf("expected pending review persisted across restart")
	}
}

func TestFlushReviewsSuccessfulSubmission(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	submitter := &fakeSubmitter{}

	queue, err := NewQueue(NewFileStorage(path), nil, submitter, Options{})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	if err := queue.EnqueueReview(PendingReview{CardID: "card-1", Outcome: "remember"}); err != nil {
		t.Fatalf("enqueue review: %v", err)
	}

	if err := queue.FlushReviews(context.Background(), nil); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if submitter.submissions != 1 {
		t.Fatalf("expected one submission, got %d", submitter.submissions)
	}
	if queue.PendingReviews() != 0 {
		t.Fatalf("expected pending list emptied")
	}
}
