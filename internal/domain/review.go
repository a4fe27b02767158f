package domain

import (
	"fmt"
	"time"
)

type ReviewOutcome string

const (
	OutcomeRemember ReviewOutcome = "remember"
	OutcomeForget   ReviewOutcome = "forget"
)

// QualityForOutcome maps the coarse two-button outcome onto the 0..5
// quality scale consumed by the scheduler.
func QualityForOutcome(outcome ReviewOutcome) int {
	if outcome == OutcomeRemember {
		return 5
	}
	return 2
}

// AttemptKey builds the idempotency key of one review submission. The same
// attempt resubmitted after a lost response produces the same key and is
// dropped as a no-op.
func AttemptKey(attemptAt time.Time, outcome ReviewOutcome) string {
	return fmt.Sprintf("%d|%s", attemptAt.UnixMilli(), string(outcome))
}

// StudyState is the per-owner spaced-repetition state of one card.
type StudyState struct {
	OwnerID         string
	CardID          string
	EasinessFactor  float64
	IntervalDays    int
	RepetitionCount int
	LastReviewedAt  time.Time
	NextReviewAt    time.Time
	LastReviewKey   string
}

// NewStudyState returns the state of a never-reviewed card.
func NewStudyState(ownerID, cardID string) *StudyState {
	return &StudyState{
		OwnerID:        ownerID,
		CardID:         cardID,
		EasinessFactor: 2.5,
	}
}
