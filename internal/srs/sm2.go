package srs

import (
	"math"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
)

const minEasinessFactor = 1.3

// Input is the recall state consumed by Schedule.
type Input struct {
	EasinessFactor  float64
	IntervalDays    int
	RepetitionCount int
}

// Result is the updated recall state produced by Schedule.
type Result struct {
	EasinessFactor  float64
	IntervalDays    int
	RepetitionCount int
	NextReviewAt    time.Time
}

// Schedule applies the SM-2 recurrence to one review. quality is clamped
// to 0..5. The function is pure; persistence and duplicate-attempt
// detection live with the caller.
func Schedule(state Input, quality int, now time.Time) Result {
	if quality < 0 {
		quality = 0
	}
	if quality > 5 {
		quality = 5
	}

	result := Result{}
	if quality < 3 {
		result.RepetitionCount = 0
		result.IntervalDays = 1
	} else {
		switch state.RepetitionCount {
		case 0:
			result.IntervalDays = 1
		case 1:
			result.IntervalDays = 6
		default:
			result.IntervalDays = int(math.Round(float64(state.IntervalDays) * state.EasinessFactor))
		}
		result.RepetitionCount = state.RepetitionCount + 1
	}

	miss := float64(5 - quality)
	factor := state.EasinessFactor + 0.1 - miss*(0.08+miss*0.02)
	if factor < minEasinessFactor {
		factor = minEasinessFactor
	}
	result.EasinessFactor = factor
	result.NextReviewAt = now.Add(time.Duration(result.IntervalDays) * 24 * time.Hour)
	return result
}

// ScheduleOutcome is the coarse-outcome entry point used by the review
// endpoints.
func ScheduleOutcome(state Input, outcome domain.ReviewOutcome, now time.Time) Result {
	return Schedule(state, domain.QualityForOutcome(outcome), now)
}
