package srs

import (
	"math"
	"testing"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
)

func TestScheduleFirstSuccessfulReview(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	result := Schedule(Input{EasinessFactor: 2.5, IntervalDays: 0, RepetitionCount: 0}, 5, now)

	if result.RepetitionCount != 1 {
		t.Fatalf("expected repetition count 1, got %d", result.RepetitionCount)
	}
	if result.IntervalDays != 1 {
		t.Fatalf("expected interval 1, got %d", result.IntervalDays)
	}
	if math.Abs(result.EasinessFactor-2.6) > 1e-9 {
		t.Fatalf("expected easiness factor 2.6, got %f", result.EasinessFactor)
	}
	if !result.NextReviewAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("expected next review one day out, got %s", result.NextReviewAt)
	}
}

func TestScheduleSecondSuccessfulReview(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	result := Schedule(Input{EasinessFactor: 2.6, IntervalDays: 1, RepetitionCount: 1}, 5, now)

	if result.RepetitionCount != 2 {
		t.Fatalf("expected repetition count 2, got %d", result.RepetitionCount)
	}
	if result.IntervalDays != 6 {
		t.Fatalf("expected interval 6, got %d", result.IntervalDays)
	}
	if math.Abs(result.EasinessFactor-2.7) > 1e-9 {
		t.Fatalf("expected easiness factor 2.7, got %f", result.EasinessFactor)
	}
}

func TestScheduleMatureReviewMultipliesInterval(t *testing.T) {
	now := time.Now().UTC()

	result := Schedule(Input{EasinessFactor: 2.5, IntervalDays: 6, RepetitionCount: 2}, 4, now)

	if result.IntervalDays != 15 {
		t.Fatalf("expected interval round(6*2.5)=15, got %d", result.IntervalDays)
	}
	if result.RepetitionCount != 3 {
		t.Fatalf("expected repetition count 3, got %d", result.RepetitionCount)
	}
}

func TestScheduleFailedReviewResets(t *testing.T) {
	now := time.Now().UTC()

	result := Schedule(Input{EasinessFactor: 2.5, IntervalDays: 30, RepetitionCount: 7}, 2, now)

	if result.RepetitionCount != 0 {
		t.Fatalf("expected repetition count reset to 0, got %d", result.RepetitionCount)
	}
	if result.IntervalDays != 1 {
		t.Fatalf("expected interval reset to 1, got %d", result.IntervalDays)
	}
	if result.EasinessFactor >= 2.5 {
		t.Fatalf("expected easiness factor to drop below 2.5, got %f", result.EasinessFactor)
	}
}

func TestScheduleEasinessFactorFloor(t *testing.T) {
	state := Input{EasinessFactor: 1.3, IntervalDays: 1, RepetitionCount: 0}

	for quality := 0; quality <= 5; quality++ {
		result := Schedule(state, quality, time.Now().UTC())
		if result.EasinessFactor < 1.3 {
			t.Fatalf("quality %d produced easiness factor %f below floor", quality, result.EasinessFactor)
		}
	}
}

func TestScheduleClampsQuality(t *testing.T) {
	now := time.Now().UTC()

	low := Schedule(Input{EasinessFactor: 2.5}, -3, now)
	if low.RepetitionCount != 0 || low.IntervalDays != 1 {
		t.Fatalf("expected negative quality to behave as 0, got %+v", low)
	}

	high := Schedule(Input{EasinessFactor: 2.5}, 9, now)
	if high.RepetitionCount != 1 {
		t.Fatalf("expected clamped quality 5 to count as success, got %+v", high)
	}
}

func TestScheduleOutcomeMapping(t *testing.T) {
	now := time.Now().UTC()

	remember := ScheduleOutcome(Input{EasinessFactor: 2.5}, domain.OutcomeRemember, now)
	if remember.RepetitionCount != 1 {
		t.Fatalf("expected remember to map to a passing quality, got %+v", remember)
	}

	forget := ScheduleOutcome(Input{EasinessFactor: 2.5, RepetitionCount: 4, IntervalDays: 12}, domain.OutcomeForget, now)
	if forget.RepetitionCount != 0 || forget.IntervalDays != 1 {
		t.Fatalf("expected forget to reset state, got %+v", forget)
	}
}
