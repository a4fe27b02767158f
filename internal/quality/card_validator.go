package quality

import (
	"errors"
	"fmt"
	"strings"

	"github.com/memoza/flashcards-back/internal/ai"
)

var (
	ErrQualityRejected = errors.New("output failed quality checks")

	// ErrTooManyCards marks a generation result over the configured cap.
	// The job fails before any write starts rather than partially writing.
	ErrTooManyCards = errors.New("generated card count exceeds limit")
)

const (
	maxFrontLength = 320
	maxBackLength  = 1200
)

type CardValidationResult struct {
	Cards     []ai.GeneratedCard
	Dropped   int
	Corrected bool
}

// CardValidator normalizes generator output before the write phase: trims
// whitespace, drops empty or duplicate cards, clamps runaway lengths and
// enforces the per-job card cap.
type CardValidator struct {
	maxCards int
}

func NewCardValidator(maxCards int) *CardValidator {
	if maxCards <= 0 {
		maxCards = 200
	}
	return &CardValidator{maxCards: maxCards}
}

func (v *CardValidator) ValidateCards(cards []ai.GeneratedCard) (CardValidationResult, error) {
	if len(cards) == 0 {
		return CardValidationResult{}, fmt.Errorf("%w: empty card list", ErrQualityRejected)
	}
	if len(cards) > v.maxCards {
		return CardValidationResult{}, fmt.Errorf("%w: %d > %d", ErrTooManyCards, len(cards), v.maxCards)
	}

	result := CardValidationResult{Cards: make([]ai.GeneratedCard, 0, len(cards))}
	seen := make(map[string]struct{}, len(cards))

	for _, card := range cards {
		front := normalizeText(card.Front)
		back := normalizeText(card.Back)
		if front == "" || back == "" {
			result.Dropped++
			result.Corrected = true
			continue
		}

		if len(front) > maxFrontLength {
			front = truncateAtWord(front, maxFrontLength)
			result.Corrected = true
		}
		if len(back) > maxBackLength {
			back = truncateAtWord(back, maxBackLength)
			result.Corrected = true
		}

		key := strings.ToLower(front)
		if _, exists := seen[key]; exists {
			result.Dropped++
			result.Corrected = true
			continue
		}
		seen[key] = struct{}{}

		result.Cards = append(result.Cards, ai.GeneratedCard{Front: front, Back: back})
	}

	if len(result.Cards) == 0 {
		return CardValidationResult{}, fmt.Errorf("%w: no usable cards after normalization", ErrQualityRejected)
	}
	return result, nil
}

func normalizeText(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func truncateAtWord(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	truncated := value[:limit]
	if index := strings.LastIndex(truncated, " "); index > limit/2 {
		truncated = truncated[:index]
	}
	return strings.TrimSpace(truncated)
}
