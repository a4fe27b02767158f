package quality

import (
	"errors"
	"strings"
	"testing"

	"github.com/memoza/flashcards-back/internal/ai"
)

func TestValidateCardsNormalizes(t *testing.T) {
	validator := NewCardValidator(10)

	result, err := validator.ValidateCards([]ai.GeneratedCard{
		{Front: "  What is   ATP? ", Back: " The cell's energy currency "},
		{Front: "Mitochondria role", Back: "ATP production"},
	})
	if err != nil {
		t.Fatalf("expected cards to validate: %v", err)
	}
	if len(result.Cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(result.Cards))
	}
	if result.Cards[0].Front != "What is ATP?" {
		t.Fatalf("expected collapsed whitespace, got %q", result.Cards[0].Front)
	}
}

func TestValidateCardsDropsEmptyAndDuplicates(t *testing.T) {
	validator := NewCardValidator(10)

	result, err := validator.ValidateCards([]ai.GeneratedCard{
		{Front: "What is ATP?", Back: "Energy currency"},
		{Front: "what is atp?", Back: "Duplicate front"},
		{Front: "", Back: "No front"},
		{Front: "Valid", Back: ""},
	})
	if err != nil {
		t.Fatalf("expected validation to succeed: %v", err)
	}
	if len(result.Cards) != 1 {
		t.Fatalf("expected 1 surviving card, got %d", len(result.Cards))
	}
	if result.Dropped != 3 {
		t.Fatalf("expected 3 dropped cards, got %d", result.Dropped)
	}
	if !result.Corrected {
		t.Fatalf("expected corrected flag")
	}
}

func TestValidateCardsEnforcesCap(t *testing.T) {
	validator := NewCardValidator(2)

	cards := []ai.GeneratedCard{
		{Front: "a", Back: "1"},
		{Front: "b", Back: "2"},
		{Front: "c", Back: "3"},
	}
	_, err := validator.ValidateCards(cards)
	if !errors.Is(err, ErrTooManyCards) {
		t.Fatalf("expected ErrTooManyCards, got %v", err)
	}
}

func TestValidateCardsTruncatesLongText(t *testing.T) {
	validator := NewCardValidator(10)
	long := strings.Repeat("word ", 200)

	result, err := validator.ValidateCards([]ai.GeneratedCard{
		{Front: long, Back: "short"},
	})
	if err != nil {
		t.Fatalf("expected validation to succeed: %v", err)
	}
	if len(result.Cards[0].Front) > maxFrontLength {
		t.Fatalf("expected front to be truncated, got %d chars", len(result.Cards[0].Front))
	}
}

func TestValidateCardsRejectsEmptyList(t *testing.T) {
	validator := NewCardValidator(10)

	if _, err := validator.ValidateCards(nil); !errors.Is(err, ErrQualityRejected) {
		t.Fatalf("expected ErrQualityRejected, got %v", err)
	}
}
