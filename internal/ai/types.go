package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrVisionUnavailable    = errors.New("vision client unavailable")
	ErrGeneratorUnavailable = errors.New("generator client unavailable")
)

// Recognizer extracts text from one image reference. Implementations wrap
// a provider OCR HTTP API; the pipeline treats them as a black box.
type Recognizer interface {
	Recognize(ctx context.Context, imageRef string) (string, error)
	Available() bool
}

// GeneratedCard is one front/back pair produced by the generator.
type GeneratedCard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// CardGenerator turns source text into flashcards in a single
// all-or-nothing call.
type CardGenerator interface {
	GenerateCards(ctx context.Context, sourceText, hints string) ([]GeneratedCard, error)
	Available() bool
}

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type providerHTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func isRetryableProviderError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *providerHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "timeout") || strings.Contains(message, "tempor")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
