package ai

import (
	"fmt"
	"strings"
)

type GenerationPromptInput struct {
	SourceText     string
	Hints          string
	MaxCards       int
	MaxInputTokens int
}

// BuildGenerationPrompt assembles the user prompt for card generation.
// Long source text is split into paragraph fragments and trimmed against a
// token budget so the request stays within provider limits.
func BuildGenerationPrompt(input GenerationPromptInput) string {
	if input.MaxCards <= 0 {
		input.MaxCards = 50
	}
	if input.MaxInputTokens <= 0 {
		input.MaxInputTokens = 5200
	}

	fragments := splitFragments(input.SourceText)

	selected := make([]string, 0, len(fragments))
	totalTokens := 0
	for _, fragment := range fragments {
		estimated := estimateTokens(fragment)
		if estimated <= 0 {
			continue
		}
		if totalTokens+estimated > input.MaxInputTokens {
			break
		}
		selected = append(selected, fragment)
		totalTokens += estimated
	}
	if len(selected) == 0 && len(fragments) > 0 {
		selected = fragments[:1]
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Create at most %d flashcards from the material below.\n", input.MaxCards))
	if strings.TrimSpace(input.Hints) != "" {
		builder.WriteString("Focus: " + strings.TrimSpace(input.Hints) + "\n")
	}
	builder.WriteString("Material:\n")
	for index, fragment := range selected {
		builder.WriteString(fmt.Sprintf("[%d] %s\n", index+1, fragment))
	}
	return strings.TrimSpace(builder.String())
}

func splitFragments(text string) []string {
	parts := strings.Split(text, "\n\n")
	fragments := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		fragments = append(fragments, trimmed)
	}
	return fragments
}

// estimateTokens approximates tokens as characters divided by four, the
// heuristic most chat providers document.
func estimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	return (len(trimmed) + 3) / 4
}
