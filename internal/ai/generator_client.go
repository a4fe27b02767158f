package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const generatorInstructions = `You turn study material into flashcards.
Respond with a JSON object {"cards":[{"front":"...","back":"..."}]} and nothing else.
Each front is a question or term, each back the answer or definition.`

type GeneratorClientConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	HTTPClient    *http.Client
	PrimaryModel  string
	FallbackModel string
	Temperature   float64
	MaxCards      int
}

// GeneratorClient calls a chat-completions endpoint to produce flashcards
// from source text. The primary model is tried first; on a retryable
// provider failure the fallback model gets one shot.
type GeneratorClient struct {
	apiKey        string
	baseURL       string
	timeout       time.Duration
	maxRetries    int
	httpClient    *http.Client
	primaryModel  string
	fallbackModel string
	temperature   float64
	maxCards      int
}

func NewGeneratorClient(config GeneratorClientConfig) *GeneratorClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if strings.TrimSpace(config.PrimaryModel) == "" {
		config.PrimaryModel = "gpt-4.1-mini"
	}
	if strings.TrimSpace(config.FallbackModel) == "" {
		config.FallbackModel = "gpt-4.1-nano"
	}
	if config.Temperature <= 0 {
		config.Temperature = 0.3
	}
	if config.MaxCards <= 0 {
		config.MaxCards = 50
	}

	return &GeneratorClient{
		apiKey:        strings.TrimSpace(config.APIKey),
		baseURL:       strings.TrimSuffix(config.BaseURL, "/"),
		timeout:       config.Timeout,
		maxRetries:    config.MaxRetries,
		httpClient:    config.HTTPClient,
		primaryModel:  config.PrimaryModel,
		fallbackModel: config.FallbackModel,
		temperature:   config.Temperature,
		maxCards:      config.MaxCards,
	}
}

func (c *GeneratorClient) Available() bool {
	return c.apiKey != ""
}

func (c *GeneratorClient) GenerateCards(
	ctx context.Context,
	sourceText, hints string,
) ([]GeneratedCard, error) {
	if !c.Available() {
		return nil, ErrGeneratorUnavailable
	}
	if strings.TrimSpace(sourceText) == "" {
		return nil, errors.New("source text is required")
	}

	prompt := BuildGenerationPrompt(GenerationPromptInput{
		SourceText: sourceText,
		Hints:      hints,
		MaxCards:   c.maxCards,
	})

	cards, err := c.generateWithModel(ctx, c.primaryModel, prompt)
	if err == nil {
		return cards, nil
	}
	if !isRetryableProviderError(err) {
		return nil, err
	}

	cards, fallbackErr := c.generateWithModel(ctx, c.fallbackModel, prompt)
	if fallbackErr != nil {
		return nil, fmt.Errorf("primary model failed (%v), fallback: %w", err, fallbackErr)
	}
	return cards, nil
}

func (c *GeneratorClient) generateWithModel(
	ctx context.Context,
	model, prompt string,
) ([]GeneratedCard, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": generatorInstructions},
			{"role": "user", "content": prompt},
		},
		"temperature":     c.temperature,
		"response_format": map[string]string{"type": "json_object"},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generator payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		cards, callErr := c.callChatCompletionsAPI(ctx, encoded)
		if callErr == nil {
			return cards, nil
		}
		lastErr = callErr

		if !isRetryableProviderError(callErr) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(350*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown generator error")
	}
	return nil, lastErr
}

func (c *GeneratorClient) callChatCompletionsAPI(
	ctx context.Context,
	payload []byte,
) ([]GeneratedCard, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("create generator request: %w", err)
	}
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("generator timeout: %w", err)
		}
		return nil, fmt.Errorf("generator transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("read generator body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 700 {
			message = message[:700]
		}
		return nil, &providerHTTPError{
			Provider:   "generator",
			StatusCode: httpResponse.StatusCode,
			Message:    message,
		}
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode generator response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, errors.New("generator response without choices")
	}

	return parseGeneratedCards(raw.Choices[0].Message.Content)
}

func parseGeneratedCards(content string) ([]GeneratedCard, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("generator response without text output")
	}

	// Some models wrap JSON in a markdown fence despite instructions.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var wrapped struct {
		Cards []GeneratedCard `json:"cards"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && len(wrapped.Cards) > 0 {
		return wrapped.Cards, nil
	}

	var plain []GeneratedCard
	if err := json.Unmarshal([]byte(content), &plain); err == nil && len(plain) > 0 {
		return plain, nil
	}

	return nil, errors.New("generator output is not a card list")
}
