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

type VisionClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// VisionClient calls a provider OCR endpoint: one image reference in, the
// recognized text out.
type VisionClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

func NewVisionClient(config VisionClientConfig) *VisionClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://vision.googleapis.com/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &VisionClient{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		httpClient: config.HTTPClient,
	}
}

func (c *VisionClient) Available() bool {
	return c.apiKey != ""
}

func (c *VisionClient) Recognize(ctx context.Context, imageRef string) (string, error) {
	if !c.Available() {
		return "", ErrVisionUnavailable
	}
	if strings.TrimSpace(imageRef) == "" {
		return "", errors.New("image reference is required")
	}

	payload, err := json.Marshal(map[string]string{"image_ref": imageRef})
	if err != nil {
		return "", fmt.Errorf("marshal vision payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		text, callErr := c.callRecognizeAPI(ctx, payload)
		if callErr == nil {
			return text, nil
		}
		lastErr = callErr

		if !isRetryableProviderError(callErr) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(350*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown vision error")
	}
	return "", lastErr
}

func (c *VisionClient) callRecognizeAPI(ctx context.Context, payload []byte) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/images:annotate",
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", fmt.Errorf("create vision request: %w", err)
	}
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("vision timeout: %w", err)
		}
		return "", fmt.Errorf("vision transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return "", fmt.Errorf("read vision body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 700 {
			message = message[:700]
		}
		return "", &providerHTTPError{
			Provider:   "vision",
			StatusCode: httpResponse.StatusCode,
			Message:    message,
		}
	}

	var raw struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode vision response: %w", err)
	}
	return strings.TrimSpace(raw.Text), nil
}
