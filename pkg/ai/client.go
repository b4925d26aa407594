package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrMissingAPIKey indicates the completion service credentials are not
// configured. Fatal: callers must propagate it rather than fall back.
var ErrMissingAPIKey = errors.New("completion API key is not configured")

// HTTPError is a non-2xx response from the completion service, carrying the
// response body for diagnosis.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("completion API error (status %d): %s", e.StatusCode, e.Body)
}

// Completer issues a single completion request and returns the raw response
// text. Implemented by CompletionClient; test doubles implement it too.
type Completer interface {
	Complete(ctx context.Context, model ModelConfig, systemPrompt, userPrompt string) (string, error)
}

// ClientConfig holds configuration for the completion service.
type ClientConfig struct {
	APIKey      string
	BaseURL     string        // Default: https://api.openai.com/v1
	HTTPTimeout time.Duration // Default: 30s
}

// CompletionClient wraps the external LLM chat-completions endpoint. It
// forces a single-JSON-object response and returns the raw completion text;
// parsing and validation belong to the caller, because callers differ in
// fallback policy. No retries at this layer either.
type CompletionClient struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewCompletionClient validates the configuration and returns a client.
func NewCompletionClient(config ClientConfig) (*CompletionClient, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if !strings.HasPrefix(config.BaseURL, "http://") && !strings.HasPrefix(config.BaseURL, "https://") {
		return nil, errors.Errorf("invalid BaseURL: %s", config.BaseURL)
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 30 * time.Second
	}
	return &CompletionClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.HTTPTimeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete issues one completion request and returns the raw response text.
func (c *CompletionClient) Complete(ctx context.Context, model ModelConfig, systemPrompt, userPrompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.HTTPTimeout)
		defer cancel()
	}

	reqBody := chatRequest{
		Model: model.Name,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:      model.MaxTokens,
		Temperature:    model.Temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.config.BaseURL, "/")+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", errors.Wrap(err, "failed to create completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "completion request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read completion response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(err, "failed to decode completion response")
	}
	if parsed.Error != nil {
		return "", errors.Errorf("completion API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("completion returned empty content")
	}
	return content, nil
}

// IsTransient reports whether an error from the completion path should be
// recovered locally via the deterministic fallback. Only missing
// credentials are fatal.
func IsTransient(err error) bool {
	return err != nil && !errors.Is(err, ErrMissingAPIKey)
}
