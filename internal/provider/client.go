package provider

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

	"github.com/gstdocai/backend/internal/prompt"
)

const (
	DefaultBaseURL     = "https://api.perplexity.ai"
	DefaultModel       = "sonar"
	DefaultTemperature = 0.3
)

// ErrEmptyCompletion is returned when the provider answers with no usable text.
var ErrEmptyCompletion = errors.New("provider returned an empty completion")

// StatusError carries a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
// It never retries; the caller's context bounds every call.
type Client struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

// NewClient returns a Client with defaults applied for empty fields.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		Model:       model,
		Temperature: DefaultTemperature,
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends p as a system and user message and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, p prompt.Prompt) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(*out.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
