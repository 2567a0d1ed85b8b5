package anthropic

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

	"cvgenius-backend/internal/llm"
)

const apiURL = "https://api.anthropic.com/v1/messages"

// Client implements llm.Client using the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	version    string
	url        string
	httpClient *http.Client
}

// NewClient constructs a new Anthropic client. The timeout bounds the whole
// request; when it fires the call fails with llm.ErrUnavailable.
func NewClient(apiKey, model, version string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ANTHROPIC_MODEL is required")
	}
	if strings.TrimSpace(version) == "" {
		version = "2023-06-01"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		version: version,
		url:     apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a single user message and returns the model's text reply.
// The request is attempted exactly once; callers decide whether to retry.
func (c *Client) Complete(ctx context.Context, input llm.CompleteInput) (string, error) {
	reqBody := messagesRequest{
		Model:       c.model,
		MaxTokens:   input.MaxTokens,
		Temperature: input.Temperature,
		Messages: []message{
			{Role: "user", Content: input.Prompt},
		},
	}
	if reqBody.MaxTokens <= 0 {
		reqBody.MaxTokens = 50000
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("%w: request timeout: %v", llm.ErrUnavailable, err)
		}
		return "", fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", llm.ErrUnavailable, err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: response parse: %v", llm.ErrUnavailable, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s (%s)", llm.ErrRejected, parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", llm.ErrRejected, resp.StatusCode)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("%w: response missing content", llm.ErrRejected)
	}

	text := parsed.Content[0].Text
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response text", llm.ErrRejected)
	}
	return text, nil
}

var _ llm.Client = (*Client)(nil)
