// Package broker implements llm.Client against an internal model broker,
// used when traffic must not go to the provider API directly.
package broker

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

// Client forwards completion requests to a broker endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient constructs a broker client for the given endpoint.
func NewClient(baseURL, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("LLM_BROKER_URL is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type brokerRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

type brokerResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Complete sends the prompt to the broker and returns the model reply.
func (c *Client) Complete(ctx context.Context, input llm.CompleteInput) (string, error) {
	reqBody := brokerRequest{
		Model:       c.model,
		Prompt:      input.Prompt,
		MaxTokens:   input.MaxTokens,
		Temperature: input.Temperature,
	}
	if reqBody.MaxTokens <= 0 {
		reqBody.MaxTokens = 50000
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

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

	var parsed brokerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: response parse: %v", llm.ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != "" {
			return "", fmt.Errorf("%w: %s", llm.ErrRejected, parsed.Error)
		}
		return "", fmt.Errorf("%w: status %d", llm.ErrRejected, resp.StatusCode)
	}
	if strings.TrimSpace(parsed.Content) == "" {
		return "", fmt.Errorf("%w: empty broker content", llm.ErrRejected)
	}
	return parsed.Content, nil
}

var _ llm.Client = (*Client)(nil)
