package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client abstracts model providers for CV extraction and HTML generation.
type Client interface {
	Complete(ctx context.Context, input CompleteInput) (string, error)
}

// CompleteInput captures a single completion request.
type CompleteInput struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
}

var (
	// ErrUnavailable covers transport failures: timeouts, connection
	// errors, anything where no usable response arrived.
	ErrUnavailable = errors.New("model unavailable")
	// ErrRejected covers responses the provider answered but refused:
	// auth failures, quota, malformed-request errors.
	ErrRejected = errors.New("model rejected request")
)

// ErrNotImplemented is returned by the placeholder client. It counts as an
// availability failure so callers surface it as a retryable condition.
var ErrNotImplemented = fmt.Errorf("%w: client not configured", ErrUnavailable)

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderClient) Complete(ctx context.Context, input CompleteInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotImplemented
}
