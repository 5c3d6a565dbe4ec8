package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrProviderUnavailable wraps every transport, quota or non-2xx failure from a provider.
var ErrProviderUnavailable = errors.New("completion provider unavailable")

type CompletionRequest struct {
	System    string
	User      string
	MaxTokens int
	// JSONSchema, when set, asks the provider for schema-constrained JSON output.
	JSONSchema map[string]any
}

type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

type StreamEventType string

const (
	StreamToken StreamEventType = "token"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

type StreamEvent struct {
	Type  StreamEventType `json:"type"`
	Token string          `json:"token,omitempty"`
	Err   error           `json:"-"`
}

// Provider is the black-box completion service. The pipeline never depends on a vendor type.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	// StreamComplete emits token events and ends with exactly one done or error event, then closes.
	StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}

// Unavailable wraps err as ErrProviderUnavailable, keeping the provider name in the message.
func Unavailable(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProviderUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, provider, err)
}

// Emit sends ev unless ctx is done. It reports whether the event was delivered.
func Emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
