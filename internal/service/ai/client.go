package ai

import (
	"context"
	"fmt"

	"github.com/hwpark/chatbot/backend/internal/model/chat"
)

// Client calls the external text-generation service. Generate returns the
// full answer in one shot; GenerateStream returns the answer as a sequence
// of text deltas.
type Client interface {
	Generate(ctx context.Context, question string, history []chat.Exchange, ragContext, model string) (string, error)
	GenerateStream(ctx context.Context, question string, history []chat.Exchange, ragContext, model string) (ChunkStream, error)
}

// ChunkStream yields text deltas from a streaming generation call. Recv
// returns io.EOF once the upstream stream ends. A stream is finite and
// consumable at most once.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// ServiceError reports an upstream call failure. Retryable failures are
// connectivity problems and 5xx responses; 4xx responses are not retried.
// Callers only see a retryable error after the retry budget is exhausted.
type ServiceError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ai: upstream returned status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ai: upstream call failed: %v", e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
