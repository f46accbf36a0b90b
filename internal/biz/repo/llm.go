package repo

import (
	"context"

	"github.com/devricklin/channel-curator/internal/biz/domain"
)

// CompleteOptions tunes a single completion call
type CompleteOptions struct {
	Temperature float32
	MaxTokens   int

	// MaxAttempts is the caller's retry policy: total attempts with exponential
	// backoff between them. Zero or one means no retry.
	MaxAttempts int
}

// LLMRepo is the language model interface
// Prompt construction and result parsing belong to the caller
type LLMRepo interface {
	// Complete returns the model's text reply
	Complete(ctx context.Context, messages []domain.ChatMessage, opts CompleteOptions) (string, error)
}
