package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

// Retry schedule: 1s, 2s, 4s ... between attempts
const retryInitialInterval = time.Second

// ChatCompleter is the part of the OpenAI client the repository uses
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// llmRepo implements the language model repository on an OpenAI-compatible API
type llmRepo struct {
	client        ChatCompleter
	model         string
	timeout       time.Duration
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewOpenAIClient creates an OpenAI-compatible client; baseURL may point at any compatible provider
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// NewLLMRepo creates a language model repository
func NewLLMRepo(client ChatCompleter, model string, timeout time.Duration, logger *zap.Logger) repo.LLMRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &llmRepo{
		client:        client,
		model:         model,
		timeout:       timeout,
		retryInterval: retryInitialInterval,
		logger:        logger.Named("llm"),
	}
}

// Complete runs one chat completion, retried per opts.MaxAttempts
func (r *llmRepo) Complete(ctx context.Context, messages []domain.ChatMessage, opts repo.CompleteOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var reply string
	attempt := 0
	operation := func() error {
		attempt++
		out, err := r.completeOnce(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			r.logger.Warn("completion attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", max(opts.MaxAttempts, 1)),
				zap.Error(err))
			return err
		}
		reply = out
		return nil
	}

	if err := backoff.Retry(operation, r.retryPolicy(ctx, opts.MaxAttempts)); err != nil {
		return "", err
	}
	return reply, nil
}

func (r *llmRepo) completeOnce(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", usecase.ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// retryPolicy waits retryInterval * 2^(n-1) before retry n, without jitter
func (r *llmRepo) retryPolicy(ctx context.Context, maxAttempts int) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retryInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 64 * r.retryInterval
	b.MaxElapsedTime = 0

	retries := uint64(0)
	if maxAttempts > 1 {
		retries = uint64(maxAttempts - 1)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

func toOpenAIMessages(messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}
