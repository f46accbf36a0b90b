package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// DigestUsecase writes the on-demand overall recap of a day's messages
type DigestUsecase struct {
	llm     repo.LLMRepo
	prompts Prompts
	logger  *zap.Logger
}

// NewDigestUsecase creates a new digest usecase
func NewDigestUsecase(llm repo.LLMRepo, prompts Prompts, logger *zap.Logger) *DigestUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DigestUsecase{
		llm:     llm,
		prompts: prompts.withDefaults(),
		logger:  logger.Named("digest"),
	}
}

// Generate returns the recap of msgs. Spam must be filtered out by the caller.
func (uc *DigestUsecase) Generate(ctx context.Context, msgs []domain.Message) (string, error) {
	if len(msgs) == 0 {
		return "", nil
	}

	lines := make([]string, len(msgs))
	for i, m := range msgs {
		cat := string(m.Category)
		if cat == "" {
			cat = "未分类"
		}
		lines[i] = fmt.Sprintf("[%s] %s", cat, truncateRunes(m.Content, 200))
	}

	digest, err := uc.llm.Complete(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: uc.prompts.DailyDigest},
		{Role: domain.RoleUser, Content: fmt.Sprintf("以下是今日采集的 %d 条消息：\n\n%s", len(msgs), strings.Join(lines, "\n\n"))},
	}, repo.CompleteOptions{Temperature: 0.5, MaxTokens: 800})
	if err != nil {
		return "", fmt.Errorf("generate digest: %w", err)
	}
	uc.logger.Info("digest generated", zap.Int("messages", len(msgs)))
	return digest, nil
}
