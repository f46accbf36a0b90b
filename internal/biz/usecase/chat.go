package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// ChatFallbackReply is sent when the chat model is unavailable
const ChatFallbackReply = "抱歉，我现在有点忙，稍后再聊吧 😅"

// ChatUsecase answers free text that is not a command
type ChatUsecase struct {
	llm     repo.LLMRepo
	prompts Prompts
	logger  *zap.Logger
}

// NewChatUsecase creates a new chat usecase
func NewChatUsecase(llm repo.LLMRepo, prompts Prompts, logger *zap.Logger) *ChatUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatUsecase{
		llm:     llm,
		prompts: prompts.withDefaults(),
		logger:  logger.Named("chat"),
	}
}

// Reply returns the persona's answer, or ChatFallbackReply on failure
func (uc *ChatUsecase) Reply(ctx context.Context, text string) string {
	reply, err := uc.llm.Complete(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: uc.prompts.ChatPersona},
		{Role: domain.RoleUser, Content: text},
	}, repo.CompleteOptions{Temperature: 0.7, MaxTokens: 500})
	if err != nil || reply == "" {
		uc.logger.Error("chat reply failed", zap.Error(err))
		return ChatFallbackReply
	}
	return reply
}

// ConfirmDetector classifies a reply to a confirmation question
type ConfirmDetector struct {
	llm     repo.LLMRepo
	prompts Prompts
	logger  *zap.Logger
}

// NewConfirmDetector creates a new confirm detector
func NewConfirmDetector(llm repo.LLMRepo, prompts Prompts, logger *zap.Logger) *ConfirmDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfirmDetector{
		llm:     llm,
		prompts: prompts.withDefaults(),
		logger:  logger.Named("confirm"),
	}
}

// Detect returns confirm, deny or unknown; any failure is unknown
func (d *ConfirmDetector) Detect(ctx context.Context, text, question string) domain.ConfirmIntent {
	content := text
	if question != "" {
		content = fmt.Sprintf("问题：%s\n用户回复：%s", question, text)
	}

	reply, err := d.llm.Complete(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: d.prompts.Confirm},
		{Role: domain.RoleUser, Content: content},
	}, repo.CompleteOptions{Temperature: 0.1, MaxTokens: 20})
	if err != nil {
		d.logger.Error("confirmation detection failed", zap.Error(err))
		return domain.IntentUnknown
	}
	return domain.ParseConfirmIntent(reply)
}
