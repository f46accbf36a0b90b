package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

// Replier answers the chat a message came from
type Replier interface {
	// Reply sends plain text
	Reply(ctx context.Context, text string) error
	// ReplyHTML sends HTML text, falling back to plain text if it does not parse
	ReplyHTML(ctx context.Context, text string) error
	// ReplyEditable sends HTML text and returns a function that replaces it in place
	ReplyEditable(ctx context.Context, text string) (EditFunc, error)
}

// EditFunc replaces the content of a sent message
type EditFunc func(ctx context.Context, text string) error

// MessageRequest represents one incoming bot message
type MessageRequest struct {
	UserID   string
	Username string
	Text     string
}

// ConversationService dispatches bot messages to commands or the intent router
type ConversationService struct {
	router     *usecase.IntentRouter // Nil when chat is disabled
	handlers   map[string]CommandHandler
	enableChat bool
	logger     *zap.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	router *usecase.IntentRouter,
	handlers map[string]CommandHandler,
	enableChat bool,
	logger *zap.Logger,
) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		router:     router,
		handlers:   handlers,
		enableChat: enableChat && router != nil,
		logger:     logger.Named("conversation"),
	}
}

// ParseCommand splits "/cmd@bot arg1 arg2" into "/cmd" and its arguments
func ParseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name), fields[1:]
}

// HandleMessage processes a message
func (s *ConversationService) HandleMessage(ctx context.Context, req *MessageRequest, r Replier) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil
	}

	if domain.IsCommandText(text) {
		// A command always wins over a pending suggestion
		if s.router != nil {
			s.router.ClearPending(req.UserID)
		}
		name, args := ParseCommand(text)
		return s.Execute(ctx, name, args, r)
	}

	if !s.enableChat {
		return nil
	}

	s.logger.Info("free text received", zap.String("user", req.UserID), zap.String("username", req.Username))
	result := s.router.Route(ctx, req.UserID, text)

	switch result.Kind {
	case usecase.RouteExecute:
		if err := r.Reply(ctx, result.Reply); err != nil {
			return fmt.Errorf("reply: %w", err)
		}
		return s.Execute(ctx, result.Command.Command, nil, r)
	case usecase.RouteExplicit:
		return nil
	}

	if result.Reply == "" {
		result.Reply = usecase.ChatFallbackReply
	}
	if err := r.Reply(ctx, result.Reply); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

// Execute runs a command by name. Handler failures are reported to the user,
// only an unknown name is returned as an error.
func (s *ConversationService) Execute(ctx context.Context, name string, args []string, r Replier) error {
	handler, ok := s.handlers[name]
	if !ok {
		if err := r.Reply(ctx, fmt.Sprintf("❌ 未知指令: %s", name)); err != nil {
			s.logger.Warn("reply failed", zap.Error(err))
		}
		return fmt.Errorf("%w: %s", usecase.ErrUnknownCommand, name)
	}

	if err := handler(ctx, args, r); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		s.logger.Error("command failed", zap.String("command", name), zap.Error(err))
		if replyErr := r.Reply(ctx, fmt.Sprintf("❌ 执行失败: %s", err)); replyErr != nil {
			s.logger.Warn("reply failed", zap.Error(replyErr))
		}
	}
	return nil
}
