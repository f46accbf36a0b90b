package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
)

// Router replies
const (
	ReplyConfirmed = "✅ 好的老板，马上执行~"
	ReplyDenied    = "好的老板，还有什么需要帮忙的吗？"
)

// RouteKind tells the caller what to do with a routed message
type RouteKind int

const (
	RouteExplicit RouteKind = iota // Explicit command; pending state was cleared
	RouteExecute                   // Confirmed: reply, then run Command
	RouteDenied                    // Denied: reply only
	RouteSuggest                   // Keywords matched: reply with the question
	RouteChat                      // Ordinary chat reply
)

// RouteResult is the outcome of routing one user message
type RouteResult struct {
	Kind     RouteKind
	Reply    string
	Command  *domain.CommandDescriptor   // Set for RouteExecute
	Commands []domain.CommandDescriptor // Set for RouteSuggest
}

// IntentRouter turns free text into command suggestions and resolves the
// user's confirmation of them. State is per user; users never interact.
type IntentRouter struct {
	commands []domain.CommandDescriptor
	store    *ConfirmationStore
	detector *ConfirmDetector
	chat     *ChatUsecase
	logger   *zap.Logger
}

// NewIntentRouter creates a new intent router
func NewIntentRouter(
	commands []domain.CommandDescriptor,
	store *ConfirmationStore,
	detector *ConfirmDetector,
	chat *ChatUsecase,
	logger *zap.Logger,
) *IntentRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentRouter{
		commands: commands,
		store:    store,
		detector: detector,
		chat:     chat,
		logger:   logger.Named("intent"),
	}
}

// Commands returns the registry
func (r *IntentRouter) Commands() []domain.CommandDescriptor {
	return r.commands
}

// Lookup finds a registry entry by command name
func (r *IntentRouter) Lookup(command string) (domain.CommandDescriptor, bool) {
	for _, c := range r.commands {
		if c.Command == command {
			return c, true
		}
	}
	return domain.CommandDescriptor{}, false
}

// DetectCommands returns every command with a keyword contained in text,
// in registry order. Matching is a case-insensitive substring test.
func (r *IntentRouter) DetectCommands(text string) []domain.CommandDescriptor {
	lower := strings.ToLower(text)
	var matched []domain.CommandDescriptor
	for _, c := range r.commands {
		for _, kw := range c.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				matched = append(matched, c)
				break
			}
		}
	}
	return matched
}

// FormatSuggestion builds the confirmation question for matched commands
func FormatSuggestion(commands []domain.CommandDescriptor) string {
	if len(commands) == 1 {
		return fmt.Sprintf("老板，你是想%s吗？", commands[0].Description)
	}
	lines := make([]string, len(commands))
	for i, c := range commands {
		lines[i] = fmt.Sprintf("%d. %s", i+1, c.Description)
	}
	return "老板，你是想：\n\n" + strings.Join(lines, "\n") + "\n\n请回复数字选择，或直接告诉我~"
}

// ClearPending drops the user's pending confirmation
func (r *IntentRouter) ClearPending(user string) {
	unlock := r.store.Lock(user)
	defer unlock()
	r.store.Clear(user)
}

// Route handles one message from user. The user's state is locked for the
// whole call, so concurrent messages of one user are processed one at a time.
func (r *IntentRouter) Route(ctx context.Context, user, text string) RouteResult {
	unlock := r.store.Lock(user)
	defer unlock()

	if domain.IsCommandText(text) {
		r.store.Clear(user)
		return RouteResult{Kind: RouteExplicit}
	}

	if pending, ok := r.store.Get(user); ok {
		switch r.detector.Detect(ctx, text, pending.Question) {
		case domain.IntentConfirm:
			r.store.Clear(user)
			cmd := pending.Commands[0]
			r.logger.Info("command confirmed", zap.String("user", user), zap.String("command", cmd.Command))
			return RouteResult{Kind: RouteExecute, Reply: ReplyConfirmed, Command: &cmd}
		case domain.IntentDeny:
			r.store.Clear(user)
			return RouteResult{Kind: RouteDenied, Reply: ReplyDenied}
		}
		// Unknown keeps the pending state and falls through to normal handling
	}

	if matched := r.DetectCommands(text); len(matched) > 0 {
		question := FormatSuggestion(matched)
		r.store.Set(user, matched, question)
		r.logger.Debug("command intent detected", zap.String("user", user), zap.Int("matches", len(matched)))
		return RouteResult{Kind: RouteSuggest, Reply: question, Commands: matched}
	}

	return RouteResult{Kind: RouteChat, Reply: r.chat.Reply(ctx, text)}
}
