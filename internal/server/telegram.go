package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/usecase"
	"github.com/devricklin/channel-curator/internal/data"
	"github.com/devricklin/channel-curator/internal/service"
)

const (
	pollTimeoutSeconds = 60
	seenTTL            = 5 * time.Minute
)

// BotAPI is the part of the Telegram bot API the server uses
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramServer receives bot updates by long polling and hands them to the conversation service
type TelegramServer struct {
	bot     BotAPI
	convSvc *service.ConversationService
	logger  *zap.Logger

	// Update deduplication cache
	seenMu sync.Mutex
	seen   map[int]time.Time // updateID -> timestamp

	// Per-user queues; a user's updates are handled one at a time in arrival order
	lanesMu sync.Mutex
	lanes   map[string]*userLane

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTelegramServer creates a new Telegram server
func NewTelegramServer(bot BotAPI, convSvc *service.ConversationService, logger *zap.Logger) *TelegramServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramServer{
		bot:     bot,
		convSvc: convSvc,
		logger:  logger.Named("telegram"),
		seen:    make(map[int]time.Time),
		lanes:   make(map[string]*userLane),
	}
}

// userLane holds the updates waiting for one user's worker
type userLane struct {
	pending []tgbotapi.Update
}

// Start drops pending updates and starts the polling loop
func (s *TelegramServer) Start(ctx context.Context) error {
	if _, err := s.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		s.logger.Warn("drop pending updates failed", zap.Error(err))
	}

	ctx, s.cancel = context.WithCancel(ctx)
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := s.bot.GetUpdatesChan(u)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				s.dispatch(ctx, update)
			}
		}
	}()

	s.logger.Info("bot polling started")
	return nil
}

// Stop stops polling and waits for in-flight messages
func (s *TelegramServer) Stop() {
	s.bot.StopReceivingUpdates()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("bot polling stopped")
}

// dispatch queues update on its user's lane, starting a worker when the lane is idle.
// Different users run in parallel.
func (s *TelegramServer) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.Chat == nil {
		return
	}
	key := senderID(msg)

	s.lanesMu.Lock()
	lane, running := s.lanes[key]
	if !running {
		lane = &userLane{}
		s.lanes[key] = lane
	}
	lane.pending = append(lane.pending, update)
	s.lanesMu.Unlock()

	if running {
		return
	}
	s.wg.Add(1)
	go s.drain(ctx, key, lane)
}

func (s *TelegramServer) drain(ctx context.Context, key string, lane *userLane) {
	defer s.wg.Done()
	for {
		s.lanesMu.Lock()
		if len(lane.pending) == 0 {
			delete(s.lanes, key)
			s.lanesMu.Unlock()
			return
		}
		update := lane.pending[0]
		lane.pending = lane.pending[1:]
		s.lanesMu.Unlock()

		s.handleUpdate(ctx, update)
	}
}

func senderID(msg *tgbotapi.Message) string {
	if msg.From != nil {
		return strconv.FormatInt(msg.From.ID, 10)
	}
	return strconv.FormatInt(msg.Chat.ID, 10)
}

func (s *TelegramServer) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.Chat == nil {
		return
	}
	if !s.checkAndMark(update.UpdateID) {
		s.logger.Debug("duplicate update ignored", zap.Int("update_id", update.UpdateID))
		return
	}

	req := &service.MessageRequest{Text: msg.Text, UserID: senderID(msg)}
	if msg.From != nil {
		req.Username = msg.From.UserName
	}

	s.logger.Debug("message received",
		zap.Int64("chat_id", msg.Chat.ID),
		zap.String("user", req.UserID),
		zap.String("text", truncate(msg.Text, 50)))

	r := newChatReplier(s.bot, msg.Chat.ID, s.logger)
	if err := s.convSvc.HandleMessage(ctx, req, r); err != nil {
		if errors.Is(err, usecase.ErrUnknownCommand) {
			s.logger.Debug("unknown command", zap.Error(err))
			return
		}
		s.logger.Error("handle message failed", zap.Error(err))
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// checkAndMark records updateID and reports whether it was new
func (s *TelegramServer) checkAndMark(updateID int) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if _, exists := s.seen[updateID]; exists {
		return false
	}
	now := time.Now()
	s.seen[updateID] = now

	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seen {
		if ts.Before(cutoff) {
			delete(s.seen, id)
		}
	}
	return true
}

// chatReplier answers one chat through the bot API
type chatReplier struct {
	bot    BotAPI
	chatID int64
	logger *zap.Logger
}

func newChatReplier(bot BotAPI, chatID int64, logger *zap.Logger) *chatReplier {
	return &chatReplier{bot: bot, chatID: chatID, logger: logger}
}

func (r *chatReplier) Reply(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(r.chatID, text)
	msg.DisableWebPagePreview = true
	_, err := r.bot.Send(msg)
	return err
}

func (r *chatReplier) ReplyHTML(ctx context.Context, text string) error {
	_, err := r.sendHTML(text)
	return err
}

func (r *chatReplier) sendHTML(text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(r.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	sent, err := r.bot.Send(msg)
	if err == nil || !isParseError(err) {
		return sent, err
	}

	r.logger.Warn("HTML rejected, resending as plain text", zap.Error(err))
	plain := tgbotapi.NewMessage(r.chatID, data.PlainText(text))
	plain.DisableWebPagePreview = true
	return r.bot.Send(plain)
}

func (r *chatReplier) ReplyEditable(ctx context.Context, text string) (service.EditFunc, error) {
	sent, err := r.sendHTML(text)
	if err != nil {
		return nil, err
	}
	messageID := sent.MessageID

	return func(ctx context.Context, text string) error {
		edit := tgbotapi.NewEditMessageText(r.chatID, messageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err := r.bot.Send(edit)
		switch {
		case err == nil:
			return nil
		case strings.Contains(err.Error(), "message is not modified"):
			return nil
		case isParseError(err):
			_, err = r.bot.Send(tgbotapi.NewEditMessageText(r.chatID, messageID, data.PlainText(text)))
		}
		return err
	}, nil
}

func isParseError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "parse")
}
