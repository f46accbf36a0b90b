package data

import (
	"context"
	"fmt"
	"html"
	"os"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/repo"
)

const (
	// Telegram's message limit minus headroom for entities
	maxChunkLength   = 4096 - 100
	maxCaptionLength = 1000
)

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// BotSender is the part of the bot API the publisher uses
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// MirrorSink receives a plain-text copy of everything published
type MirrorSink interface {
	SendText(ctx context.Context, chatID, text string) error
	SendPost(ctx context.Context, chatID, title string, lines []string) error
}

// publisherRepo implements the publisher repository on the Telegram bot API
type publisherRepo struct {
	bot          BotSender
	target       string
	mirror       MirrorSink // Optional
	mirrorChatID string
	logger       *zap.Logger
}

// NewPublisherRepo creates a publisher for the target channel ("@name" or numeric id)
func NewPublisherRepo(bot BotSender, target string, logger *zap.Logger) repo.PublisherRepo {
	return newPublisherRepo(bot, target, nil, "", logger)
}

// NewMirroredPublisherRepo creates a publisher that also mirrors plain text to a Feishu chat
func NewMirroredPublisherRepo(bot BotSender, target string, mirror MirrorSink, mirrorChatID string, logger *zap.Logger) repo.PublisherRepo {
	return newPublisherRepo(bot, target, mirror, mirrorChatID, logger)
}

func newPublisherRepo(bot BotSender, target string, mirror MirrorSink, mirrorChatID string, logger *zap.Logger) *publisherRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	if target != "" && !strings.HasPrefix(target, "@") {
		if _, err := strconv.ParseInt(target, 10, 64); err != nil {
			target = "@" + target
		}
	}
	return &publisherRepo{
		bot:          bot,
		target:       target,
		mirror:       mirror,
		mirrorChatID: mirrorChatID,
		logger:       logger.Named("publisher"),
	}
}

// SendText sends HTML text in chunks, falling back to plain text when Telegram rejects the markup
func (r *publisherRepo) SendText(ctx context.Context, text string) error {
	sent, err := r.sendChunks(text)
	if err != nil || !sent {
		return err
	}
	r.mirrorText(ctx, text)
	return nil
}

// SendReport publishes text and mirrors it as a titled post
func (r *publisherRepo) SendReport(ctx context.Context, title, text string) error {
	sent, err := r.sendChunks(text)
	if err != nil || !sent {
		return err
	}
	r.mirrorPost(ctx, title, text)
	return nil
}

func (r *publisherRepo) sendChunks(text string) (bool, error) {
	if r.target == "" {
		r.logger.Warn("target channel not configured, skipping publish")
		return false, nil
	}

	chunks := splitMessage(text, maxChunkLength)
	for _, chunk := range chunks {
		msg := r.newMessage(chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		_, err := r.bot.Send(msg)
		if err != nil && isParseError(err) {
			r.logger.Warn("HTML rejected, resending as plain text", zap.Error(err))
			msg.ParseMode = ""
			_, err = r.bot.Send(msg)
		}
		if err != nil {
			return false, fmt.Errorf("failed to send message: %w", err)
		}
	}

	r.logger.Info("message published", zap.String("channel", r.target), zap.Int("chunks", len(chunks)))
	return true, nil
}

// SendPhoto sends a local photo with a truncated HTML caption; a missing file is skipped
func (r *publisherRepo) SendPhoto(ctx context.Context, path, caption string) error {
	if r.target == "" {
		r.logger.Warn("target channel not configured, skipping publish")
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		r.logger.Warn("photo file missing, skipping", zap.String("path", path))
		return nil
	}

	photo := r.newPhoto(path)
	photo.Caption = truncateCaption(caption)
	photo.ParseMode = tgbotapi.ModeHTML

	_, err := r.bot.Send(photo)
	if err != nil && isParseError(err) {
		r.logger.Warn("caption HTML rejected, resending as plain text", zap.Error(err))
		photo.ParseMode = ""
		_, err = r.bot.Send(photo)
	}
	if err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}

	r.logger.Info("photo published", zap.String("channel", r.target))
	r.mirrorText(ctx, caption)
	return nil
}

func (r *publisherRepo) newMessage(text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(r.target, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(r.target, text)
}

func (r *publisherRepo) newPhoto(path string) tgbotapi.PhotoConfig {
	if id, err := strconv.ParseInt(r.target, 10, 64); err == nil {
		return tgbotapi.NewPhoto(id, tgbotapi.FilePath(path))
	}
	return tgbotapi.NewPhotoToChannel(r.target, tgbotapi.FilePath(path))
}

func (r *publisherRepo) mirrorText(ctx context.Context, text string) {
	if r.mirror == nil || r.mirrorChatID == "" {
		return
	}
	if err := r.mirror.SendText(ctx, r.mirrorChatID, PlainText(text)); err != nil {
		r.logger.Warn("mirror to feishu failed", zap.Error(err))
	}
}

func (r *publisherRepo) mirrorPost(ctx context.Context, title, text string) {
	if r.mirror == nil || r.mirrorChatID == "" {
		return
	}
	var lines []string
	for _, line := range strings.Split(PlainText(text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if err := r.mirror.SendPost(ctx, r.mirrorChatID, title, lines); err != nil {
		r.logger.Warn("mirror post to feishu failed", zap.Error(err))
	}
}

func isParseError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "parse")
}

// splitMessage cuts text into chunks of at most maxLen characters, preferring
// a newline in the second half of the window
func splitMessage(text string, maxLen int) []string {
	remaining := []rune(text)
	if len(remaining) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(remaining) > 0 {
		if len(remaining) <= maxLen {
			chunks = append(chunks, string(remaining))
			break
		}
		splitAt := lastNewline(remaining[:maxLen+1])
		if splitAt < maxLen/2 {
			splitAt = maxLen
		}
		chunks = append(chunks, string(remaining[:splitAt]))
		remaining = []rune(strings.TrimLeft(string(remaining[splitAt:]), " \t\r\n"))
	}
	return chunks
}

func lastNewline(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == '\n' {
			return i
		}
	}
	return -1
}

func truncateCaption(caption string) string {
	rs := []rune(caption)
	if len(rs) <= maxCaptionLength {
		return caption
	}
	return string(rs[:maxCaptionLength]) + "..."
}

// PlainText strips HTML markup and unescapes entities
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(s, "")))
}
