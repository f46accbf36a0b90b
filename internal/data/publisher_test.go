package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	sent       []tgbotapi.Chattable
	rejectHTML bool
	err        error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	if b.rejectHTML {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			if m.ParseMode == tgbotapi.ModeHTML {
				return tgbotapi.Message{}, &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities"}
			}
		case tgbotapi.PhotoConfig:
			if m.ParseMode == tgbotapi.ModeHTML {
				return tgbotapi.Message{}, &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities"}
			}
		}
	}
	return tgbotapi.Message{}, nil
}

type fakeMirror struct {
	chatID string
	texts  []string
	titles []string
	lines  [][]string
}

func (m *fakeMirror) SendText(ctx context.Context, chatID, text string) error {
	m.chatID = chatID
	m.texts = append(m.texts, text)
	return nil
}

func (m *fakeMirror) SendPost(ctx context.Context, chatID, title string, lines []string) error {
	m.chatID = chatID
	m.titles = append(m.titles, title)
	m.lines = append(m.lines, lines)
	return nil
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	// Newline past the half-way mark is preferred
	chunks := splitMessage("aaaaaaa\nbbbbbbbbb", 10)
	assert.Equal(t, []string{"aaaaaaa", "bbbbbbbbb"}, chunks)

	// Newline too early: hard cut at max
	chunks = splitMessage("aa\nbbbbbbbbbbbbbbb", 10)
	assert.Equal(t, []string{"aa\nbbbbbbb", "bbbbbbbb"}, chunks)

	// Counts characters, not bytes
	chunks = splitMessage(strings.Repeat("黄", 25), 10)
	assert.Equal(t, []string{strings.Repeat("黄", 10), strings.Repeat("黄", 10), strings.Repeat("黄", 5)}, chunks)
}

func TestTruncateCaption(t *testing.T) {
	assert.Equal(t, "short", truncateCaption("short"))
	long := strings.Repeat("a", 1200)
	assert.Equal(t, strings.Repeat("a", 1000)+"...", truncateCaption(long))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "📌 科技\n\nGo <1.26> & more", PlainText("📌 <b>科技</b>\n\n<i>Go &lt;1.26&gt; &amp; more</i>"))
}

func TestPublisher_SendTextToChannel(t *testing.T) {
	bot := &fakeBot{}
	mirror := &fakeMirror{}
	p := NewMirroredPublisherRepo(bot, "curated", mirror, "oc_123", nil)

	require.NoError(t, p.SendText(context.Background(), "<b>hello</b>"))

	require.Len(t, bot.sent, 1)
	msg := bot.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, "@curated", msg.ChannelUsername)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.True(t, msg.DisableWebPagePreview)
	assert.Equal(t, "oc_123", mirror.chatID)
	assert.Equal(t, []string{"hello"}, mirror.texts)
}

func TestPublisher_SendReportMirrorsPost(t *testing.T) {
	bot := &fakeBot{}
	mirror := &fakeMirror{}
	p := NewMirroredPublisherRepo(bot, "curated", mirror, "oc_123", nil)

	report := "📊 <b>2026-02-10 信息总结</b>\n\n<b>💻 科技</b>\n\nGo &amp; Rust\n"
	require.NoError(t, p.SendReport(context.Background(), "2026-02-10 信息总结", report))

	require.Len(t, bot.sent, 1)
	assert.Empty(t, mirror.texts)
	assert.Equal(t, []string{"2026-02-10 信息总结"}, mirror.titles)
	assert.Equal(t, [][]string{{"📊 2026-02-10 信息总结", "💻 科技", "Go & Rust"}}, mirror.lines)
}

func TestPublisher_SendReportWithoutTarget(t *testing.T) {
	bot := &fakeBot{}
	mirror := &fakeMirror{}
	p := NewMirroredPublisherRepo(bot, "", mirror, "oc_123", nil)

	require.NoError(t, p.SendReport(context.Background(), "t", "x"))
	assert.Empty(t, bot.sent)
	assert.Empty(t, mirror.titles)
}

func TestPublisher_NumericTarget(t *testing.T) {
	bot := &fakeBot{}
	p := NewPublisherRepo(bot, "-1001234567890", nil)

	require.NoError(t, p.SendText(context.Background(), "hi"))

	msg := bot.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(-1001234567890), msg.ChatID)
}

func TestPublisher_FallsBackToPlainText(t *testing.T) {
	bot := &fakeBot{rejectHTML: true}
	p := NewPublisherRepo(bot, "@curated", nil)

	require.NoError(t, p.SendText(context.Background(), "<b>broken"))

	require.Len(t, bot.sent, 2)
	assert.Empty(t, bot.sent[1].(tgbotapi.MessageConfig).ParseMode)
}

func TestPublisher_OtherErrorsPropagate(t *testing.T) {
	p := NewPublisherRepo(&fakeBot{err: errors.New("Forbidden: bot is not a member")}, "@curated", nil)
	assert.Error(t, p.SendText(context.Background(), "hi"))
}

func TestPublisher_NoTargetSkips(t *testing.T) {
	bot := &fakeBot{}
	p := NewPublisherRepo(bot, "", nil)

	require.NoError(t, p.SendText(context.Background(), "hi"))
	require.NoError(t, p.SendPhoto(context.Background(), "/tmp/none.jpg", "hi"))
	assert.Empty(t, bot.sent)
}

func TestPublisher_SendPhoto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0644))
	bot := &fakeBot{rejectHTML: true}
	p := NewPublisherRepo(bot, "@curated", nil)

	require.NoError(t, p.SendPhoto(context.Background(), path, strings.Repeat("字", 1100)))

	require.Len(t, bot.sent, 2)
	photo := bot.sent[1].(tgbotapi.PhotoConfig)
	assert.Empty(t, photo.ParseMode)
	assert.Equal(t, 1003, len([]rune(photo.Caption)))
}

func TestPublisher_MissingPhotoSkips(t *testing.T) {
	bot := &fakeBot{}
	p := NewPublisherRepo(bot, "@curated", nil)

	require.NoError(t, p.SendPhoto(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"), "caption"))
	assert.Empty(t, bot.sent)
}
