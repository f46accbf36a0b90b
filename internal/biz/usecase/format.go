package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
)

var (
	htmlEscaper    = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	trailingURLRe  = regexp.MustCompile(`(?i)\s*(https?://\S+)\s*$`)
	messageDivider = "━━━━━━━━━━━━━━━"
)

// EscapeHTML escapes the characters Telegram's HTML mode reserves
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// RemoveTrailingURL drops a link at the very end of text
func RemoveTrailingURL(s string) string {
	return strings.TrimSpace(trailingURLRe.ReplaceAllString(s, ""))
}

// FormatPublished renders a curated message for the target channel
func FormatPublished(m domain.Message) string {
	label := m.CategoryLabel
	if label == "" {
		label = string(m.Category)
	}
	if label == "" {
		label = "精选"
	}
	return fmt.Sprintf("📌 <b>%s</b>\n\n<i>来源: %s</i>\n\n%s\n\n\n<b>%s</b>",
		EscapeHTML(label),
		EscapeHTML(m.SourceOrUnknown()),
		messageDivider,
		EscapeHTML(m.Content))
}

// DateLayout is the YYYY-MM-DD day key used by summaries and commands
const DateLayout = "2006-01-02"

// DateKey formats a day as YYYY-MM-DD
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}
