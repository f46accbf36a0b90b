package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

// Command limits
const (
	FetchLimit         = 50
	DefaultRecentLimit = 10
	DefaultDedupLimit  = 5
	MaxDedupLimit      = 20
	SearchLimit        = 20
	maxReplyRunes      = 4000
	previewRunes       = 150
	progressSteps      = 6
)

// CommandHandler runs one command. args are the whitespace separated words after the command name.
type CommandHandler func(ctx context.Context, args []string, r Replier) error

// Digester generates the free-form daily digest
type Digester interface {
	Generate(ctx context.Context, msgs []domain.Message) (string, error)
}

// CommandDeps are the stores and jobs the command handlers read from
type CommandDeps struct {
	Messages  repo.MessageRepo
	Summaries repo.SummaryRepo
	Dedup     repo.DedupRepo
	Collector Collector // Optional, /fetch is unavailable without it
	Digester  Digester

	EnableChat      bool
	PublishInterval time.Duration
	Location        *time.Location
}

// CommandSet implements the bot commands
type CommandSet struct {
	deps   CommandDeps
	now    func() time.Time
	logger *zap.Logger
}

// NewCommandSet creates the command handlers
func NewCommandSet(deps CommandDeps, logger *zap.Logger) *CommandSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	return &CommandSet{
		deps:   deps,
		now:    time.Now,
		logger: logger.Named("commands"),
	}
}

// WithClock replaces the time source
func (c *CommandSet) WithClock(now func() time.Time) *CommandSet {
	c.now = now
	return c
}

// Handlers maps command names to handlers
func (c *CommandSet) Handlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"/start":   c.start,
		"/status":  c.status,
		"/today":   c.today,
		"/digest":  c.digest,
		"/summary": c.summary,
		"/recent":  c.recent,
		"/search":  c.search,
		"/dedup":   c.dedup,
		"/fetch":   c.fetch,
		"/clear":   c.clear,
	}
}

func (c *CommandSet) currentDay() time.Time {
	return c.now().In(c.deps.Location)
}

// StartText is the /start help message
const StartText = "👋 欢迎使用频道聚合 Bot！\n\n" +
	"可用命令：\n" +
	"/status - 查看当前运行状态\n" +
	"/today - 查看今日消息统计\n" +
	"/digest - 生成今日整体总结（约300字）\n" +
	"/summary - 获取最近一次每日总结\n" +
	"/recent - 查看最近消息（默认10条）\n" +
	"  └ /recent 5 - 查看最近5条\n" +
	"  └ /recent 3-8 - 查看第3到第8条\n" +
	"/search - 关键词搜索消息\n" +
	"  └ /search AI 科技 - 匹配任意词（或）\n" +
	"  └ /search and AI 科技 - 匹配全部词（且）\n" +
	"/dedup - 查看 AI 去重记录对比\n" +
	"  └ /dedup 10 - 查看最近10条去重记录\n" +
	"/fetch - 立即抓取、处理并发布\n" +
	"/clear - 清除历史数据\n" +
	"  └ /clear all - 清除所有\n" +
	"  └ /clear 2026-02-10 - 清除指定日期\n" +
	"  └ /clear before 2026-02-01 - 清除该日期之前"

const chatHint = "\n\n💬 提示：除了使用命令，您也可以直接和我聊天！"

func (c *CommandSet) start(ctx context.Context, _ []string, r Replier) error {
	text := StartText
	if c.deps.EnableChat {
		text += chatHint
	}
	return r.Reply(ctx, text)
}

func (c *CommandSet) status(ctx context.Context, _ []string, r Replier) error {
	count, err := c.deps.Messages.CountByDate(ctx, c.currentDay())
	if err != nil {
		return fmt.Errorf("count today's messages: %w", err)
	}
	last := "暂无"
	recent, err := c.deps.Summaries.Recent(ctx, 1)
	if err != nil {
		return fmt.Errorf("get latest summary: %w", err)
	}
	if len(recent) > 0 {
		last = recent[0].Date
	}

	text := "📊 <b>运行状态</b>\n\n" +
		fmt.Sprintf("今日已采集消息：%d 条\n", count) +
		fmt.Sprintf("最近总结日期：%s", last)
	return r.ReplyHTML(ctx, text)
}

func (c *CommandSet) today(ctx context.Context, _ []string, r Replier) error {
	msgs, err := c.deps.Messages.ListByDate(ctx, c.currentDay())
	if err != nil {
		return fmt.Errorf("list today's messages: %w", err)
	}
	if len(msgs) == 0 {
		return r.Reply(ctx, "📭 今日暂无采集到的消息")
	}

	var order []string
	counts := make(map[string]int)
	for _, m := range msgs {
		label := m.CategoryLabel
		if label == "" {
			label = "未分类"
		}
		if _, ok := counts[label]; !ok {
			order = append(order, label)
		}
		counts[label]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>今日消息统计</b> (共 %d 条)\n\n", len(msgs))
	for _, label := range order {
		fmt.Fprintf(&b, "• %s: %d 条\n", usecase.EscapeHTML(label), counts[label])
	}
	return r.ReplyHTML(ctx, b.String())
}

func (c *CommandSet) digest(ctx context.Context, _ []string, r Replier) error {
	day := c.currentDay()
	msgs, err := c.deps.Messages.ListByDate(ctx, day)
	if err != nil {
		return fmt.Errorf("list today's messages: %w", err)
	}
	if len(msgs) == 0 {
		return r.Reply(ctx, "📭 今日暂无消息，无法生成总结")
	}

	var valid []domain.Message
	for _, m := range msgs {
		if !m.IsSpam() {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		return r.Reply(ctx, "📭 今日无有效消息（均为垃圾分类）")
	}

	if err := r.Reply(ctx, fmt.Sprintf("⏳ 正在生成今日总结（%d 条消息）...", len(valid))); err != nil {
		return err
	}

	digest, err := c.deps.Digester.Generate(ctx, valid)
	if err != nil || digest == "" {
		c.logger.Warn("digest generation failed", zap.Error(err))
		return r.Reply(ctx, "❌ 总结生成失败，请稍后重试")
	}

	text := fmt.Sprintf("📋 <b>%s 今日总结</b>\n（共 %d 条消息）\n\n%s",
		usecase.DateKey(day), len(valid), usecase.EscapeHTML(digest))
	return r.ReplyHTML(ctx, truncateReply(text))
}

func (c *CommandSet) summary(ctx context.Context, _ []string, r Replier) error {
	recent, err := c.deps.Summaries.Recent(ctx, 1)
	if err != nil {
		return fmt.Errorf("get latest summary: %w", err)
	}
	if len(recent) == 0 {
		return r.Reply(ctx, "📭 暂无每日总结，等待定时任务生成...")
	}

	s := recent[0]
	text := fmt.Sprintf("📝 <b>%s 每日总结</b>\n(共 %d 条消息)\n\n%s", s.Date, s.MsgCount, s.Content)
	return r.ReplyHTML(ctx, truncateReply(text))
}

// ParseRecentArgs parses "/recent", "/recent n" and "/recent a-b" into offset and limit.
// Invalid arguments fall back to the default.
func ParseRecentArgs(args []string) (offset, limit int) {
	limit = DefaultRecentLimit
	if len(args) == 0 {
		return 0, limit
	}

	param := args[0]
	if start, end, ok := strings.Cut(param, "-"); ok {
		a, errA := strconv.Atoi(start)
		b, errB := strconv.Atoi(end)
		if errA == nil && errB == nil && a > 0 && b >= a {
			return a - 1, b - a + 1
		}
		return 0, limit
	}
	if n, err := strconv.Atoi(param); err == nil && n > 0 {
		limit = n
	}
	return 0, limit
}

func (c *CommandSet) recent(ctx context.Context, args []string, r Replier) error {
	offset, limit := ParseRecentArgs(args)
	msgs, err := c.deps.Messages.Recent(ctx, offset, limit)
	if err != nil {
		return fmt.Errorf("list recent messages: %w", err)
	}
	if len(msgs) == 0 {
		return r.Reply(ctx, "📭 暂无消息")
	}

	for _, m := range msgs {
		text := usecase.EscapeHTML(strings.TrimSpace(m.Content)) + "\n\n" +
			"<i>— " + usecase.EscapeHTML(m.SourceOrUnknown()) + "</i>"
		if err := replyChunks(ctx, r, text); err != nil {
			return err
		}
	}
	return nil
}

const searchUsage = "🔍 搜索命令用法：\n\n" +
	"/search 关键词1 关键词2 - 匹配任意词（或）\n" +
	"/search and 关键词1 关键词2 - 匹配全部词（且）\n\n" +
	"示例：\n" +
	"• /search AI 科技 - 包含 AI 或 科技\n" +
	"• /search and AI 科技 - 同时包含 AI 和 科技"

// ParseSearchArgs splits an optional leading and/or mode word from the keywords
func ParseSearchArgs(args []string) (keywords []string, matchAll bool) {
	if len(args) == 0 {
		return nil, false
	}
	switch strings.ToLower(args[0]) {
	case "and":
		return args[1:], true
	case "or":
		return args[1:], false
	}
	return args, false
}

func (c *CommandSet) search(ctx context.Context, args []string, r Replier) error {
	if len(args) == 0 {
		return r.Reply(ctx, searchUsage)
	}
	keywords, matchAll := ParseSearchArgs(args)
	if len(keywords) == 0 {
		return r.Reply(ctx, "❌ 请提供至少一个搜索关键词")
	}

	mode := "或"
	if matchAll {
		mode = "且"
	}
	if err := r.Reply(ctx, fmt.Sprintf("🔍 搜索中... 关键词: %s (%s)", strings.Join(keywords, ", "), mode)); err != nil {
		return err
	}

	msgs, err := c.deps.Messages.Search(ctx, keywords, matchAll, SearchLimit)
	if err != nil {
		return fmt.Errorf("search messages: %w", err)
	}
	if len(msgs) == 0 {
		return r.Reply(ctx, "📭 未找到匹配的消息")
	}
	if err := r.Reply(ctx, fmt.Sprintf("📋 找到 %d 条匹配消息：", len(msgs))); err != nil {
		return err
	}

	for _, m := range msgs {
		var b strings.Builder
		if m.Category != "" {
			fmt.Fprintf(&b, "[%s] ", m.Category)
		}
		fmt.Fprintf(&b, "<b>#%d</b>\n\n", m.ID)
		fmt.Fprintf(&b, "<i>📅 %s | 来源: %s</i>\n\n",
			m.CreatedAt.In(c.deps.Location).Format(time.DateTime), usecase.EscapeHTML(m.SourceOrUnknown()))
		b.WriteString("━━━━━━━━━━━━━━━\n\n\n")
		b.WriteString(HighlightKeywords(strings.TrimSpace(m.Content), keywords))
		if err := replyChunks(ctx, r, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// HighlightKeywords escapes content and wraps case-insensitive keyword matches in <u><b>
func HighlightKeywords(content string, keywords []string) string {
	out := usecase.EscapeHTML(content)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		re := regexp.MustCompile("(?i)(" + regexp.QuoteMeta(usecase.EscapeHTML(kw)) + ")")
		out = re.ReplaceAllString(out, "<u><b>$1</b></u>")
	}
	return out
}

func (c *CommandSet) dedup(ctx context.Context, args []string, r Replier) error {
	limit := DefaultDedupLimit
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = min(n, MaxDedupLimit)
		}
	}

	records, err := c.deps.Dedup.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("list dedup records: %w", err)
	}
	if len(records) == 0 {
		return r.Reply(ctx, "📭 暂无 AI 去重记录")
	}
	todayCount, err := c.deps.Dedup.CountSince(ctx, startOfDay(c.currentDay()))
	if err != nil {
		return fmt.Errorf("count today's dedup records: %w", err)
	}

	if err := r.Reply(ctx, fmt.Sprintf("🔍 AI 事件去重记录（今日 %d 条，显示最近 %d 条）：", todayCount, len(records))); err != nil {
		return err
	}

	for _, rec := range records {
		reason := rec.Reason
		if reason == "" {
			reason = "未说明"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "📅 <i>%s</i>\n\n", rec.CreatedAt.In(c.deps.Location).Format(time.DateTime))
		fmt.Fprintf(&b, "✅ <b>保留:</b> %s\n%s\n\n", usecase.EscapeHTML(rec.KeptSource), preview(rec.KeptContent))
		fmt.Fprintf(&b, "❌ <b>移除:</b> %s\n%s\n\n", usecase.EscapeHTML(rec.RemovedSource), preview(rec.RemovedContent))
		fmt.Fprintf(&b, "💡 <b>原因:</b> %s\n", usecase.EscapeHTML(reason))
		b.WriteString("━━━━━━━━━━━━━━━")
		if err := r.ReplyHTML(ctx, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func (c *CommandSet) fetch(ctx context.Context, _ []string, r Replier) error {
	if c.deps.Collector == nil {
		return r.Reply(ctx, "⚠️ 频道抓取未配置，请稍后再试")
	}

	edit, err := r.ReplyEditable(ctx, FormatProgress(0, "准备开始...", ""))
	if err != nil {
		return err
	}
	update := func(text string) {
		if err := edit(ctx, text); err != nil {
			c.logger.Debug("progress edit failed", zap.Error(err))
		}
	}

	report, err := c.deps.Collector.Collect(ctx, FetchLimit, true, func(rep usecase.CollectReport) {
		if step, name, detail, ok := c.describeStage(rep); ok {
			update(FormatProgress(step, name, detail))
		}
	})
	if err != nil {
		c.logger.Error("fetch command failed", zap.Error(err))
		if editErr := edit(ctx, fmt.Sprintf("❌ 执行失败: %s", err)); editErr != nil {
			return err
		}
		return nil
	}

	update(FormatFetchResult(report))
	return nil
}

func (c *CommandSet) describeStage(rep usecase.CollectReport) (step int, name, detail string, ok bool) {
	switch rep.Stage {
	case usecase.StageFetch:
		return 1, "正在抓取频道消息...", "⏳ 连接频道中", true
	case usecase.StageFilter:
		return 2, "正在过滤消息...", fmt.Sprintf("🔍 处理 %d 条消息", rep.Fetched), true
	case usecase.StageClassify:
		return 3, "正在 AI 分类...", fmt.Sprintf("🤖 分析 %d 条消息", rep.Filtered), true
	case usecase.StageSave:
		return 4, "正在保存到数据库...", fmt.Sprintf("💾 存储 %d 条消息", rep.Classified), true
	case usecase.StagePublish:
		if rep.Published == 0 {
			eta := int(math.Ceil(float64(rep.ToPublish) * c.deps.PublishInterval.Seconds()))
			return 5, "正在发布到频道...", fmt.Sprintf("📤 发布 %d 条消息\n⏱️ 预计 %d 秒", rep.ToPublish, eta), true
		}
		percent := rep.Published * 100 / max(rep.ToPublish, 1)
		return 5, "正在发布到频道...", fmt.Sprintf("📤 发布进度 %d/%d (%d%%)", rep.Published, rep.ToPublish, percent), true
	}
	return 0, "", "", false
}

// FormatProgress renders the /fetch progress message
func FormatProgress(step int, name, detail string) string {
	percent := int(math.Round(float64(step) / progressSteps * 100))
	var b strings.Builder
	fmt.Fprintf(&b, "🔄 <b>抓取进度</b> %s %d%%\n\n", progressBar(percent, 10), percent)
	fmt.Fprintf(&b, "📍 %s\n", name)
	if detail != "" {
		b.WriteString(detail + "\n")
	}
	fmt.Fprintf(&b, "\n步骤: %d/%d", step, progressSteps)
	return b.String()
}

func progressBar(percent, width int) string {
	filled := int(math.Round(float64(percent) / 100 * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// FormatFetchResult renders the final /fetch message
func FormatFetchResult(rep usecase.CollectReport) string {
	switch {
	case rep.Fetched == 0:
		return "📭 本次抓取无新消息"
	case rep.Filtered == 0:
		return "📭 过滤后无新消息（可能都是重复的）"
	case rep.ToPublish == 0:
		return fmt.Sprintf("📭 无有效消息需要发布\n（%d 条被标记为垃圾）", rep.Spam)
	}
	return "✅ <b>抓取完成！</b>\n\n" +
		fmt.Sprintf("📥 抓取: %d 条\n", rep.Fetched) +
		fmt.Sprintf("🔍 过滤后: %d 条\n", rep.Filtered) +
		fmt.Sprintf("🏷️ 分类后: %d 条\n", rep.Classified) +
		fmt.Sprintf("📤 已发布: %d 条\n", rep.Published) +
		fmt.Sprintf("🗑️ 垃圾过滤: %d 条", rep.Spam)
}

var dateArg = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const clearUsageError = "❌ 参数格式错误\n\n" +
	"正确用法：\n" +
	"• /clear all\n" +
	"• /clear 2026-02-10\n" +
	"• /clear before 2026-02-01"

func (c *CommandSet) clear(ctx context.Context, args []string, r Replier) error {
	if len(args) == 0 {
		msgs, err := c.deps.Messages.CountAll(ctx)
		if err != nil {
			return fmt.Errorf("count messages: %w", err)
		}
		sums, err := c.deps.Summaries.CountAll(ctx)
		if err != nil {
			return fmt.Errorf("count summaries: %w", err)
		}
		return r.Reply(ctx, fmt.Sprintf("📊 当前数据统计\n• 消息: %d 条\n• 总结: %d 条\n\n", msgs, sums)+
			"清除命令用法：\n"+
			"• /clear all - 清除所有消息和总结\n"+
			"• /clear 2026-02-10 - 清除指定日期的消息和总结\n"+
			"• /clear before 2026-02-01 - 清除该日期之前的消息和总结")
	}

	arg := strings.ToLower(args[0])
	switch {
	case arg == "all":
		m, err := c.deps.Messages.ClearAll(ctx)
		if err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		s, err := c.deps.Summaries.ClearAll(ctx)
		if err != nil {
			return fmt.Errorf("clear summaries: %w", err)
		}
		return r.Reply(ctx, fmt.Sprintf("✅ 已清除所有数据\n• 消息: %d 条\n• 总结: %d 条", m, s))

	case arg == "before" && len(args) > 1:
		day, ok := c.parseDate(args[1])
		if !ok {
			return r.Reply(ctx, clearUsageError)
		}
		m, err := c.deps.Messages.ClearBefore(ctx, day)
		if err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		s, err := c.deps.Summaries.ClearBefore(ctx, day)
		if err != nil {
			return fmt.Errorf("clear summaries: %w", err)
		}
		return r.Reply(ctx, fmt.Sprintf("✅ 已清除 %s 之前的数据\n• 消息: %d 条\n• 总结: %d 条", args[1], m, s))

	default:
		day, ok := c.parseDate(arg)
		if !ok {
			return r.Reply(ctx, clearUsageError)
		}
		m, err := c.deps.Messages.ClearByDate(ctx, day)
		if err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		s, err := c.deps.Summaries.ClearByDate(ctx, day)
		if err != nil {
			return fmt.Errorf("clear summaries: %w", err)
		}
		return r.Reply(ctx, fmt.Sprintf("✅ 已清除 %s 的数据\n• 消息: %d 条\n• 总结: %d 条", arg, m, s))
	}
}

func (c *CommandSet) parseDate(s string) (time.Time, bool) {
	if !dateArg.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(usecase.DateLayout, s, c.deps.Location)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewRunes {
		return usecase.EscapeHTML(s)
	}
	return usecase.EscapeHTML(string(runes[:previewRunes])) + "..."
}

func truncateReply(text string) string {
	runes := []rune(text)
	if len(runes) <= maxReplyRunes {
		return text
	}
	return string(runes[:maxReplyRunes]) + "\n\n...（内容过长已截断）"
}

// replyChunks sends HTML text in pieces of at most maxReplyRunes runes
func replyChunks(ctx context.Context, r Replier, text string) error {
	runes := []rune(text)
	for len(runes) > 0 {
		n := min(len(runes), maxReplyRunes)
		if err := r.ReplyHTML(ctx, string(runes[:n])); err != nil {
			return err
		}
		runes = runes[n:]
	}
	return nil
}
