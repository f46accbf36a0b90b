package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

var commandNow = time.Date(2026, 2, 10, 21, 30, 0, 0, time.UTC)

type commandFixture struct {
	messages  *mockMessageRepo
	summaries *mockSummaryRepo
	dedup     *mockDedupRepo
	collector *mockCollector
	digester  *mockDigester
	set       *CommandSet
}

func newCommandFixture(enableChat bool) *commandFixture {
	f := &commandFixture{
		messages:  &mockMessageRepo{},
		summaries: &mockSummaryRepo{},
		dedup:     &mockDedupRepo{},
		collector: &mockCollector{},
		digester:  &mockDigester{},
	}
	f.set = NewCommandSet(CommandDeps{
		Messages:        f.messages,
		Summaries:       f.summaries,
		Dedup:           f.dedup,
		Collector:       f.collector,
		Digester:        f.digester,
		EnableChat:      enableChat,
		PublishInterval: 3 * time.Second,
		Location:        time.UTC,
	}, nil).WithClock(func() time.Time { return commandNow })
	return f
}

func (f *commandFixture) run(t *testing.T, name string, args ...string) *mockReplier {
	t.Helper()
	r := &mockReplier{}
	handler, ok := f.set.Handlers()[name]
	require.True(t, ok, "handler %s", name)
	require.NoError(t, handler(context.Background(), args, r))
	return r
}

func TestHandlers_CoverRegistry(t *testing.T) {
	handlers := newCommandFixture(true).set.Handlers()
	for _, c := range domain.DefaultCommands() {
		assert.Contains(t, handlers, c.Command)
	}
	assert.Len(t, handlers, len(domain.DefaultCommands()))
}

func TestStart_ChatHint(t *testing.T) {
	r := newCommandFixture(true).run(t, "/start")
	assert.True(t, strings.HasSuffix(r.sent()[0], "您也可以直接和我聊天！"))

	r = newCommandFixture(false).run(t, "/start")
	assert.Equal(t, StartText, r.sent()[0])
}

func TestStatus(t *testing.T) {
	f := newCommandFixture(true)
	f.messages.today = []domain.Message{{Content: "a"}, {Content: "b"}}
	r := f.run(t, "/status")
	assert.Contains(t, r.html[0], "今日已采集消息：2 条")
	assert.Contains(t, r.html[0], "最近总结日期：暂无")

	f.summaries.summaries = []domain.Summary{{Date: "2026-02-09"}}
	r = f.run(t, "/status")
	assert.Contains(t, r.html[0], "最近总结日期：2026-02-09")
}

func TestToday_GroupsByLabelInOrder(t *testing.T) {
	f := newCommandFixture(true)
	r := f.run(t, "/today")
	assert.Equal(t, []string{"📭 今日暂无采集到的消息"}, r.sent())

	f.messages.today = []domain.Message{
		{CategoryLabel: "科技"}, {CategoryLabel: "金融"}, {CategoryLabel: "科技"}, {},
	}
	r = f.run(t, "/today")
	assert.Equal(t, "📋 <b>今日消息统计</b> (共 4 条)\n\n• 科技: 2 条\n• 金融: 1 条\n• 未分类: 1 条\n", r.html[0])
}

func TestDigest(t *testing.T) {
	f := newCommandFixture(true)
	f.messages.today = []domain.Message{
		{Content: "spam", Category: domain.CategorySpam},
		{Content: "news", Category: domain.CategoryNews},
	}
	f.digester.text = "今天 <重要> 的事"

	r := f.run(t, "/digest")

	require.Len(t, f.digester.got, 1)
	assert.Equal(t, "news", f.digester.got[0].Content)
	assert.Equal(t, "⏳ 正在生成今日总结（1 条消息）...", r.plain[0])
	assert.Equal(t, "📋 <b>2026-02-10 今日总结</b>\n（共 1 条消息）\n\n今天 &lt;重要&gt; 的事", r.html[0])
}

func TestDigest_AllSpamAndFailure(t *testing.T) {
	f := newCommandFixture(true)
	f.messages.today = []domain.Message{{Category: domain.CategorySpam}}
	r := f.run(t, "/digest")
	assert.Equal(t, []string{"📭 今日无有效消息（均为垃圾分类）"}, r.sent())

	f.messages.today = []domain.Message{{Category: domain.CategoryNews}}
	f.digester.err = errors.New("timeout")
	r = f.run(t, "/digest")
	assert.Equal(t, "❌ 总结生成失败，请稍后重试", r.sent()[1])
}

func TestSummary_Truncates(t *testing.T) {
	f := newCommandFixture(true)
	r := f.run(t, "/summary")
	assert.Equal(t, []string{"📭 暂无每日总结，等待定时任务生成..."}, r.sent())

	f.summaries.summaries = []domain.Summary{{Date: "2026-02-09", MsgCount: 3, Content: strings.Repeat("字", 5000)}}
	r = f.run(t, "/summary")
	assert.True(t, strings.HasSuffix(r.html[0], "...（内容过长已截断）"))
	assert.LessOrEqual(t, len([]rune(r.html[0])), maxReplyRunes+20)
}

func TestParseRecentArgs(t *testing.T) {
	tests := []struct {
		args   []string
		offset int
		limit  int
	}{
		{nil, 0, 10},
		{[]string{"5"}, 0, 5},
		{[]string{"3-8"}, 2, 6},
		{[]string{"8-3"}, 0, 10},
		{[]string{"0"}, 0, 10},
		{[]string{"abc"}, 0, 10},
	}
	for _, tt := range tests {
		offset, limit := ParseRecentArgs(tt.args)
		assert.Equal(t, tt.offset, offset, "args %v", tt.args)
		assert.Equal(t, tt.limit, limit, "args %v", tt.args)
	}
}

func TestRecent(t *testing.T) {
	f := newCommandFixture(true)
	f.messages.msgs = []domain.Message{
		{ID: 3, Content: "third <b>", Source: "chan"},
		{ID: 2, Content: "second"},
		{ID: 1, Content: "first"},
	}

	r := f.run(t, "/recent", "2-3")

	assert.Equal(t, [2]int{1, 2}, f.messages.lastRecent)
	assert.Equal(t, []string{"second\n\n<i>— 未知</i>", "first\n\n<i>— 未知</i>"}, r.html)

	r = f.run(t, "/recent", "1")
	assert.Equal(t, []string{"third &lt;b&gt;\n\n<i>— chan</i>"}, r.html)
}

func TestRecent_LongMessageChunked(t *testing.T) {
	f := newCommandFixture(true)
	f.messages.msgs = []domain.Message{{Content: strings.Repeat("长", 9000), Source: "s"}}

	r := f.run(t, "/recent", "1")

	require.Len(t, r.html, 3)
	assert.Len(t, []rune(r.html[0]), maxReplyRunes)
}

func TestParseSearchArgs(t *testing.T) {
	kws, all := ParseSearchArgs([]string{"AND", "AI", "科技"})
	assert.Equal(t, []string{"AI", "科技"}, kws)
	assert.True(t, all)

	kws, all = ParseSearchArgs([]string{"or", "AI"})
	assert.Equal(t, []string{"AI"}, kws)
	assert.False(t, all)

	kws, all = ParseSearchArgs([]string{"AI", "and"})
	assert.Equal(t, []string{"AI", "and"}, kws)
	assert.False(t, all)
}

func TestHighlightKeywords(t *testing.T) {
	got := HighlightKeywords("OpenAI <release> of ai.js", []string{"ai", ".js"})
	assert.Equal(t, "Open<u><b>AI</b></u> &lt;release&gt; of <u><b>ai</b></u><u><b>.js</b></u>", got)
}

func TestSearch(t *testing.T) {
	f := newCommandFixture(true)
	r := f.run(t, "/search")
	assert.Equal(t, []string{searchUsage}, r.sent())

	r = f.run(t, "/search", "and")
	assert.Equal(t, []string{"❌ 请提供至少一个搜索关键词"}, r.sent())

	f.messages.msgs = []domain.Message{{
		ID: 7, Content: "gold hits record", Source: "markets", Category: domain.CategoryFinance,
		CreatedAt: time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC),
	}}
	r = f.run(t, "/search", "and", "Gold", "silver")

	assert.Equal(t, []string{"Gold", "silver"}, f.messages.lastSearch.keywords)
	assert.True(t, f.messages.lastSearch.matchAll)
	assert.Equal(t, SearchLimit, f.messages.lastSearch.limit)
	assert.Equal(t, "🔍 搜索中... 关键词: Gold, silver (且)", r.plain[0])
	assert.Equal(t, "📋 找到 1 条匹配消息：", r.plain[1])
	assert.Equal(t,
		"[finance] <b>#7</b>\n\n<i>📅 2026-02-10 08:00:00 | 来源: markets</i>\n\n━━━━━━━━━━━━━━━\n\n\n<u><b>gold</b></u> hits record",
		r.html[0])
}

func TestDedup(t *testing.T) {
	f := newCommandFixture(true)
	r := f.run(t, "/dedup")
	assert.Equal(t, []string{"📭 暂无 AI 去重记录"}, r.sent())

	f.dedup.todayCount = 4
	f.dedup.records = []domain.DedupRecord{{
		KeptContent: strings.Repeat("a", 200), KeptSource: "A",
		RemovedContent: "short", RemovedSource: "B",
		CreatedAt: commandNow,
	}}
	r = f.run(t, "/dedup", "99")

	assert.Equal(t, MaxDedupLimit, f.dedup.lastLimit)
	assert.Equal(t, "🔍 AI 事件去重记录（今日 4 条，显示最近 1 条）：", r.plain[0])
	assert.Contains(t, r.html[0], strings.Repeat("a", previewRunes)+"...")
	assert.Contains(t, r.html[0], "❌ <b>移除:</b> B\nshort\n\n")
	assert.Contains(t, r.html[0], "💡 <b>原因:</b> 未说明")
}

func TestFetch_ProgressAndResult(t *testing.T) {
	f := newCommandFixture(true)
	f.collector.report = usecase.CollectReport{Fetched: 10, Filtered: 6, Classified: 6, Saved: 6, Spam: 1, ToPublish: 5, Published: 5}
	f.collector.stages = []string{usecase.StageFetch, usecase.StageFilter, usecase.StageClassify, usecase.StageSave, usecase.StagePublish, usecase.StageDone}

	r := f.run(t, "/fetch")

	assert.Equal(t, FetchLimit, f.collector.limit)
	assert.True(t, f.collector.publish)
	assert.Equal(t, FormatProgress(0, "准备开始...", ""), r.html[0])
	assert.Contains(t, r.edits[0], "步骤: 1/6")
	assert.Contains(t, r.edits[1], "🔍 处理 10 条消息")
	assert.Equal(t, FormatFetchResult(f.collector.report), r.lastEdit())
	assert.Contains(t, r.lastEdit(), "📤 已发布: 5 条")
	assert.Contains(t, r.lastEdit(), "🗑️ 垃圾过滤: 1 条")
}

func TestFetch_ErrorEditsProgress(t *testing.T) {
	f := newCommandFixture(true)
	f.collector.err = errors.New("flood wait")

	r := f.run(t, "/fetch")

	assert.Equal(t, "❌ 执行失败: flood wait", r.lastEdit())
}

func TestFetch_NoCollector(t *testing.T) {
	f := newCommandFixture(true)
	f.set.deps.Collector = nil
	r := f.run(t, "/fetch")
	assert.Equal(t, []string{"⚠️ 频道抓取未配置，请稍后再试"}, r.sent())
}

func TestFormatFetchResult_EarlyExits(t *testing.T) {
	assert.Equal(t, "📭 本次抓取无新消息", FormatFetchResult(usecase.CollectReport{}))
	assert.Equal(t, "📭 过滤后无新消息（可能都是重复的）", FormatFetchResult(usecase.CollectReport{Fetched: 3}))
	assert.Equal(t, "📭 无有效消息需要发布\n（2 条被标记为垃圾）",
		FormatFetchResult(usecase.CollectReport{Fetched: 3, Filtered: 2, Classified: 2, Spam: 2}))
}

func TestFormatProgress(t *testing.T) {
	assert.Equal(t, "🔄 <b>抓取进度</b> █████░░░░░ 50%\n\n📍 正在保存\n💾 存储 3 条消息\n\n步骤: 3/6",
		FormatProgress(3, "正在保存", "💾 存储 3 条消息"))
}

func TestClear(t *testing.T) {
	f := newCommandFixture(true)
	f.messages.msgs = []domain.Message{{ID: 1}, {ID: 2}}

	r := f.run(t, "/clear")
	assert.Contains(t, r.sent()[0], "• 消息: 2 条\n• 总结: 0 条")

	r = f.run(t, "/clear", "ALL")
	assert.Equal(t, "✅ 已清除所有数据\n• 消息: 2 条\n• 总结: 0 条", r.sent()[0])

	r = f.run(t, "/clear", "2026-02-09")
	assert.Equal(t, "✅ 已清除 2026-02-09 的数据\n• 消息: 2 条\n• 总结: 1 条", r.sent()[0])
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), f.messages.clearedDay)

	r = f.run(t, "/clear", "before", "2026-02-01")
	assert.Equal(t, "✅ 已清除 2026-02-01 之前的数据\n• 消息: 5 条\n• 总结: 3 条", r.sent()[0])

	r = f.run(t, "/clear", "yesterday")
	assert.Equal(t, []string{clearUsageError}, r.sent())
	r = f.run(t, "/clear", "before", "2026-2-1")
	assert.Equal(t, []string{clearUsageError}, r.sent())

	assert.Equal(t, []string{"all", "date", "before"}, f.messages.clearedCalls)
}

func TestCommandErrorsAreReturned(t *testing.T) {
	f := newCommandFixture(true)
	f.messages.err = errors.New("disk full")

	err := f.set.Handlers()["/status"](context.Background(), nil, &mockReplier{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
