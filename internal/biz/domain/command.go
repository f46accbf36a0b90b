package domain

import (
	"strings"
	"time"
)

// CommandMarker prefixes explicit bot commands
const CommandMarker = "/"

// DefaultConfirmationTTL is how long a pending confirmation stays answerable
const DefaultConfirmationTTL = 60 * time.Second

// CommandDescriptor describes a bot command and the free-text phrases that suggest it
type CommandDescriptor struct {
	Command     string // e.g. "/fetch"
	Name        string
	Description string
	Keywords    []string
}

// DefaultCommands returns the command registry.
// Adding a command only requires a new entry here and a handler in the bot service.
func DefaultCommands() []CommandDescriptor {
	return []CommandDescriptor{
		{Command: "/start", Name: "开始", Description: "查看使用说明和所有命令",
			Keywords: []string{"怎么用", "使用说明", "有什么功能", "命令列表", "所有命令", "帮我看看命令"}},
		{Command: "/status", Name: "运行状态", Description: "查看机器人运行状态",
			Keywords: []string{"运行状态", "运行情况", "运行得怎么样", "机器人状态", "bot状态"}},
		{Command: "/today", Name: "今日统计", Description: "查看今日消息统计",
			Keywords: []string{"今日统计", "今天统计", "今天消息", "今日消息", "今天有多少", "今天抓了多少"}},
		{Command: "/digest", Name: "今日总结", Description: "生成今日整体总结",
			Keywords: []string{"生成总结", "今日总结", "今天总结", "做个总结", "帮我总结"}},
		{Command: "/summary", Name: "每日总结", Description: "查看最近一次每日总结",
			Keywords: []string{"每日总结", "日报", "上次总结", "之前的总结"}},
		{Command: "/recent", Name: "最近消息", Description: "查看最近采集的消息",
			Keywords: []string{"最近消息", "最新消息", "看看消息", "查看消息", "最近抓的"}},
		{Command: "/search", Name: "搜索", Description: "搜索历史消息",
			Keywords: []string{"搜索消息", "搜一下", "查找消息", "找一下", "帮我搜", "帮我找"}},
		{Command: "/dedup", Name: "去重记录", Description: "查看 AI 去重记录",
			Keywords: []string{"去重记录", "重复记录", "去重对比", "哪些重复"}},
		{Command: "/fetch", Name: "立即抓取", Description: "立即抓取、处理并发布消息",
			Keywords: []string{"今天新消息", "立即抓取", "马上抓取", "现在抓取", "手动抓取", "抓取一下", "更新消息", "刷新消息"}},
		{Command: "/clear", Name: "清除数据", Description: "清除历史数据",
			Keywords: []string{"清除数据", "清空数据", "删除数据", "清理数据", "清除历史", "清空历史"}},
	}
}

// IsCommandText checks if text is an explicit command
func IsCommandText(text string) bool {
	return strings.HasPrefix(text, CommandMarker)
}

// PendingConfirmation is a per-user command suggestion awaiting a yes/no
type PendingConfirmation struct {
	Commands  []CommandDescriptor
	Question  string
	CreatedAt time.Time
}

// IsExpired checks whether the confirmation can no longer be answered at now
func (p *PendingConfirmation) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) >= ttl
}

// ConfirmIntent is the three-way answer to a confirmation question
type ConfirmIntent string

const (
	IntentConfirm ConfirmIntent = "confirm"
	IntentDeny    ConfirmIntent = "deny"
	IntentUnknown ConfirmIntent = "unknown"
)

// ParseConfirmIntent maps raw model output to an intent.
// "confirm" wins over "deny" when both appear; anything else is unknown.
func ParseConfirmIntent(raw string) ConfirmIntent {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, string(IntentConfirm)):
		return IntentConfirm
	case strings.Contains(s, string(IntentDeny)):
		return IntentDeny
	default:
		return IntentUnknown
	}
}
