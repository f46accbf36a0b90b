package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

const (
	summarySeparator = "───────────────"
	spamJoiner       = "\n---\n"
)

// SummaryUsecase builds, stores and publishes the daily summary.
// Spam is hidden from the summary but feeds the learned keyword list.
type SummaryUsecase struct {
	llm         repo.LLMRepo
	messageRepo repo.MessageRepo
	summaryRepo repo.SummaryRepo
	keywords    repo.SpamKeywordRepo
	publisher   repo.PublisherRepo // Optional
	prompts     Prompts
	now         func() time.Time
	logger      *zap.Logger
}

// NewSummaryUsecase creates a new summary usecase
func NewSummaryUsecase(
	llm repo.LLMRepo,
	messageRepo repo.MessageRepo,
	summaryRepo repo.SummaryRepo,
	keywords repo.SpamKeywordRepo,
	publisher repo.PublisherRepo,
	prompts Prompts,
	logger *zap.Logger,
) *SummaryUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryUsecase{
		llm:         llm,
		messageRepo: messageRepo,
		summaryRepo: summaryRepo,
		keywords:    keywords,
		publisher:   publisher,
		prompts:     prompts.withDefaults(),
		now:         time.Now,
		logger:      logger.Named("summary"),
	}
}

// WithClock replaces the time source (tests)
func (uc *SummaryUsecase) WithClock(now func() time.Time) *SummaryUsecase {
	uc.now = now
	return uc
}

// RunDaily summarizes today's messages, saves and publishes the result.
// Returns nil summary when there is nothing to summarize.
func (uc *SummaryUsecase) RunDaily(ctx context.Context) (*domain.Summary, error) {
	today := uc.now()
	msgs, err := uc.messageRepo.ListByDate(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list today's messages: %w", err)
	}
	if len(msgs) == 0 {
		uc.logger.Info("no messages today, skipping summary")
		return nil, nil
	}

	content := uc.Generate(ctx, today, msgs)
	counts := make(map[string]int)
	for _, m := range msgs {
		cat := string(m.Category)
		if cat == "" {
			cat = string(domain.CategoryOther)
		}
		counts[cat]++
	}

	summary := &domain.Summary{
		Date:       DateKey(today),
		Content:    content,
		Categories: counts,
		MsgCount:   len(msgs),
	}
	if err := uc.summaryRepo.Save(ctx, summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}

	if uc.publisher != nil {
		title := fmt.Sprintf("%s 信息总结", summary.Date)
		if err := uc.publisher.SendReport(ctx, title, content); err != nil {
			uc.logger.Error("publish daily summary failed", zap.Error(err))
		}
	}
	uc.logger.Info("daily summary done", zap.String("date", summary.Date), zap.Int("messages", len(msgs)))
	return summary, nil
}

// Generate renders the HTML summary for messages of day
func (uc *SummaryUsecase) Generate(ctx context.Context, day time.Time, msgs []domain.Message) string {
	if len(msgs) == 0 {
		return "📭 今日无新消息。"
	}

	var order []domain.Category
	grouped := make(map[domain.Category][]domain.Message)
	for _, m := range msgs {
		cat := m.Category
		if cat == "" {
			cat = domain.CategoryOther
		}
		if _, ok := grouped[cat]; !ok {
			order = append(order, cat)
		}
		grouped[cat] = append(grouped[cat], m)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s 信息总结</b>\n\n", DateKey(day))

	for _, cat := range order {
		group := grouped[cat]
		if cat == domain.CategorySpam {
			uc.logger.Info("skipping spam in summary", zap.Int("count", len(group)))
			if _, err := uc.LearnSpamKeywords(ctx, group); err != nil {
				uc.logger.Warn("learn spam keywords failed", zap.Error(err))
			}
			continue
		}

		label := group[0].CategoryLabel
		if label == "" {
			label = string(cat)
		}
		fmt.Fprintf(&b, "\n<b>%s %s</b>\n\n", cat.Emoji(), EscapeHTML(label))

		for i, m := range group {
			b.WriteString(EscapeHTML(RemoveTrailingURL(strings.TrimSpace(m.Content))))
			b.WriteString("\n\n")
			fmt.Fprintf(&b, "<i>— %s</i>\n\n", EscapeHTML(m.SourceOrUnknown()))
			if i < len(group)-1 {
				b.WriteString(summarySeparator + "\n\n")
			}
		}

		if recap, err := uc.categoryRecap(ctx, label, group); err == nil && recap != "" {
			fmt.Fprintf(&b, "\n🟢 <b>小结：%s</b>\n\n\n", EscapeHTML(recap))
		} else {
			uc.logger.Warn("category recap failed", zap.String("category", string(cat)), zap.Error(err))
			fmt.Fprintf(&b, "\n🟢 <b>小结：共 %d 条相关消息</b>\n\n\n", len(group))
		}
	}
	return b.String()
}

func (uc *SummaryUsecase) categoryRecap(ctx context.Context, label string, group []domain.Message) (string, error) {
	return uc.llm.Complete(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: uc.prompts.CategorySummary},
		{Role: domain.RoleUser, Content: fmt.Sprintf("以下是【%s】分类的消息：\n\n%s", label, joinContents(group))},
	}, repo.CompleteOptions{Temperature: 0.5, MaxTokens: 200})
}

// LearnSpamKeywords asks the model for keywords characterizing spam and adds them
// to the learned exclude list. Returns how many were new.
func (uc *SummaryUsecase) LearnSpamKeywords(ctx context.Context, spam []domain.Message) (int, error) {
	if len(spam) == 0 || uc.keywords == nil {
		return 0, nil
	}
	reply, err := uc.llm.Complete(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: uc.prompts.SpamKeywords},
		{Role: domain.RoleUser, Content: "以下是被标记为垃圾信息的消息：\n\n" + joinContents(spam)},
	}, repo.CompleteOptions{Temperature: 0.3, MaxTokens: 100})
	if err != nil {
		return 0, fmt.Errorf("extract spam keywords: %w", err)
	}

	keywords := SplitKeywords(reply)
	if len(keywords) == 0 {
		return 0, nil
	}
	added, err := uc.keywords.Add(ctx, keywords)
	if err != nil {
		return 0, fmt.Errorf("store spam keywords: %w", err)
	}
	uc.logger.Info("learned spam keywords", zap.Strings("keywords", keywords), zap.Int("added", added))
	return added, nil
}

// SplitKeywords splits a comma separated list (ASCII or full-width commas), dropping blanks
func SplitKeywords(s string) []string {
	s = strings.ReplaceAll(s, "，", ",")
	var out []string
	for _, part := range strings.Split(s, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func joinContents(msgs []domain.Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, spamJoiner)
}
