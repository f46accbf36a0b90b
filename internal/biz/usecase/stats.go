package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// Stats is a point-in-time view of the store
type Stats struct {
	Date              string         `json:"date"`
	TodayMessages     int            `json:"today_messages"`
	TodayCategories   map[string]int `json:"today_categories"`
	TotalMessages     int            `json:"total_messages"`
	TodayDedup        int            `json:"today_dedup"`
	Summaries         int            `json:"summaries"`
	LatestSummaryDate string         `json:"latest_summary_date,omitempty"`
	SpamKeywords      int            `json:"spam_keywords"`
}

// StatsUsecase aggregates counts across the repositories
type StatsUsecase struct {
	messages  repo.MessageRepo
	dedup     repo.DedupRepo
	summaries repo.SummaryRepo
	keywords  repo.SpamKeywordRepo // Optional
	now       func() time.Time
}

// NewStatsUsecase creates a new stats usecase
func NewStatsUsecase(messages repo.MessageRepo, dedup repo.DedupRepo, summaries repo.SummaryRepo, keywords repo.SpamKeywordRepo) *StatsUsecase {
	return &StatsUsecase{
		messages:  messages,
		dedup:     dedup,
		summaries: summaries,
		keywords:  keywords,
		now:       time.Now,
	}
}

// WithClock replaces the time source; its location decides where a day starts
func (uc *StatsUsecase) WithClock(now func() time.Time) *StatsUsecase {
	uc.now = now
	return uc
}

// Daily returns today's counts plus store totals
func (uc *StatsUsecase) Daily(ctx context.Context) (*Stats, error) {
	now := uc.now()
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	today, err := uc.messages.ListByDate(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list today's messages: %w", err)
	}
	total, err := uc.messages.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	dedup, err := uc.dedup.CountSince(ctx, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("count dedup records: %w", err)
	}
	summaries, err := uc.summaries.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count summaries: %w", err)
	}

	stats := &Stats{
		Date:            DateKey(now),
		TodayMessages:   len(today),
		TodayCategories: make(map[string]int),
		TotalMessages:   total,
		TodayDedup:      dedup,
		Summaries:       summaries,
	}
	for _, msg := range today {
		cat := msg.Category
		if cat == "" {
			cat = domain.CategoryOther
		}
		stats.TodayCategories[string(cat)]++
	}

	latest, err := uc.summaries.Recent(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("get latest summary: %w", err)
	}
	if len(latest) > 0 {
		stats.LatestSummaryDate = latest[0].Date
	}

	if uc.keywords != nil {
		kws, err := uc.keywords.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list spam keywords: %w", err)
		}
		stats.SpamKeywords = len(kws)
	}
	return stats, nil
}
