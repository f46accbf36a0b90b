package repo

import (
	"context"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
)

// SummaryRepo stores daily summaries, one per date
type SummaryRepo interface {
	// Save creates or replaces the summary for its date
	Save(ctx context.Context, s *domain.Summary) error

	// Recent lists summaries, latest date first
	Recent(ctx context.Context, limit int) ([]domain.Summary, error)

	CountAll(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) (int64, error)
	ClearByDate(ctx context.Context, day time.Time) (int64, error)
	ClearBefore(ctx context.Context, day time.Time) (int64, error)
}
