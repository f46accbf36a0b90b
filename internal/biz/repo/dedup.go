package repo

import (
	"context"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
)

// DedupRepo is the append-only audit log of event deduplication
type DedupRepo interface {
	// SaveMany appends records
	SaveMany(ctx context.Context, records []domain.DedupRecord) error

	// Recent lists records newest first
	Recent(ctx context.Context, limit int) ([]domain.DedupRecord, error)

	// CountSince counts records created at or after since
	CountSince(ctx context.Context, since time.Time) (int, error)
}
