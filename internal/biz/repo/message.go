package repo

import (
	"context"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
)

// MessageRepo is the message repository interface
// Responsible for message persistence (SQLite), keyed by content fingerprint
type MessageRepo interface {
	// Exists reports whether a message with the fingerprint is already stored
	Exists(ctx context.Context, contentHash string) (bool, error)

	// SaveMany stores messages; colliding fingerprints are silently ignored
	// Returns the number of rows actually inserted
	SaveMany(ctx context.Context, msgs []domain.Message) (int, error)

	// GetByID gets a message by row id, nil if not found
	GetByID(ctx context.Context, id int64) (*domain.Message, error)

	// Recent lists messages newest first
	Recent(ctx context.Context, offset, limit int) ([]domain.Message, error)

	// Search finds messages containing any (or all, if matchAll) of the keywords
	Search(ctx context.Context, keywords []string, matchAll bool, limit int) ([]domain.Message, error)

	// ListByDate lists messages stored on the given day, oldest first
	ListByDate(ctx context.Context, day time.Time) ([]domain.Message, error)

	// CountByDate counts messages stored on the given day
	CountByDate(ctx context.Context, day time.Time) (int, error)

	// CountAll counts all messages
	CountAll(ctx context.Context) (int, error)

	// ClearAll deletes all messages
	ClearAll(ctx context.Context) (int64, error)

	// ClearByDate deletes messages stored on the given day
	ClearByDate(ctx context.Context, day time.Time) (int64, error)

	// ClearBefore deletes messages stored before the given day
	ClearBefore(ctx context.Context, day time.Time) (int64, error)
}
