package repo

import (
	"context"

	"github.com/devricklin/channel-curator/internal/biz/domain"
)

// MessageHandler receives live channel messages
type MessageHandler func(ctx context.Context, msg domain.Message)

// ChannelRepo is the channel source interface (MTProto user client)
type ChannelRepo interface {
	// Sources returns the configured source channels
	Sources() []string

	// FetchHistory fetches the latest messages of one channel
	FetchHistory(ctx context.Context, channel string, limit int) ([]domain.Message, error)

	// Listen pushes new source channel messages to handler until ctx is done
	Listen(ctx context.Context, handler MessageHandler) error
}
