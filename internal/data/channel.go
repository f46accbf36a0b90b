package data

import (
	"context"
	"fmt"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/infra/telegram"
)

// ChannelClient is the part of the MTProto client the channel repository uses
type ChannelClient interface {
	History(ctx context.Context, channel string, limit int) ([]telegram.Post, error)
	OnPost(handler telegram.PostHandler)
}

// channelRepo implements the channel source repository
type channelRepo struct {
	client  ChannelClient
	sources []string
}

// NewChannelRepo creates a channel repository over a started client
func NewChannelRepo(client ChannelClient, sources []string) repo.ChannelRepo {
	return &channelRepo{client: client, sources: sources}
}

// Sources returns the configured source channels
func (r *channelRepo) Sources() []string {
	return r.sources
}

// FetchHistory fetches and converts the latest posts; empty posts are skipped
func (r *channelRepo) FetchHistory(ctx context.Context, channel string, limit int) ([]domain.Message, error) {
	posts, err := r.client.History(ctx, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	msgs := make([]domain.Message, 0, len(posts))
	for _, p := range posts {
		if m, ok := postToMessage(p); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

// Listen forwards live posts to handler until ctx is done
func (r *channelRepo) Listen(ctx context.Context, handler repo.MessageHandler) error {
	r.client.OnPost(func(ctx context.Context, p telegram.Post) {
		if m, ok := postToMessage(p); ok {
			handler(ctx, m)
		}
	})
	<-ctx.Done()
	r.client.OnPost(nil)
	return nil
}

func postToMessage(p telegram.Post) (domain.Message, bool) {
	if p.Text == "" {
		return domain.Message{}, false
	}
	return domain.Message{
		Source:    p.Channel,
		MessageID: int64(p.ID),
		Content:   p.Text,
		URL:       fmt.Sprintf("https://t.me/%s/%d", p.Channel, p.ID),
		Date:      p.Date,
		MediaPath: p.PhotoPath,
	}, true
}
