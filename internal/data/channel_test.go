package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/infra/telegram"
)

type fakeChannelClient struct {
	posts   map[string][]telegram.Post
	err     error
	handler telegram.PostHandler
	ready   chan struct{}
}

func (f *fakeChannelClient) History(ctx context.Context, channel string, limit int) ([]telegram.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.posts[channel], nil
}

func (f *fakeChannelClient) OnPost(handler telegram.PostHandler) {
	f.handler = handler
	if handler != nil && f.ready != nil {
		close(f.ready)
	}
}

func TestChannelRepo_FetchHistory(t *testing.T) {
	date := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	client := &fakeChannelClient{posts: map[string][]telegram.Post{
		"news": {
			{Channel: "news", ID: 7, Text: "hello", Date: date, PhotoPath: "/media/news_7.jpg"},
			{Channel: "news", ID: 8},
		},
	}}
	r := NewChannelRepo(client, []string{"news"})

	msgs, err := r.FetchHistory(context.Background(), "news", 10)

	require.NoError(t, err)
	assert.Equal(t, []string{"news"}, r.Sources())
	assert.Equal(t, []domain.Message{{
		Source:    "news",
		MessageID: 7,
		Content:   "hello",
		URL:       "https://t.me/news/7",
		Date:      date,
		MediaPath: "/media/news_7.jpg",
	}}, msgs)
}

func TestChannelRepo_FetchHistoryError(t *testing.T) {
	r := NewChannelRepo(&fakeChannelClient{err: errors.New("FLOOD_WAIT")}, nil)

	_, err := r.FetchHistory(context.Background(), "news", 10)

	assert.Error(t, err)
}

func TestChannelRepo_Listen(t *testing.T) {
	client := &fakeChannelClient{ready: make(chan struct{})}
	r := NewChannelRepo(client, []string{"news"})
	ctx, cancel := context.WithCancel(context.Background())

	received := make(chan domain.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- r.Listen(ctx, func(ctx context.Context, m domain.Message) { received <- m })
	}()

	<-client.ready
	client.handler(ctx, telegram.Post{Channel: "news", ID: 1, Text: "live"})
	client.handler(ctx, telegram.Post{Channel: "news", ID: 2})

	m := <-received
	assert.Equal(t, "live", m.Content)
	cancel()
	assert.NoError(t, <-done)
	assert.Nil(t, client.handler)
}
