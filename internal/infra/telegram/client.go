package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// ErrNotStarted is returned when the client is used before Start succeeded
var ErrNotStarted = errors.New("telegram client not started")

// Config contains MTProto user client configuration
type Config struct {
	APIID       int
	APIHash     string
	Phone       string
	Password    string // Two-step verification password, optional
	SessionPath string
	MediaDir    string // Photo downloads; empty disables them
}

// Post is one channel post
type Post struct {
	Channel   string // Username the channel was resolved from
	ID        int
	Text      string
	Date      time.Time
	PhotoPath string
}

// PostHandler receives live channel posts
type PostHandler func(ctx context.Context, post Post)

// channelPeer is a resolved source channel
type channelPeer struct {
	username string
	input    *tg.InputPeerChannel
}

// Client is the MTProto user client reading source channels
type Client struct {
	config     Config
	client     *telegram.Client
	dispatcher tg.UpdateDispatcher
	downloader *downloader.Downloader
	logger     *zap.Logger

	mu       sync.RWMutex
	api      *tg.Client
	byName   map[string]channelPeer
	byID     map[int64]channelPeer
	onPost   PostHandler
	codeFunc func(ctx context.Context) (string, error)
}

// NewClient creates the user client; nothing connects until Start
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		config:     config,
		dispatcher: tg.NewUpdateDispatcher(),
		downloader: downloader.NewDownloader(),
		logger:     logger.Named("telegram"),
		byName:     make(map[string]channelPeer),
		byID:       make(map[int64]channelPeer),
		codeFunc:   readCodeFromStdin,
	}
	c.dispatcher.OnNewChannelMessage(c.handleNewChannelMessage)
	c.client = telegram.NewClient(config.APIID, config.APIHash, telegram.Options{
		Logger:         logger.Named("mtproto"),
		SessionStorage: &session.FileStorage{Path: config.SessionPath},
		UpdateHandler:  c.dispatcher,
	})
	return c
}

// OnPost registers the live post handler
func (c *Client) OnPost(handler PostHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPost = handler
}

// Start connects, authenticates if necessary and resolves channels.
// The connection stays up until ctx is cancelled; the returned channel
// yields the terminal error.
func (c *Client) Start(ctx context.Context, channels []string) (<-chan error, error) {
	if dir := filepath.Dir(c.config.SessionPath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}

	ready := make(chan error, 1)
	done := make(chan error, 1)
	go func() {
		err := c.client.Run(ctx, func(ctx context.Context) error {
			if err := c.authenticate(ctx); err != nil {
				return err
			}
			api := c.client.API()
			c.mu.Lock()
			c.api = api
			c.mu.Unlock()

			for _, name := range channels {
				if _, err := c.resolve(ctx, name); err != nil {
					c.logger.Warn("resolve channel failed", zap.String("channel", name), zap.Error(err))
				}
			}
			ready <- nil
			<-ctx.Done()
			return ctx.Err()
		})
		// Unblocks Start when Run fails before ready
		select {
		case ready <- err:
		default:
		}
		done <- err
	}()

	select {
	case err := <-ready:
		if err != nil {
			return nil, fmt.Errorf("telegram client: %w", err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.logger.Info("telegram client ready", zap.Int("channels", len(channels)))
	return done, nil
}

func (c *Client) authenticate(ctx context.Context) error {
	codeAuth := auth.CodeAuthenticatorFunc(func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
		return c.codeFunc(ctx)
	})
	flow := auth.NewFlow(auth.Constant(c.config.Phone, c.config.Password, codeAuth), auth.SendCodeOptions{})
	if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func readCodeFromStdin(ctx context.Context) (string, error) {
	fmt.Fprint(os.Stderr, "Enter the login code sent by Telegram: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read login code: %w", err)
	}
	return strings.TrimSpace(code), nil
}

func (c *Client) apiClient() (*tg.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.api == nil {
		return nil, ErrNotStarted
	}
	return c.api, nil
}

// normalizeUsername turns "@name", "t.me/name" or "https://t.me/name" into "name"
func normalizeUsername(channel string) string {
	s := strings.TrimSpace(channel)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "t.me/")
	s = strings.TrimPrefix(s, "@")
	return strings.TrimSuffix(s, "/")
}

func (c *Client) resolve(ctx context.Context, channel string) (channelPeer, error) {
	name := normalizeUsername(channel)

	c.mu.RLock()
	peer, ok := c.byName[name]
	c.mu.RUnlock()
	if ok {
		return peer, nil
	}

	api, err := c.apiClient()
	if err != nil {
		return channelPeer{}, err
	}
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: name})
	if err != nil {
		return channelPeer{}, fmt.Errorf("resolve username %s: %w", name, err)
	}
	for _, chat := range resolved.Chats {
		ch, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}
		peer = channelPeer{
			username: name,
			input:    &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
		}
		c.mu.Lock()
		c.byName[name] = peer
		c.byID[ch.ID] = peer
		c.mu.Unlock()
		return peer, nil
	}
	return channelPeer{}, fmt.Errorf("%s is not a channel", name)
}

// History returns the latest posts of a channel, newest first
func (c *Client) History(ctx context.Context, channel string, limit int) ([]Post, error) {
	peer, err := c.resolve(ctx, channel)
	if err != nil {
		return nil, err
	}
	api, err := c.apiClient()
	if err != nil {
		return nil, err
	}

	res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer.input,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get history of %s: %w", peer.username, err)
	}

	var raw []tg.MessageClass
	switch h := res.(type) {
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	case *tg.MessagesMessages:
		raw = h.Messages
	}

	posts := make([]Post, 0, len(raw))
	for _, m := range raw {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		posts = append(posts, c.toPost(ctx, api, peer.username, msg))
	}
	return posts, nil
}

func (c *Client) handleNewChannelMessage(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
	msg, ok := update.Message.(*tg.Message)
	if !ok || msg.Out {
		return nil
	}
	peerChannel, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil
	}

	c.mu.RLock()
	peer, watched := c.byID[peerChannel.ChannelID]
	handler := c.onPost
	api := c.api
	c.mu.RUnlock()
	if !watched || handler == nil || api == nil {
		return nil
	}

	handler(ctx, c.toPost(ctx, api, peer.username, msg))
	return nil
}

func (c *Client) toPost(ctx context.Context, api *tg.Client, channel string, msg *tg.Message) Post {
	post := Post{
		Channel: channel,
		ID:      msg.ID,
		Text:    msg.Message,
		Date:    time.Unix(int64(msg.Date), 0),
	}
	if media, ok := msg.Media.(*tg.MessageMediaPhoto); ok && c.config.MediaDir != "" {
		if path, err := c.downloadPhoto(ctx, api, channel, msg.ID, media); err != nil {
			c.logger.Warn("download photo failed", zap.String("channel", channel), zap.Int("id", msg.ID), zap.Error(err))
		} else {
			post.PhotoPath = path
		}
	}
	return post
}

func (c *Client) downloadPhoto(ctx context.Context, api *tg.Client, channel string, id int, media *tg.MessageMediaPhoto) (string, error) {
	photo, ok := media.Photo.(*tg.Photo)
	if !ok {
		return "", errors.New("photo unavailable")
	}
	thumb := largestSize(photo.Sizes)
	if thumb == "" {
		return "", errors.New("photo has no sizes")
	}

	if err := os.MkdirAll(c.config.MediaDir, 0755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}
	path := filepath.Join(c.config.MediaDir, fmt.Sprintf("%s_%d.jpg", channel, id))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	_, err := c.downloader.Download(api, &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     thumb,
	}).ToPath(ctx, path)
	if err != nil {
		return "", err
	}
	return path, nil
}

// largestSize picks the type of the biggest downloadable size; Telegram lists sizes ascending
func largestSize(sizes []tg.PhotoSizeClass) string {
	best := ""
	for _, s := range sizes {
		switch size := s.(type) {
		case *tg.PhotoSize:
			best = size.Type
		case *tg.PhotoSizeProgressive:
			best = size.Type
		}
	}
	return best
}
