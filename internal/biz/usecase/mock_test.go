package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// Mock implementations

type llmCall struct {
	messages []domain.ChatMessage
	opts     repo.CompleteOptions
}

type mockLLMRepo struct {
	mu      sync.Mutex
	replies []string // Returned in order; the last one repeats
	err     error
	calls   []llmCall
}

func (m *mockLLMRepo) Complete(ctx context.Context, messages []domain.ChatMessage, opts repo.CompleteOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, llmCall{messages: messages, opts: opts})
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	idx := len(m.calls) - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	return m.replies[idx], nil
}

func (m *mockLLMRepo) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockMessageRepo struct {
	hashes  map[string]bool
	saved   []domain.Message
	byDate  []domain.Message
	saveErr error
	exErr   error
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{hashes: make(map[string]bool)}
}

func (m *mockMessageRepo) Exists(ctx context.Context, contentHash string) (bool, error) {
	if m.exErr != nil {
		return false, m.exErr
	}
	return m.hashes[contentHash], nil
}

func (m *mockMessageRepo) SaveMany(ctx context.Context, msgs []domain.Message) (int, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	n := 0
	for _, msg := range msgs {
		h := Fingerprint(msg.Content)
		if m.hashes[h] {
			continue
		}
		m.hashes[h] = true
		m.saved = append(m.saved, msg)
		n++
	}
	return n, nil
}

func (m *mockMessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	return nil, nil
}

func (m *mockMessageRepo) Recent(ctx context.Context, offset, limit int) ([]domain.Message, error) {
	return m.saved, nil
}

func (m *mockMessageRepo) Search(ctx context.Context, keywords []string, matchAll bool, limit int) ([]domain.Message, error) {
	return nil, nil
}

func (m *mockMessageRepo) ListByDate(ctx context.Context, day time.Time) ([]domain.Message, error) {
	return m.byDate, nil
}

func (m *mockMessageRepo) CountByDate(ctx context.Context, day time.Time) (int, error) {
	return len(m.byDate), nil
}

func (m *mockMessageRepo) CountAll(ctx context.Context) (int, error) {
	return len(m.saved), nil
}

func (m *mockMessageRepo) ClearAll(ctx context.Context) (int64, error)                   { return 0, nil }
func (m *mockMessageRepo) ClearByDate(ctx context.Context, day time.Time) (int64, error) { return 0, nil }
func (m *mockMessageRepo) ClearBefore(ctx context.Context, day time.Time) (int64, error) { return 0, nil }

type mockDedupRepo struct {
	records []domain.DedupRecord
	err     error
}

func (m *mockDedupRepo) SaveMany(ctx context.Context, records []domain.DedupRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *mockDedupRepo) Recent(ctx context.Context, limit int) ([]domain.DedupRecord, error) {
	return m.records, nil
}

func (m *mockDedupRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	return len(m.records), nil
}

type mockKeywordRepo struct {
	keywords []string
	err      error
}

func (m *mockKeywordRepo) List(ctx context.Context) ([]string, error) {
	return m.keywords, m.err
}

func (m *mockKeywordRepo) Add(ctx context.Context, keywords []string) (int, error) {
	added := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		dup := false
		for _, existing := range m.keywords {
			if existing == kw {
				dup = true
				break
			}
		}
		if !dup && kw != "" {
			m.keywords = append(m.keywords, kw)
			added++
		}
	}
	return added, nil
}

type mockSummaryRepo struct {
	saved []domain.Summary
}

func (m *mockSummaryRepo) Save(ctx context.Context, s *domain.Summary) error {
	m.saved = append(m.saved, *s)
	return nil
}

func (m *mockSummaryRepo) Recent(ctx context.Context, limit int) ([]domain.Summary, error) {
	return m.saved, nil
}

func (m *mockSummaryRepo) CountAll(ctx context.Context) (int, error)                     { return len(m.saved), nil }
func (m *mockSummaryRepo) ClearAll(ctx context.Context) (int64, error)                   { return 0, nil }
func (m *mockSummaryRepo) ClearByDate(ctx context.Context, day time.Time) (int64, error) { return 0, nil }
func (m *mockSummaryRepo) ClearBefore(ctx context.Context, day time.Time) (int64, error) { return 0, nil }

type mockPublisher struct {
	texts  []string
	titles []string
	photos []string
	err    error
}

func (m *mockPublisher) SendText(ctx context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockPublisher) SendReport(ctx context.Context, title, text string) error {
	if m.err != nil {
		return m.err
	}
	m.titles = append(m.titles, title)
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockPublisher) SendPhoto(ctx context.Context, path, caption string) error {
	if m.err != nil {
		return m.err
	}
	m.photos = append(m.photos, path)
	return nil
}

type mockChannelRepo struct {
	history map[string][]domain.Message
	errs    map[string]error
	order   []string
}

func (m *mockChannelRepo) Sources() []string {
	return m.order
}

func (m *mockChannelRepo) FetchHistory(ctx context.Context, channel string, limit int) ([]domain.Message, error) {
	if err := m.errs[channel]; err != nil {
		return nil, err
	}
	return m.history[channel], nil
}

func (m *mockChannelRepo) Listen(ctx context.Context, handler repo.MessageHandler) error {
	<-ctx.Done()
	return nil
}

func msgs(contents ...string) []domain.Message {
	out := make([]domain.Message, len(contents))
	for i, c := range contents {
		out[i] = domain.Message{Source: "src", Content: c}
	}
	return out
}

func contents(ms []domain.Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Content
	}
	return out
}
