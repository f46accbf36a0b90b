package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

// Mock implementations

type mockReplier struct {
	mu      sync.Mutex
	plain   []string
	html    []string
	edits   []string
	all     []string // Every sent text in order, edits excluded
	failAll error
}

func (m *mockReplier) Reply(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.plain = append(m.plain, text)
	m.all = append(m.all, text)
	return nil
}

func (m *mockReplier) ReplyHTML(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.html = append(m.html, text)
	m.all = append(m.all, text)
	return nil
}

func (m *mockReplier) ReplyEditable(ctx context.Context, text string) (EditFunc, error) {
	if err := m.ReplyHTML(ctx, text); err != nil {
		return nil, err
	}
	return func(ctx context.Context, text string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.edits = append(m.edits, text)
		return nil
	}, nil
}

func (m *mockReplier) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.all...)
}

func (m *mockReplier) lastEdit() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) == 0 {
		return ""
	}
	return m.edits[len(m.edits)-1]
}

type mockLLMRepo struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (m *mockLLMRepo) Complete(ctx context.Context, messages []domain.ChatMessage, opts repo.CompleteOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.calls
	m.calls++
	if len(m.replies) == 0 {
		return "", nil
	}
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	return m.replies[idx], nil
}

type mockMessageRepo struct {
	msgs       []domain.Message // Newest first
	today      []domain.Message
	lastSearch struct {
		keywords []string
		matchAll bool
		limit    int
	}
	lastRecent   [2]int
	clearedDay   time.Time
	clearedCalls []string
	err          error
}

func (m *mockMessageRepo) Exists(ctx context.Context, contentHash string) (bool, error) {
	return false, m.err
}

func (m *mockMessageRepo) SaveMany(ctx context.Context, msgs []domain.Message) (int, error) {
	return len(msgs), m.err
}

func (m *mockMessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	for i := range m.msgs {
		if m.msgs[i].ID == id {
			return &m.msgs[i], nil
		}
	}
	return nil, m.err
}

func (m *mockMessageRepo) Recent(ctx context.Context, offset, limit int) ([]domain.Message, error) {
	m.lastRecent = [2]int{offset, limit}
	if m.err != nil {
		return nil, m.err
	}
	if offset >= len(m.msgs) {
		return nil, nil
	}
	end := min(offset+limit, len(m.msgs))
	return m.msgs[offset:end], nil
}

func (m *mockMessageRepo) Search(ctx context.Context, keywords []string, matchAll bool, limit int) ([]domain.Message, error) {
	m.lastSearch.keywords = keywords
	m.lastSearch.matchAll = matchAll
	m.lastSearch.limit = limit
	var out []domain.Message
	for _, msg := range m.msgs {
		for _, kw := range keywords {
			if strings.Contains(strings.ToLower(msg.Content), strings.ToLower(kw)) {
				out = append(out, msg)
				break
			}
		}
	}
	return out, m.err
}

func (m *mockMessageRepo) ListByDate(ctx context.Context, day time.Time) ([]domain.Message, error) {
	return m.today, m.err
}

func (m *mockMessageRepo) CountByDate(ctx context.Context, day time.Time) (int, error) {
	return len(m.today), m.err
}

func (m *mockMessageRepo) CountAll(ctx context.Context) (int, error) {
	return len(m.msgs), m.err
}

func (m *mockMessageRepo) ClearAll(ctx context.Context) (int64, error) {
	m.clearedCalls = append(m.clearedCalls, "all")
	return int64(len(m.msgs)), m.err
}

func (m *mockMessageRepo) ClearByDate(ctx context.Context, day time.Time) (int64, error) {
	m.clearedCalls = append(m.clearedCalls, "date")
	m.clearedDay = day
	return 2, m.err
}

func (m *mockMessageRepo) ClearBefore(ctx context.Context, day time.Time) (int64, error) {
	m.clearedCalls = append(m.clearedCalls, "before")
	m.clearedDay = day
	return 5, m.err
}

type mockSummaryRepo struct {
	summaries []domain.Summary
}

func (m *mockSummaryRepo) Save(ctx context.Context, s *domain.Summary) error {
	m.summaries = append([]domain.Summary{*s}, m.summaries...)
	return nil
}

func (m *mockSummaryRepo) Recent(ctx context.Context, limit int) ([]domain.Summary, error) {
	return m.summaries[:min(limit, len(m.summaries))], nil
}

func (m *mockSummaryRepo) CountAll(ctx context.Context) (int, error) {
	return len(m.summaries), nil
}

func (m *mockSummaryRepo) ClearAll(ctx context.Context) (int64, error) {
	return int64(len(m.summaries)), nil
}

func (m *mockSummaryRepo) ClearByDate(ctx context.Context, day time.Time) (int64, error) {
	return 1, nil
}

func (m *mockSummaryRepo) ClearBefore(ctx context.Context, day time.Time) (int64, error) {
	return 3, nil
}

type mockDedupRepo struct {
	records    []domain.DedupRecord
	todayCount int
	lastLimit  int
}

func (m *mockDedupRepo) SaveMany(ctx context.Context, records []domain.DedupRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func (m *mockDedupRepo) Recent(ctx context.Context, limit int) ([]domain.DedupRecord, error) {
	m.lastLimit = limit
	return m.records[:min(limit, len(m.records))], nil
}

func (m *mockDedupRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	return m.todayCount, nil
}

type mockCollector struct {
	mu      sync.Mutex
	report  usecase.CollectReport
	stages  []string // Emitted to the progress callback in order
	err     error
	calls   int
	limit   int
	publish bool
	block   chan struct{} // When set, Collect waits on it
}

func (m *mockCollector) Collect(ctx context.Context, limit int, publish bool, progress usecase.ProgressFunc) (usecase.CollectReport, error) {
	m.mu.Lock()
	m.calls++
	m.limit = limit
	m.publish = publish
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return m.report, ctx.Err()
		}
	}
	rep := m.report
	for _, stage := range m.stages {
		rep.Stage = stage
		if progress != nil {
			progress(rep)
		}
	}
	return m.report, m.err
}

func (m *mockCollector) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockDigester struct {
	text string
	err  error
	got  []domain.Message
}

func (m *mockDigester) Generate(ctx context.Context, msgs []domain.Message) (string, error) {
	m.got = msgs
	return m.text, m.err
}

type mockSummarizer struct {
	mu      sync.Mutex
	summary *domain.Summary
	err     error
	calls   int
}

func (m *mockSummarizer) RunDaily(ctx context.Context) (*domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.summary, m.err
}
