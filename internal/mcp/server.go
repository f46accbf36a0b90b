package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Server exposes read-only store tools over MCP
type Server struct {
	server    *mcp.Server
	messages  repo.MessageRepo
	dedup     repo.DedupRepo
	summaries repo.SummaryRepo
	stats     *usecase.StatsUsecase
	logger    *zap.Logger
}

// NewServer creates a new curator MCP server
func NewServer(
	messages repo.MessageRepo,
	dedup repo.DedupRepo,
	summaries repo.SummaryRepo,
	stats *usecase.StatsUsecase,
	version string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "channel-curator",
			Version: version,
		}, nil),
		messages:  messages,
		dedup:     dedup,
		summaries: summaries,
		stats:     stats,
		logger:    logger.Named("mcp"),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recent_messages",
		Description: "List the most recently curated channel messages, newest first.",
	}, s.handleRecentMessages)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_messages",
		Description: "Search curated messages by keywords. Matches any keyword unless match_all is set.",
	}, s.handleSearchMessages)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dedup_records",
		Description: "List recent semantic dedup decisions: which message was kept, which was removed and why.",
	}, s.handleDedupRecords)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "daily_stats",
		Description: "Get today's message counts by category plus store totals.",
	}, s.handleDailyStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "latest_summary",
		Description: "Get the most recent daily summary (HTML).",
	}, s.handleLatestSummary)
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server running on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *Server) GetServer() *mcp.Server {
	return s.server
}

// Message is a curated message as seen by MCP clients
type Message struct {
	ID        int64   `json:"id"`
	Source    string  `json:"source"`
	Content   string  `json:"content"`
	URL       string  `json:"url,omitempty"`
	Category  string  `json:"category,omitempty"`
	Label     string  `json:"label,omitempty"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

func convertMessages(msgs []domain.Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{
			ID:        m.ID,
			Source:    m.Source,
			Content:   m.Content,
			URL:       m.URL,
			Category:  string(m.Category),
			Label:     m.CategoryLabel,
			Score:     m.AIScore,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		}
	}
	return out
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

// RecentMessagesInput pages through recent messages
type RecentMessagesInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"Maximum number of messages to return (default 20, max 100)"`
	Offset int `json:"offset,omitempty" jsonschema:"Number of newest messages to skip"`
}

// MessagesOutput contains messages
type MessagesOutput struct {
	Messages []Message `json:"messages"`
}

func (s *Server) handleRecentMessages(ctx context.Context, req *mcp.CallToolRequest, input RecentMessagesInput) (*mcp.CallToolResult, MessagesOutput, error) {
	msgs, err := s.messages.Recent(ctx, max(input.Offset, 0), clampLimit(input.Limit))
	if err != nil {
		return nil, MessagesOutput{}, fmt.Errorf("list recent messages: %w", err)
	}
	return nil, MessagesOutput{Messages: convertMessages(msgs)}, nil
}

// SearchMessagesInput is the input for search_messages
type SearchMessagesInput struct {
	Keywords []string `json:"keywords" jsonschema:"Keywords to look for in message content"`
	MatchAll bool     `json:"match_all,omitempty" jsonschema:"Require every keyword instead of any"`
	Limit    int      `json:"limit,omitempty" jsonschema:"Maximum number of messages to return (default 20, max 100)"`
}

func (s *Server) handleSearchMessages(ctx context.Context, req *mcp.CallToolRequest, input SearchMessagesInput) (*mcp.CallToolResult, MessagesOutput, error) {
	var keywords []string
	for _, kw := range input.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return nil, MessagesOutput{}, fmt.Errorf("at least one keyword is required")
	}

	msgs, err := s.messages.Search(ctx, keywords, input.MatchAll, clampLimit(input.Limit))
	if err != nil {
		return nil, MessagesOutput{}, fmt.Errorf("search messages: %w", err)
	}
	return nil, MessagesOutput{Messages: convertMessages(msgs)}, nil
}

// DedupRecordsInput is the input for dedup_records
type DedupRecordsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of records to return (default 20, max 100)"`
}

// DedupRecord is one dedup decision
type DedupRecord struct {
	KeptSource     string `json:"kept_source"`
	KeptContent    string `json:"kept_content"`
	RemovedSource  string `json:"removed_source"`
	RemovedContent string `json:"removed_content"`
	Reason         string `json:"reason"`
	CreatedAt      string `json:"created_at"`
}

// DedupRecordsOutput contains dedup records
type DedupRecordsOutput struct {
	Records []DedupRecord `json:"records"`
}

func (s *Server) handleDedupRecords(ctx context.Context, req *mcp.CallToolRequest, input DedupRecordsInput) (*mcp.CallToolResult, DedupRecordsOutput, error) {
	records, err := s.dedup.Recent(ctx, clampLimit(input.Limit))
	if err != nil {
		return nil, DedupRecordsOutput{}, fmt.Errorf("list dedup records: %w", err)
	}

	out := DedupRecordsOutput{Records: make([]DedupRecord, len(records))}
	for i, r := range records {
		out.Records[i] = DedupRecord{
			KeptSource:     r.KeptSource,
			KeptContent:    r.KeptContent,
			RemovedSource:  r.RemovedSource,
			RemovedContent: r.RemovedContent,
			Reason:         r.Reason,
			CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// EmptyInput is used by tools without arguments
type EmptyInput struct{}

func (s *Server) handleDailyStats(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, usecase.Stats, error) {
	stats, err := s.stats.Daily(ctx)
	if err != nil {
		return nil, usecase.Stats{}, err
	}
	return nil, *stats, nil
}

// LatestSummaryOutput is the most recent daily summary
type LatestSummaryOutput struct {
	Found       bool           `json:"found"`
	Date        string         `json:"date,omitempty"`
	ContentHTML string         `json:"content_html,omitempty"`
	MsgCount    int            `json:"msg_count,omitempty"`
	Categories  map[string]int `json:"categories,omitempty"`
}

func (s *Server) handleLatestSummary(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, LatestSummaryOutput, error) {
	recent, err := s.summaries.Recent(ctx, 1)
	if err != nil {
		return nil, LatestSummaryOutput{}, fmt.Errorf("get latest summary: %w", err)
	}
	if len(recent) == 0 {
		return nil, LatestSummaryOutput{Found: false}, nil
	}

	sum := recent[0]
	return nil, LatestSummaryOutput{
		Found:       true,
		Date:        sum.Date,
		ContentHTML: sum.Content,
		MsgCount:    sum.MsgCount,
		Categories:  sum.Categories,
	}, nil
}
