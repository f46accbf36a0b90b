package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Server provides the local admin HTTP API over the store
type Server struct {
	messageRepo repo.MessageRepo
	dedupRepo   repo.DedupRepo
	keywordRepo repo.SpamKeywordRepo
	statsUC     *usecase.StatsUsecase
	logger      *zap.Logger

	server *http.Server
	port   int
}

// NewServer creates a new API server listening on 127.0.0.1:port
func NewServer(
	messageRepo repo.MessageRepo,
	dedupRepo repo.DedupRepo,
	keywordRepo repo.SpamKeywordRepo,
	statsUC *usecase.StatsUsecase,
	port int,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		messageRepo: messageRepo,
		dedupRepo:   dedupRepo,
		keywordRepo: keywordRepo,
		statsUC:     statsUC,
		logger:      logger.Named("api"),
		port:        port,
	}
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Messages
	mux.HandleFunc("/api/messages/recent", s.handleRecentMessages)
	mux.HandleFunc("/api/messages/search", s.handleSearchMessages)

	// Event dedup audit log
	mux.HandleFunc("/api/dedup", s.handleDedup)

	// Learned spam keywords
	mux.HandleFunc("/api/keywords", s.handleKeywords)

	mux.HandleFunc("/api/stats", s.handleStats)

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", strconv.Itoa(s.port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("admin API listening", zap.Int("port", s.port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin API: %w", err)
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

// ============ Message Handlers ============

// Message is the API view of a stored message
type Message struct {
	ID            int64     `json:"id"`
	Source        string    `json:"source"`
	Content       string    `json:"content"`
	URL           string    `json:"url,omitempty"`
	Category      string    `json:"category,omitempty"`
	CategoryLabel string    `json:"category_label,omitempty"`
	AIScore       float64   `json:"ai_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// ConvertMessages converts domain messages to API messages
func ConvertMessages(msgs []domain.Message) []Message {
	result := make([]Message, len(msgs))
	for i, m := range msgs {
		result[i] = Message{
			ID:            m.ID,
			Source:        m.Source,
			Content:       m.Content,
			URL:           m.URL,
			Category:      string(m.Category),
			CategoryLabel: m.CategoryLabel,
			AIScore:       m.AIScore,
			CreatedAt:     m.CreatedAt,
		}
	}
	return result
}

func (s *Server) handleRecentMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	msgs, err := s.messageRepo.Recent(r.Context(), offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"messages": ConvertMessages(msgs)})
}

func (s *Server) handleSearchMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	keywords := strings.Fields(q.Get("q"))
	if len(keywords) == 0 {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	var matchAll bool
	switch strings.ToLower(q.Get("mode")) {
	case "", "or":
	case "and":
		matchAll = true
	default:
		http.Error(w, "mode must be and or or", http.StatusBadRequest)
		return
	}

	msgs, err := s.messageRepo.Search(r.Context(), keywords, matchAll, parseLimit(q.Get("limit")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"keywords": keywords,
		"messages": ConvertMessages(msgs),
	})
}

// ============ Dedup Handlers ============

// DedupRecord is the API view of an event dedup audit record
type DedupRecord struct {
	ID             int64     `json:"id"`
	KeptContent    string    `json:"kept_content"`
	KeptSource     string    `json:"kept_source"`
	RemovedContent string    `json:"removed_content"`
	RemovedSource  string    `json:"removed_source"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConvertDedupRecords converts domain records to API records
func ConvertDedupRecords(records []domain.DedupRecord) []DedupRecord {
	result := make([]DedupRecord, len(records))
	for i, rec := range records {
		result[i] = DedupRecord(rec)
	}
	return result
}

func (s *Server) handleDedup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := s.dedupRepo.Recent(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"records": ConvertDedupRecords(records)})
}

// ============ Keyword Handlers ============

func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		keywords, err := s.keywordRepo.List(ctx)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if keywords == nil {
			keywords = []string{}
		}
		s.writeJSON(w, map[string]interface{}{"keywords": keywords})

	case http.MethodPost:
		var req struct {
			Keyword  string   `json:"keyword"`
			Keywords []string `json:"keywords"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		keywords := req.Keywords
		if req.Keyword != "" {
			keywords = append(keywords, req.Keyword)
		}
		if len(keywords) == 0 {
			http.Error(w, "keyword is required", http.StatusBadRequest)
			return
		}
		added, err := s.keywordRepo.Add(ctx, keywords)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.logger.Info("spam keywords added", zap.Int("added", added))
		s.writeJSON(w, map[string]interface{}{"success": true, "added": added})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ============ Stats Handlers ============

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.statsUC.Daily(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, stats)
}

// ============ Helpers ============

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
