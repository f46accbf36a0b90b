package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

// ScheduledScrapeLimit is the per-channel history size of the cron scrape
const ScheduledScrapeLimit = 30

// Collector runs one collection pass
type Collector interface {
	Collect(ctx context.Context, limit int, publish bool, progress usecase.ProgressFunc) (usecase.CollectReport, error)
}

// DailySummarizer produces the daily summary
type DailySummarizer interface {
	RunDaily(ctx context.Context) (*domain.Summary, error)
}

// SchedulerConfig contains scheduler configuration
type SchedulerConfig struct {
	ScrapeCron  string // Standard 5-field cron spec, empty disables the job
	SummaryCron string
	Location    *time.Location
}

// Scheduler runs the periodic scrape and daily summary jobs
type Scheduler struct {
	collector  Collector
	summarizer DailySummarizer
	config     SchedulerConfig
	logger     *zap.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler
func NewScheduler(collector Collector, summarizer DailySummarizer, config SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	return &Scheduler{
		collector:  collector,
		summarizer: summarizer,
		config:     config,
		logger:     logger.Named("scheduler"),
	}
}

// Start registers the jobs and starts the cron loop.
// Jobs run with a context derived from ctx, cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New(cron.WithLocation(s.config.Location))
	if s.config.ScrapeCron != "" && s.collector != nil {
		if _, err := c.AddFunc(s.config.ScrapeCron, s.wrap("scrape", s.runScrape)); err != nil {
			return fmt.Errorf("invalid scrape schedule %q: %w", s.config.ScrapeCron, err)
		}
	}
	if s.config.SummaryCron != "" && s.summarizer != nil {
		if _, err := c.AddFunc(s.config.SummaryCron, s.wrap("summary", s.runSummary)); err != nil {
			return fmt.Errorf("invalid summary schedule %q: %w", s.config.SummaryCron, err)
		}
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = c
	c.Start()

	s.logger.Info("scheduler started",
		zap.String("scrape", s.config.ScrapeCron),
		zap.String("summary", s.config.SummaryCron),
		zap.String("timezone", s.config.Location.String()))
	return nil
}

// Stop stops scheduling and waits for running jobs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// wrap tags each run with an id and keeps job failures out of the cron loop
func (s *Scheduler) wrap(job string, run func(ctx context.Context, logger *zap.Logger) error) func() {
	return func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}

		logger := s.logger.With(zap.String("job", job), zap.String("run_id", uuid.NewString()))
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job panicked", zap.Any("panic", r))
			}
		}()

		logger.Info("job started")
		if err := run(ctx, logger); err != nil {
			logger.Error("job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
			return
		}
		logger.Info("job finished", zap.Duration("elapsed", time.Since(start)))
	}
}

// runScrape backfills messages the live listener may have missed.
// Scheduled scrapes store only; publishing happens through /fetch.
func (s *Scheduler) runScrape(ctx context.Context, logger *zap.Logger) error {
	report, err := s.collector.Collect(ctx, ScheduledScrapeLimit, false, nil)
	if err != nil {
		return err
	}
	logger.Info("scrape done",
		zap.String("collect_run_id", report.RunID),
		zap.Int("fetched", report.Fetched),
		zap.Int("saved", report.Saved))
	return nil
}

func (s *Scheduler) runSummary(ctx context.Context, logger *zap.Logger) error {
	summary, err := s.summarizer.RunDaily(ctx)
	if err != nil {
		return err
	}
	if summary == nil {
		logger.Info("no messages today, summary skipped")
		return nil
	}
	logger.Info("summary published", zap.String("date", summary.Date), zap.Int("messages", summary.MsgCount))
	return nil
}
