package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// ErrNoChannelSource is returned when collection runs without a channel source
var ErrNoChannelSource = errors.New("channel source not configured")

// CollectConfig contains collection configuration
type CollectConfig struct {
	PublishInterval time.Duration // Pause between published messages
}

// DefaultCollectConfig returns default collection configuration
func DefaultCollectConfig() CollectConfig {
	return CollectConfig{PublishInterval: 3 * time.Second}
}

// Collection stages reported to progress callbacks
const (
	StageFetch    = "fetch"
	StageFilter   = "filter"
	StageClassify = "classify"
	StageSave     = "save"
	StagePublish  = "publish"
	StageDone     = "done"
)

// CollectReport counts what one collection run did
type CollectReport struct {
	RunID      string
	Stage      string
	Fetched    int
	Filtered   int
	Classified int
	Saved      int
	Spam       int
	ToPublish  int
	Published  int
}

// ProgressFunc observes a collection run
type ProgressFunc func(r CollectReport)

// CollectUsecase moves messages from source channels through the pipeline
// into the store and, optionally, the target channel
type CollectUsecase struct {
	channels    repo.ChannelRepo
	pipeline    *FilterPipeline
	classifier  *ClassifierUsecase
	messageRepo repo.MessageRepo
	publisher   repo.PublisherRepo // Optional
	config      CollectConfig
	logger      *zap.Logger
}

// NewCollectUsecase creates a new collect usecase
func NewCollectUsecase(
	channels repo.ChannelRepo,
	pipeline *FilterPipeline,
	classifier *ClassifierUsecase,
	messageRepo repo.MessageRepo,
	publisher repo.PublisherRepo,
	config CollectConfig,
	logger *zap.Logger,
) *CollectUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectUsecase{
		channels:    channels,
		pipeline:    pipeline,
		classifier:  classifier,
		messageRepo: messageRepo,
		publisher:   publisher,
		config:      config,
		logger:      logger.Named("collect"),
	}
}

// Collect fetches up to limit messages per source channel, filters, classifies
// and saves them. With publish set, non-spam messages go to the target channel.
func (uc *CollectUsecase) Collect(ctx context.Context, limit int, publish bool, progress ProgressFunc) (CollectReport, error) {
	report := CollectReport{RunID: uuid.NewString()}
	logger := uc.logger.With(zap.String("run_id", report.RunID))
	notify := func(stage string) {
		report.Stage = stage
		if progress != nil {
			progress(report)
		}
	}

	if uc.channels == nil {
		return report, ErrNoChannelSource
	}

	notify(StageFetch)
	var raw []domain.Message
	for _, ch := range uc.channels.Sources() {
		msgs, err := uc.channels.FetchHistory(ctx, ch, limit)
		if err != nil {
			logger.Error("fetch channel history failed", zap.String("channel", ch), zap.Error(err))
			continue
		}
		raw = append(raw, msgs...)
	}
	report.Fetched = len(raw)
	logger.Info("history fetched", zap.Int("count", len(raw)))
	if len(raw) == 0 {
		notify(StageDone)
		return report, nil
	}

	notify(StageFilter)
	filtered := uc.pipeline.Run(ctx, raw)
	report.Filtered = len(filtered)
	if len(filtered) == 0 {
		notify(StageDone)
		return report, nil
	}

	notify(StageClassify)
	classified := uc.classifier.ClassifyBatch(ctx, filtered)
	report.Classified = len(classified)

	notify(StageSave)
	saved, err := uc.messageRepo.SaveMany(ctx, classified)
	if err != nil {
		return report, fmt.Errorf("save messages: %w", err)
	}
	report.Saved = saved

	var valid []domain.Message
	for _, m := range classified {
		if !m.IsSpam() {
			valid = append(valid, m)
		}
	}
	report.Spam = len(classified) - len(valid)
	report.ToPublish = len(valid)

	if publish && uc.publisher != nil && len(valid) > 0 {
		notify(StagePublish)
		report.Published = uc.publishAll(ctx, valid, func(n int) {
			report.Published = n
			notify(StagePublish)
		})
	}

	notify(StageDone)
	logger.Info("collection done",
		zap.Int("fetched", report.Fetched),
		zap.Int("filtered", report.Filtered),
		zap.Int("saved", report.Saved),
		zap.Int("spam", report.Spam),
		zap.Int("published", report.Published))
	return report, nil
}

// HandleLive runs one pushed channel message through filter, classify and save
func (uc *CollectUsecase) HandleLive(ctx context.Context, msg domain.Message) {
	filtered := uc.pipeline.Run(ctx, []domain.Message{msg})
	if len(filtered) == 0 {
		return
	}
	classified := uc.classifier.ClassifyBatch(ctx, filtered)
	if _, err := uc.messageRepo.SaveMany(ctx, classified); err != nil {
		uc.logger.Error("save live message failed", zap.String("source", msg.Source), zap.Error(err))
		return
	}
	uc.logger.Info("live message stored",
		zap.String("source", msg.Source),
		zap.String("category", string(classified[0].Category)))
}

// Publish sends one message to the target channel, as a photo when it has one
func (uc *CollectUsecase) Publish(ctx context.Context, m domain.Message) error {
	text := FormatPublished(m)
	if m.HasMedia() {
		return uc.publisher.SendPhoto(ctx, m.MediaPath, text)
	}
	return uc.publisher.SendText(ctx, text)
}

func (uc *CollectUsecase) publishAll(ctx context.Context, msgs []domain.Message, onPublished func(n int)) int {
	published := 0
	for i, m := range msgs {
		if i > 0 && uc.config.PublishInterval > 0 {
			select {
			case <-ctx.Done():
				return published
			case <-time.After(uc.config.PublishInterval):
			}
		}
		if err := uc.Publish(ctx, m); err != nil {
			uc.logger.Error("publish message failed", zap.String("source", m.Source), zap.Error(err))
			continue
		}
		published++
		onPublished(published)
	}
	return published
}
