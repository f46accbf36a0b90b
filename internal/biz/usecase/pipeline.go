package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// FilterPipeline runs the filtering stages in fixed order:
// fingerprint dedup -> keyword -> quality -> semantic event dedup.
// Every stage only narrows the batch and keeps its order.
type FilterPipeline struct {
	messageRepo repo.MessageRepo
	rules       *RuleFilter
	dedup       *EventDedupUsecase // Optional, nil skips the semantic stage
	logger      *zap.Logger
}

// NewFilterPipeline creates a new filter pipeline
func NewFilterPipeline(messageRepo repo.MessageRepo, rules *RuleFilter, dedup *EventDedupUsecase, logger *zap.Logger) *FilterPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterPipeline{
		messageRepo: messageRepo,
		rules:       rules,
		dedup:       dedup,
		logger:      logger.Named("pipeline"),
	}
}

// Run filters a raw batch into the publishable set
func (p *FilterPipeline) Run(ctx context.Context, msgs []domain.Message) []domain.Message {
	before := len(msgs)

	result := p.dropKnown(ctx, msgs)
	p.logStage("fingerprint", len(msgs), len(result))

	n := len(result)
	result = p.rules.ApplyKeywords(ctx, result)
	p.logStage("keyword", n, len(result))

	n = len(result)
	result = p.rules.ApplyQuality(result)
	p.logStage("quality", n, len(result))

	if p.dedup != nil && len(result) >= 2 {
		n = len(result)
		result = p.dedup.Dedup(ctx, result)
		p.logStage("event_dedup", n, len(result))
	}

	p.logger.Info("filter pipeline done", zap.Int("before", before), zap.Int("after", len(result)))
	return result
}

// dropKnown removes messages whose fingerprint is already stored or was seen
// earlier in the batch. A failing lookup keeps the message; the store's
// uniqueness constraint still rejects it on save.
func (p *FilterPipeline) dropKnown(ctx context.Context, msgs []domain.Message) []domain.Message {
	seen := make(map[string]struct{}, len(msgs))
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		hash := Fingerprint(m.Content)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}

		if p.messageRepo != nil {
			exists, err := p.messageRepo.Exists(ctx, hash)
			if err != nil {
				p.logger.Warn("fingerprint lookup failed", zap.Error(err))
			} else if exists {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func (p *FilterPipeline) logStage(stage string, before, after int) {
	if removed := before - after; removed > 0 {
		p.logger.Debug("stage removed messages", zap.String("stage", stage), zap.Int("removed", removed))
	}
}
