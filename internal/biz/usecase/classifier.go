package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// ClassifierConfig contains classifier configuration
type ClassifierConfig struct {
	Interval      time.Duration // Minimum spacing between model calls in a batch
	MaxAttempts   int
	MinConfidence float64 // Results below this fall back to the default; 0 disables
}

// DefaultClassifierConfig returns default classifier configuration
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Interval:    500 * time.Millisecond,
		MaxAttempts: 2,
	}
}

// ClassifierUsecase assigns a category to messages through the model
type ClassifierUsecase struct {
	llm     repo.LLMRepo
	prompts Prompts
	config  ClassifierConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClassifierUsecase creates a new classifier usecase
func NewClassifierUsecase(llm repo.LLMRepo, prompts Prompts, config ClassifierConfig, logger *zap.Logger) *ClassifierUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if config.Interval > 0 {
		limit = rate.Every(config.Interval)
	}
	return &ClassifierUsecase{
		llm:     llm,
		prompts: prompts.withDefaults(),
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("classifier"),
	}
}

// Classify categorizes one text. It never fails: any transport or parse
// problem yields domain.DefaultClassification().
func (uc *ClassifierUsecase) Classify(ctx context.Context, text string) domain.Classification {
	reply, err := uc.llm.Complete(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: uc.prompts.Classify},
		{Role: domain.RoleUser, Content: text},
	}, repo.CompleteOptions{
		Temperature: 0.1,
		MaxTokens:   200,
		MaxAttempts: uc.config.MaxAttempts,
	})
	if err != nil {
		uc.logger.Error("classify failed, using default", zap.Error(err))
		return domain.DefaultClassification()
	}

	parsed := ExtractJSON(reply)
	if parsed == nil {
		uc.logger.Warn("classifier reply is not JSON, using default", zap.String("reply", reply))
		return domain.DefaultClassification()
	}
	return uc.resolve(parsed)
}

func (uc *ClassifierUsecase) resolve(parsed map[string]any) domain.Classification {
	result := domain.DefaultClassification()

	if cat := jsonString(parsed, "category"); cat != "" {
		c := domain.Category(cat)
		if !c.IsValid() {
			uc.logger.Warn("classifier returned unknown category", zap.String("category", cat))
			return domain.DefaultClassification()
		}
		result.Category = c
	}
	if label := jsonString(parsed, "label"); label != "" {
		result.Label = label
	}
	if conf, ok := parsed["confidence"].(float64); ok {
		result.Confidence = min(max(conf, 0), 1)
	}

	if uc.config.MinConfidence > 0 && result.Confidence < uc.config.MinConfidence {
		return domain.DefaultClassification()
	}
	return result
}

// ClassifyBatch classifies messages sequentially under the rate limiter.
// Output order and length always match the input.
func (uc *ClassifierUsecase) ClassifyBatch(ctx context.Context, msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if err := uc.limiter.Wait(ctx); err != nil {
			uc.logger.Debug("rate limiter wait aborted", zap.Error(err))
		}
		out = append(out, m.WithClassification(uc.Classify(ctx, m.Content)))
	}
	uc.logger.Info("batch classified", zap.Int("count", len(out)))
	return out
}
