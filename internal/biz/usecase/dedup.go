package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// EventDedupConfig contains semantic event deduplication configuration
type EventDedupConfig struct {
	MaxContentChars int // Per-message truncation in the prompt
	MaxAttempts     int
}

// DefaultEventDedupConfig returns default deduplication configuration
func DefaultEventDedupConfig() EventDedupConfig {
	return EventDedupConfig{
		MaxContentChars: 500,
		MaxAttempts:     2,
	}
}

// EventDedupUsecase collapses messages describing the same real-world event.
// One model call per batch; best effort, never drops messages on error.
type EventDedupUsecase struct {
	llm       repo.LLMRepo
	dedupRepo repo.DedupRepo
	prompts   Prompts
	config    EventDedupConfig
	logger    *zap.Logger
}

// NewEventDedupUsecase creates a new event dedup usecase
func NewEventDedupUsecase(llm repo.LLMRepo, dedupRepo repo.DedupRepo, prompts Prompts, config EventDedupConfig, logger *zap.Logger) *EventDedupUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventDedupUsecase{
		llm:       llm,
		dedupRepo: dedupRepo,
		prompts:   prompts.withDefaults(),
		config:    config,
		logger:    logger.Named("event_dedup"),
	}
}

// dedupItem is the compact per-message view sent to the model
type dedupItem struct {
	Index   int    `json:"index"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

// dedupPlan is the validated outcome of the model's groups
type dedupPlan struct {
	remove  map[int]struct{}
	records []domain.DedupRecord
}

// Dedup returns msgs minus the messages the model marked as repeats.
// Survivors keep their relative order and identity.
func (uc *EventDedupUsecase) Dedup(ctx context.Context, msgs []domain.Message) []domain.Message {
	if len(msgs) < 2 {
		return msgs
	}

	prompt, err := uc.buildPrompt(msgs)
	if err != nil {
		uc.logger.Error("build dedup prompt failed", zap.Error(err))
		return msgs
	}

	reply, err := uc.llm.Complete(ctx, prompt, repo.CompleteOptions{
		Temperature: 0.1,
		MaxTokens:   1000,
		MaxAttempts: uc.config.MaxAttempts,
	})
	if err != nil {
		uc.logger.Error("event dedup call failed, skipping", zap.Error(err))
		return msgs
	}

	parsed := ExtractJSON(reply)
	plan := resolveDedupGroups(parsed, msgs)
	if len(plan.remove) == 0 {
		uc.logger.Debug("no duplicate events found")
		return msgs
	}

	// Records go out before any message is dropped
	if uc.dedupRepo != nil {
		if err := uc.dedupRepo.SaveMany(ctx, plan.records); err != nil {
			uc.logger.Error("save dedup records failed, skipping", zap.Error(err))
			return msgs
		}
	}

	out := make([]domain.Message, 0, len(msgs)-len(plan.remove))
	for i, m := range msgs {
		if _, drop := plan.remove[i]; !drop {
			out = append(out, m)
		}
	}
	uc.logger.Info("event dedup done",
		zap.Int("removed", len(plan.remove)),
		zap.Int("records", len(plan.records)))
	return out
}

func (uc *EventDedupUsecase) buildPrompt(msgs []domain.Message) ([]domain.ChatMessage, error) {
	items := make([]dedupItem, len(msgs))
	for i, m := range msgs {
		items[i] = dedupItem{
			Index:   i,
			Source:  m.SourceOrUnknown(),
			Content: truncateRunes(m.Content, uc.config.MaxContentChars),
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return nil, fmt.Errorf("encode dedup items: %w", err)
	}

	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: uc.prompts.EventDedup},
		{Role: domain.RoleUser, Content: fmt.Sprintf("请分析以下 %d 条消息：\n\n%s", len(items), bytes.TrimSpace(buf.Bytes()))},
	}, nil
}

// resolveDedupGroups validates the model's groups against the batch.
// Invalid groups or indices are skipped; an index removed by several groups
// is removed once but audited once per group. A message some valid group
// keeps is never removed, so every event keeps a representative.
func resolveDedupGroups(parsed map[string]any, msgs []domain.Message) dedupPlan {
	plan := dedupPlan{remove: make(map[int]struct{})}
	if parsed == nil {
		return plan
	}
	rawGroups, ok := parsed["groups"].([]any)
	if !ok {
		return plan
	}

	type dedupGroup struct {
		keep   int
		remove []any
		reason string
	}
	groups := make([]dedupGroup, 0, len(rawGroups))
	kept := make(map[int]struct{})
	for _, g := range rawGroups {
		group, ok := g.(map[string]any)
		if !ok {
			continue
		}
		keep, ok := jsonIndex(group["keep"])
		if !ok || keep >= len(msgs) {
			continue
		}
		var removeList []any
		if raw, present := group["remove"]; present && raw != nil {
			if removeList, ok = raw.([]any); !ok {
				continue
			}
		}
		groups = append(groups, dedupGroup{keep: keep, remove: removeList, reason: jsonString(group, "reason")})
		kept[keep] = struct{}{}
	}

	for _, g := range groups {
		for _, r := range g.remove {
			idx, ok := jsonIndex(r)
			if !ok || idx >= len(msgs) {
				continue
			}
			if _, isKept := kept[idx]; isKept {
				continue
			}
			plan.remove[idx] = struct{}{}
			plan.records = append(plan.records, domain.NewDedupRecord(msgs[g.keep], msgs[idx], g.reason))
		}
	}
	return plan
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
