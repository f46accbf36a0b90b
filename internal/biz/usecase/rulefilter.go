package usecase

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// DefaultMinMessageLength is the quality filter's default minimum length
const DefaultMinMessageLength = 20

var urlOnlyPattern = regexp.MustCompile(`(?i)^https?://\S+$`)

// RuleFilterConfig contains keyword and quality filter settings
type RuleFilterConfig struct {
	IncludeKeywords []string // Empty means no restriction
	ExcludeKeywords []string
	MinLength       int
}

// DefaultRuleFilterConfig returns default filter configuration
func DefaultRuleFilterConfig() RuleFilterConfig {
	return RuleFilterConfig{MinLength: DefaultMinMessageLength}
}

// RuleFilter applies the keyword and quality predicates
type RuleFilter struct {
	config   RuleFilterConfig
	keywords repo.SpamKeywordRepo // Learned exclude keywords, optional
	logger   *zap.Logger
}

// NewRuleFilter creates a new rule filter
func NewRuleFilter(config RuleFilterConfig, keywords repo.SpamKeywordRepo, logger *zap.Logger) *RuleFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleFilter{
		config:   config,
		keywords: keywords,
		logger:   logger.Named("rule_filter"),
	}
}

// ExcludeList returns configured exclude keywords (lowercased) united with the learned ones.
// A failing keyword store degrades to the configured list.
func (f *RuleFilter) ExcludeList(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(kw string) {
		kw = strings.ToLower(kw)
		if kw == "" {
			return
		}
		if _, ok := seen[kw]; ok {
			return
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}

	for _, kw := range f.config.ExcludeKeywords {
		add(kw)
	}
	if f.keywords != nil {
		learned, err := f.keywords.List(ctx)
		if err != nil {
			f.logger.Warn("load learned spam keywords failed", zap.Error(err))
		}
		for _, kw := range learned {
			add(kw)
		}
	}
	return out
}

// ApplyKeywords keeps messages passing the keyword predicate
func (f *RuleFilter) ApplyKeywords(ctx context.Context, msgs []domain.Message) []domain.Message {
	exclude := f.ExcludeList(ctx)
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if PassesKeywords(m.Content, f.config.IncludeKeywords, exclude) {
			out = append(out, m)
			continue
		}
		f.logger.Debug("message rejected by keywords", zap.String("source", m.Source))
	}
	return out
}

// ApplyQuality keeps messages passing the quality predicate
func (f *RuleFilter) ApplyQuality(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if PassesQuality(m.Content, f.config.MinLength) {
			out = append(out, m)
			continue
		}
		f.logger.Debug("message rejected by quality", zap.String("source", m.Source))
	}
	return out
}

// PassesKeywords reports whether content survives the keyword rules.
// Exclusion wins over inclusion; an empty include list accepts everything not excluded.
func PassesKeywords(content string, include, exclude []string) bool {
	text := strings.ToLower(content)
	for _, kw := range exclude {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, kw := range include {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// PassesQuality reports whether content is long enough and not a bare link.
// Length is counted in characters, not bytes.
func PassesQuality(content string, minLength int) bool {
	text := strings.TrimSpace(content)
	if utf8.RuneCountInString(text) < minLength {
		return false
	}
	return !urlOnlyPattern.MatchString(text)
}
