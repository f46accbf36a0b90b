package main

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
	"github.com/devricklin/channel-curator/internal/conf"
	"github.com/devricklin/channel-curator/internal/data"
	"github.com/devricklin/channel-curator/internal/infra/feishu"
	"github.com/devricklin/channel-curator/internal/infra/telegram"
)

// app holds the shared stores and builds the usecases each command needs
type app struct {
	cfg     *conf.Config
	logger  *zap.Logger
	repos   *data.Repositories
	prompts usecase.Prompts
	llm     repo.LLMRepo
}

func newApp(cfg *conf.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	repos, err := data.NewRepositories(cfg.Storage.DBPath, cfg.Storage.SpamKeywordsPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Info("store opened", zap.String("db", cfg.Storage.DBPath))

	a := &app{
		cfg:     cfg,
		logger:  logger,
		repos:   repos,
		prompts: cfg.ToPrompts(),
	}
	if cfg.LLM.APIKey != "" {
		a.llm = data.NewLLMRepo(data.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL), cfg.LLM.Model, cfg.LLM.Timeout, logger)
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.repos.Close(); err != nil {
		a.logger.Warn("close store failed", zap.Error(err))
	}
}

// newBot connects the Bot API client used for commands and publishing
func (a *app) newBot() (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(a.cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = a.cfg.Debug
	a.logger.Info("bot authorized", zap.String("username", bot.Self.UserName))
	return bot, nil
}

// newPublisher returns nil when no target channel is configured
func (a *app) newPublisher(bot data.BotSender) repo.PublisherRepo {
	if bot == nil || a.cfg.Bot.TargetChannel == "" {
		return nil
	}
	if a.cfg.Feishu.Enabled() {
		mirror := feishu.NewClient(a.cfg.Feishu.AppID, a.cfg.Feishu.AppSecret, a.logger)
		a.logger.Info("feishu mirror enabled", zap.String("chat_id", a.cfg.Feishu.MirrorChatID))
		return data.NewMirroredPublisherRepo(bot, a.cfg.Bot.TargetChannel, mirror, a.cfg.Feishu.MirrorChatID, a.logger)
	}
	return data.NewPublisherRepo(bot, a.cfg.Bot.TargetChannel, a.logger)
}

// startChannels connects the user client and returns the channel source.
// The returned error channel yields when the connection ends.
func (a *app) startChannels(ctx context.Context) (repo.ChannelRepo, <-chan error, error) {
	client := telegram.NewClient(telegram.Config{
		APIID:       a.cfg.Telegram.APIID,
		APIHash:     a.cfg.Telegram.APIHash,
		Phone:       a.cfg.Telegram.Phone,
		Password:    a.cfg.Telegram.Password,
		SessionPath: a.cfg.Telegram.SessionPath,
		MediaDir:    a.cfg.Storage.MediaDir,
	}, a.logger)

	done, err := client.Start(ctx, a.cfg.Telegram.SourceChannels)
	if err != nil {
		return nil, nil, err
	}
	return data.NewChannelRepo(client, a.cfg.Telegram.SourceChannels), done, nil
}

func (a *app) newCollect(channels repo.ChannelRepo, publisher repo.PublisherRepo) *usecase.CollectUsecase {
	rules := usecase.NewRuleFilter(a.cfg.ToRuleFilterConfig(), a.repos.SpamKeyword, a.logger)
	dedup := usecase.NewEventDedupUsecase(a.llm, a.repos.Dedup, a.prompts, usecase.DefaultEventDedupConfig(), a.logger)
	pipeline := usecase.NewFilterPipeline(a.repos.Message, rules, dedup, a.logger)
	classifier := usecase.NewClassifierUsecase(a.llm, a.prompts, a.cfg.ToClassifierConfig(), a.logger)
	return usecase.NewCollectUsecase(channels, pipeline, classifier, a.repos.Message, publisher, a.cfg.ToCollectConfig(), a.logger)
}

func (a *app) newSummary(publisher repo.PublisherRepo) *usecase.SummaryUsecase {
	return usecase.NewSummaryUsecase(a.llm, a.repos.Message, a.repos.Summary, a.repos.SpamKeyword, publisher, a.prompts, a.logger).
		WithClock(func() time.Time { return time.Now().In(a.cfg.Location()) })
}

func (a *app) newStats() *usecase.StatsUsecase {
	return usecase.NewStatsUsecase(a.repos.Message, a.repos.Dedup, a.repos.Summary, a.repos.SpamKeyword)
}

func (a *app) newRouter() *usecase.IntentRouter {
	store := usecase.NewConfirmationStore(domain.DefaultConfirmationTTL)
	detector := usecase.NewConfirmDetector(a.llm, a.prompts, a.logger)
	chat := usecase.NewChatUsecase(a.llm, a.prompts, a.logger)
	return usecase.NewIntentRouter(domain.DefaultCommands(), store, detector, chat, a.logger)
}
