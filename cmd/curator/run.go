package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/api"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
	"github.com/devricklin/channel-curator/internal/server"
	"github.com/devricklin/channel-curator/internal/service"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot: live channel listening, scheduled jobs and chat commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx)
		},
	}
}

func (a *app) run(ctx context.Context) error {
	bot, err := a.newBot()
	if err != nil {
		return err
	}
	publisher := a.newPublisher(bot)
	if publisher == nil {
		a.logger.Warn("TARGET_CHANNEL not set, publishing disabled")
	}

	deps := service.CommandDeps{
		Messages:        a.repos.Message,
		Summaries:       a.repos.Summary,
		Dedup:           a.repos.Dedup,
		Digester:        usecase.NewDigestUsecase(a.llm, a.prompts, a.logger),
		EnableChat:      a.cfg.Bot.EnableChat,
		PublishInterval: a.cfg.Schedule.PublishInterval,
		Location:        a.cfg.Location(),
	}

	// Channel source is optional; without it only the store-backed commands work
	var collector service.Collector
	if err := a.cfg.ValidateFetch(); err != nil {
		a.logger.Warn("telegram user client not configured, channel collection disabled", zap.Error(err))
	} else {
		channels, done, err := a.startChannels(ctx)
		if err != nil {
			return err
		}
		collect := a.newCollect(channels, publisher)
		collector = collect
		deps.Collector = collect

		go func() {
			if err := channels.Listen(ctx, collect.HandleLive); err != nil {
				a.logger.Error("live listener stopped", zap.Error(err))
			}
		}()
		go func() {
			if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("telegram client disconnected", zap.Error(err))
			}
		}()
	}

	scheduler := service.NewScheduler(collector, a.newSummary(publisher), service.SchedulerConfig{
		ScrapeCron:  a.cfg.Schedule.ScrapeCron,
		SummaryCron: a.cfg.Schedule.SummaryCron,
		Location:    a.cfg.Location(),
	}, a.logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	handlers := service.NewCommandSet(deps, a.logger).Handlers()
	convSvc := service.NewConversationService(a.newRouter(), handlers, a.cfg.Bot.EnableChat, a.logger)

	tgServer := server.NewTelegramServer(bot, convSvc, a.logger)
	if err := tgServer.Start(ctx); err != nil {
		return err
	}
	defer tgServer.Stop()

	var apiServer *api.Server
	if a.cfg.APIPort > 0 {
		apiServer = api.NewServer(a.repos.Message, a.repos.Dedup, a.repos.SpamKeyword, a.newStats(), a.cfg.APIPort, a.logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				a.logger.Error("admin API stopped", zap.Error(err))
			}
		}()
	}

	a.logger.Info("curator running",
		zap.Strings("sources", a.cfg.Telegram.SourceChannels),
		zap.String("target", a.cfg.Bot.TargetChannel),
		zap.Bool("chat", a.cfg.Bot.EnableChat))

	<-ctx.Done()
	a.logger.Info("shutting down")

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("admin API shutdown failed", zap.Error(err))
		}
	}
	return nil
}
