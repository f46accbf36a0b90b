package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
	"github.com/devricklin/channel-curator/internal/data"
	"github.com/devricklin/channel-curator/internal/service"
)

func newFetchCmd() *cobra.Command {
	var (
		limit   int
		publish bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Collect the latest posts of every source channel once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := cfg.ValidateFetch(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var publisher repo.PublisherRepo
			if publish {
				if cfg.Bot.Token == "" || cfg.Bot.TargetChannel == "" {
					return fmt.Errorf("--publish needs BOT_TOKEN and TARGET_CHANNEL")
				}
				bot, err := a.newBot()
				if err != nil {
					return err
				}
				publisher = a.newPublisher(bot)
			}

			channels, _, err := a.startChannels(ctx)
			if err != nil {
				return err
			}

			collect := a.newCollect(channels, publisher)
			report, err := collect.Collect(ctx, limit, publish, func(rep usecase.CollectReport) {
				logger.Debug("collect progress", zap.String("stage", rep.Stage), zap.Int("fetched", rep.Fetched))
			})
			if err != nil {
				return err
			}
			fmt.Println(data.PlainText(service.FormatFetchResult(report)))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", service.FetchLimit, "Posts to read per channel")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish kept messages to the target channel")
	return cmd
}
