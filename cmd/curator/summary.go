package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/data"
)

func newSummaryCmd() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Generate today's summary now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := cfg.ValidateSummary(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
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
				bot, err := a.newBot()
				if err != nil {
					return err
				}
				publisher = a.newPublisher(bot)
			}

			summary, err := a.newSummary(publisher).RunDaily(ctx)
			if err != nil {
				return err
			}
			if summary == nil {
				fmt.Println("📭 今日无新消息。")
				return nil
			}
			fmt.Println(data.PlainText(summary.Content))
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "Also publish the summary to the target channel")
	return cmd
}
