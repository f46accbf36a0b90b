package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devricklin/channel-curator/internal/conf"
)

var version = "dev"

func main() {
	// Load .env file
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "curator",
		Short:         "Telegram channel aggregator with LLM filtering and daily summaries",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newSummaryCmd())
	cmd.AddCommand(newMCPCmd())

	return cmd
}

// setup loads configuration and builds the logger
func setup() (*conf.Config, *zap.Logger, error) {
	cfg := conf.LoadFromEnv()
	logger, err := conf.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger, nil
}
