package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tokendesk/otc-desk/internal/config"
	"github.com/tokendesk/otc-desk/pkg/logger"
	"github.com/tokendesk/otc-desk/pkg/logger/slogx"
)

var cmd = &cobra.Command{
	Use:  "otcd",
	Long: `OTC desk service: cross-chain token consignments and deal reservations`,
}

func init() {
	var configFile string

	// Add global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file, E.g. `./config.yaml`")

	// Initialize configuration and logger on start command
	cobra.OnInitialize(func() {
		config := config.Parse(configFile)

		if err := logger.Init(config.Logger); err != nil {
			logger.Panic("Failed to initialize logger", slogx.Error(err), slog.Any("config", config.Logger))
		}
	})
}

func Execute(ctx context.Context) {
	// Register sub-commands
	cmd.AddCommand(
		NewRunCommand(),
		NewVersionCommand(),
		NewMigrateCommand(),
		NewExportCommand(),
	)

	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Panic("Failed to execute command", slogx.Error(err))
	}
}
