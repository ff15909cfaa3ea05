package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tokendesk/otc-desk/cmd/migrate"
)

func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	migrateCmd.AddCommand(
		migrate.NewMigrateUpCommand(),
		migrate.NewMigrateDownCommand(),
	)

	return migrateCmd
}
