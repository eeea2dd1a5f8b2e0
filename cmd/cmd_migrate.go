package cmd

import (
	"github.com/gaze-network/runes-ledger/cmd/migrate"
	"github.com/spf13/cobra"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the runes ledger database schema",
		Long:  "Applies the PostgreSQL migrations of the runes module. The in-memory database needs no migrations.",
	}
	cmd.AddCommand(
		migrate.NewMigrateUpCommand(),
		migrate.NewMigrateDownCommand(),
	)
	return cmd
}
