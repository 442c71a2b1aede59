package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the EstateDesk maintenance CLI. Subcommands (db, leads, etc.) are attached here.
var rootCmd = &cobra.Command{
	Use:           "estatedesk",
	Short:         "EstateDesk maintenance CLI",
	Long:          "Operational utilities for EstateDesk (schema migration, data backfills, dev tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
