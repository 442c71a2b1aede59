package db

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/estatedesk/apps/cli/cmd/cliutil"
	"github.com/zenGate-Global/estatedesk/platform/go/persistence"
)

// Command groups database maintenance helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance (schema migration)",
	}

	cliutil.AddDatabaseURLFlag(cmd)
	cmd.AddCommand(migrateCommand())
	return cmd
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema DDL (idempotent)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()

			pool, cleanup, err := cliutil.OpenPool(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := persistence.ApplySchema(ctx, pool); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied.")
			return nil
		},
	}
}
