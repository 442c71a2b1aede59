package properties

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/estatedesk/apps/cli/cmd/cliutil"
	propertiesrepo "github.com/zenGate-Global/estatedesk/domains/properties/be/repo"
	propertiesservice "github.com/zenGate-Global/estatedesk/domains/properties/be/service"
	"github.com/zenGate-Global/estatedesk/platform/go/persistence"
	"github.com/zenGate-Global/estatedesk/platform/go/requesttrace"
)

type openFunc func(ctx context.Context, cmd *cobra.Command) (propertiesservice.Service, func(), error)

// Command groups property maintenance helpers.
func Command() *cobra.Command {
	return newCommand(openPropertyService)
}

func newCommand(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "properties",
		Short: "Property maintenance (slug backfill)",
	}

	cliutil.AddDatabaseURLFlag(cmd)
	cmd.AddCommand(backfillSlugsCommand(open))
	return cmd
}

// openPropertyService reads straight from Postgres; the API cache expires stale slugs on its own.
func openPropertyService(ctx context.Context, cmd *cobra.Command) (propertiesservice.Service, func(), error) {
	pool, cleanup, err := cliutil.OpenPool(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	store, err := persistence.NewPropertyStore(pool)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init property store: %w", err)
	}

	svc := propertiesservice.New(propertiesrepo.NewPostgresRepository(store), persistence.NewDocumentValidator())
	return svc, cleanup, nil
}

func backfillSlugsCommand(open openFunc) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "backfill-slugs",
		Short: "Recompute cached property slugs from their titles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()

			svc, cleanup, err := open(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx = requesttrace.IntoContext(ctx, requesttrace.System("cli-properties-backfill-slugs"))

			report, err := svc.BackfillSlugs(ctx, dryRun)
			if err != nil {
				return fmt.Errorf("backfill slugs: %w", err)
			}

			if len(report.Mismatches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "All property slugs are current.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTORED\tEXPECTED")
			for _, m := range report.Mismatches {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.PropertyID, m.Stored, m.Expected)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "Dry run: %d slugs would be updated.\n", len(report.Mismatches))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d of %d slugs.\n", report.Updated, len(report.Mismatches))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List stale slugs without writing")
	return cmd
}
