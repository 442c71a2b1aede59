package leads

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/estatedesk/apps/cli/cmd/cliutil"
	"github.com/zenGate-Global/estatedesk/platform/go/persistence"
)

// assignmentStore is the slice of persistence.LeadStore the assignment commands need.
type assignmentStore interface {
	LeadAssignmentReport(ctx context.Context) (persistence.AssignmentReport, error)
	NormalizeLeadAssignment(ctx context.Context, dryRun bool) (int64, error)
}

type openFunc func(ctx context.Context, cmd *cobra.Command) (assignmentStore, func(), error)

// Command groups lead maintenance helpers.
func Command() *cobra.Command {
	return newCommand(openLeadStore)
}

func newCommand(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Lead maintenance (isAssigned diagnostics and migration)",
	}

	cliutil.AddDatabaseURLFlag(cmd)
	cmd.AddCommand(debugAssignedCommand(open))
	cmd.AddCommand(migrateAssignedCommand(open))
	return cmd
}

func openLeadStore(ctx context.Context, cmd *cobra.Command) (assignmentStore, func(), error) {
	pool, cleanup, err := cliutil.OpenPool(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	store, err := persistence.NewLeadStore(pool)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init lead store: %w", err)
	}
	return store, cleanup, nil
}

func debugAssignedCommand(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "debug-assigned",
		Short: "Count leads by is_assigned and report rows that disagree with assigned_to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()

			store, cleanup, err := open(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := store.LeadAssignmentReport(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "IS_ASSIGNED\tLEADS")
			fmt.Fprintf(tw, "true\t%d\n", report.True)
			fmt.Fprintf(tw, "false\t%d\n", report.False)
			fmt.Fprintf(tw, "null\t%d\n", report.Null)
			fmt.Fprintf(tw, "mismatched\t%d\n", report.Mismatched)
			fmt.Fprintf(tw, "total\t%d\n", report.Total)
			if err := tw.Flush(); err != nil {
				return err
			}

			if pending := report.Pending(); pending > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d leads need normalization; run `leads migrate-assigned`.\n", pending)
			}
			return nil
		},
	}
}

func migrateAssignedCommand(open openFunc) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate-assigned",
		Short: "Derive is_assigned from assigned_to for null or inconsistent rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()

			store, cleanup, err := open(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			changed, err := store.NormalizeLeadAssignment(ctx, dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "Dry run: %d leads would be normalized.\n", changed)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Normalized %d leads.\n", changed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the rows that would change without writing")
	return cmd
}
