package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <baseline-id> <candidate-id>",
		Short: "Compare two stored snapshots",
		Long: `Diff loads two stored snapshots and prints the drift report between them.
The candidate must be strictly newer than the baseline and both must belong
to the same scope. The report is not persisted.`,
		Args: cobra.ExactArgs(2),
		RunE: runDiff,
	}
}

func runDiff(cmd *cobra.Command, args []string) error {
	st, err := buildStack()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("output")

	baseline, err := st.store.Snapshots.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("baseline snapshot: %w", err)
	}
	candidate, err := st.store.Snapshots.Get(cmd.Context(), args[1])
	if err != nil {
		return fmt.Errorf("candidate snapshot: %w", err)
	}

	report, err := st.analyzer.Diff(baseline, candidate)
	if err != nil {
		return err
	}
	return renderReport(cmd.OutOrStdout(), report, format)
}
