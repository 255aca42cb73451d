package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/driftscope/driftscope/internal/errors"
)

func newSnapshotsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored snapshots for a scope",
		RunE:  runSnapshots,
	}
	addScopeFlags(cmd)
	cmd.Flags().Int("limit", 10, "maximum number of snapshots to list")
	return cmd
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	scope, err := scopeFromFlags(cmd)
	if err != nil {
		return err
	}
	st, err := buildStack()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("output")

	infos, err := st.store.Snapshots.List(cmd.Context(), scope, limit, nil)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No snapshots for scope %s\n", scope)
		return nil
	}
	return renderSnapshotList(cmd.OutOrStdout(), infos, format)
}

func newReportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List stored drift reports for a scope",
		RunE:  runReports,
	}
	addScopeFlags(cmd)
	cmd.Flags().Int("limit", 10, "maximum number of reports to list")
	return cmd
}

func runReports(cmd *cobra.Command, args []string) error {
	scope, err := scopeFromFlags(cmd)
	if err != nil {
		return err
	}
	st, err := buildStack()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("output")

	infos, err := st.store.Reports.List(cmd.Context(), scope, limit, nil)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No drift reports for scope %s\n", scope)
		return nil
	}
	return renderReportList(cmd.OutOrStdout(), infos, format)
}
