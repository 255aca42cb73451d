package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftscope/driftscope/internal/collector"
	apperrors "github.com/driftscope/driftscope/internal/errors"
	"github.com/driftscope/driftscope/pkg/types"
)

func newCollectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection cycle for a scope",
		Long: `Collect fetches the current configuration of the scope, persists it as a
new snapshot, and compares it against the immediately preceding snapshot.
The first snapshot of a scope produces no drift report.`,
		Example: `  # Collect using the first configured scope
  driftscope collect

  # Collect an explicit scope and print the report as JSON
  driftscope collect --subscription 1111-2222 --resource-group prod-rg -o json`,
		RunE: runCollect,
	}
	addScopeFlags(cmd)
	return cmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	scope, err := scopeFromFlags(cmd)
	if err != nil {
		return err
	}
	st, err := buildStack()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("output")
	ctx := cmd.Context()

	retrying := collector.WithRetry(st.collector, retryPolicy(), st.log)
	config, err := retrying.Fetch(ctx, scope)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}

	snapshot := &types.Snapshot{Scope: scope, Configuration: config}
	snapshotID, err := st.store.Snapshots.Save(ctx, snapshot)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s saved (%d resources)\n", snapshotID, snapshot.ResourceCount())

	baseline, err := precedingSnapshot(cmd, st, scope, snapshot)
	if err != nil {
		return err
	}
	if baseline == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "First snapshot for scope; no drift report produced")
		return nil
	}

	report, err := st.analyzer.Diff(baseline, snapshot)
	if err != nil {
		return err
	}
	if _, err := st.store.Reports.Save(ctx, report); err != nil {
		return err
	}

	return renderReport(cmd.OutOrStdout(), report, format)
}

func precedingSnapshot(cmd *cobra.Command, st *stack, scope types.Scope, current *types.Snapshot) (*types.Snapshot, error) {
	infos, err := st.store.Snapshots.List(cmd.Context(), scope, 0, nil)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, info := range infos {
		if info.Sequence < current.Sequence {
			return st.store.Snapshots.Get(cmd.Context(), info.ID)
		}
	}
	return nil, nil
}

func retryPolicy() collector.RetryPolicy {
	policy := collector.DefaultRetryPolicy()
	if cfg.Orchestrator.MaxRetries > 0 {
		policy.MaxAttempts = cfg.Orchestrator.MaxRetries
	}
	if cfg.Orchestrator.RetryBaseDelay > 0 {
		policy.BaseDelay = cfg.Orchestrator.RetryBaseDelay
	}
	if cfg.Orchestrator.RetryMaxDelay > 0 {
		policy.MaxDelay = cfg.Orchestrator.RetryMaxDelay
	}
	return policy
}
