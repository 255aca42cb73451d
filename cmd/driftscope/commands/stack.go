package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftscope/driftscope/internal/analyzer"
	"github.com/driftscope/driftscope/internal/collector"
	"github.com/driftscope/driftscope/internal/logger"
	"github.com/driftscope/driftscope/internal/orchestrator"
	"github.com/driftscope/driftscope/internal/storage"
	"github.com/driftscope/driftscope/pkg/types"
)

// stack bundles the wired pipeline components for a command invocation.
type stack struct {
	log       logger.Logger
	store     *storage.Local
	analyzer  *analyzer.Analyzer
	collector collector.Collector
}

// buildStack wires stores, analyzer and collector from the loaded config.
func buildStack() (*stack, error) {
	log := logger.New(cfg.LogLevel)

	store, err := storage.NewLocal(storage.Config{BaseDir: cfg.Storage.BaseDir})
	if err != nil {
		return nil, err
	}

	an := analyzer.New(analyzer.Options{MediumThreshold: cfg.Analyzer.MediumThreshold})

	var col collector.Collector
	switch cfg.Collector.Kind {
	case "azure-blob":
		col = collector.NewBlobCollector(cfg.Collector.StorageAccount, cfg.Collector.Container, cfg.Collector.Prefix, nil)
	case "file", "":
		col = collector.NewFileCollector(cfg.Collector.Dir)
	default:
		return nil, fmt.Errorf("unknown collector kind %q", cfg.Collector.Kind)
	}

	return &stack{log: log, store: store, analyzer: an, collector: col}, nil
}

// orchestratorConfig maps the loaded config onto orchestrator settings.
func orchestratorConfig() orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	if cfg.Orchestrator.Interval > 0 {
		oc.Interval = cfg.Orchestrator.Interval
	}
	if cfg.Orchestrator.CycleTimeout > 0 {
		oc.CycleTimeout = cfg.Orchestrator.CycleTimeout
	}
	if cfg.Orchestrator.RetentionInterval > 0 {
		oc.RetentionInterval = cfg.Orchestrator.RetentionInterval
	}
	if cfg.Orchestrator.Workers > 0 {
		oc.Workers = cfg.Orchestrator.Workers
	}
	if cfg.Orchestrator.MaxRetries > 0 {
		oc.Retry.MaxAttempts = cfg.Orchestrator.MaxRetries
	}
	if cfg.Orchestrator.RetryBaseDelay > 0 {
		oc.Retry.BaseDelay = cfg.Orchestrator.RetryBaseDelay
	}
	if cfg.Orchestrator.RetryMaxDelay > 0 {
		oc.Retry.MaxDelay = cfg.Orchestrator.RetryMaxDelay
	}
	if cfg.Orchestrator.MaxSnapshots > 0 {
		oc.SnapshotRetention.MaxCount = cfg.Orchestrator.MaxSnapshots
	}
	if cfg.Orchestrator.MaxReports > 0 {
		oc.ReportRetention.MaxCount = cfg.Orchestrator.MaxReports
	}
	if cfg.Orchestrator.RetentionAge > 0 {
		oc.SnapshotRetention.MaxAge = cfg.Orchestrator.RetentionAge
		oc.ReportRetention.MaxAge = cfg.Orchestrator.RetentionAge
	}
	return oc
}

// addScopeFlags registers the scope selection flags shared by commands.
func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().String("subscription", "", "subscription ID of the monitored scope")
	cmd.Flags().String("resource-group", "", "resource group of the monitored scope")
}

// scopeFromFlags resolves the scope from flags, falling back to the first
// configured scope.
func scopeFromFlags(cmd *cobra.Command) (types.Scope, error) {
	sub, _ := cmd.Flags().GetString("subscription")
	rg, _ := cmd.Flags().GetString("resource-group")
	if sub == "" && rg == "" && len(cfg.Scopes) > 0 {
		return cfg.Scopes[0].Scope(), nil
	}
	scope := types.Scope{SubscriptionID: sub, ResourceGroup: rg}
	if err := scope.Validate(); err != nil {
		return types.Scope{}, fmt.Errorf("scope required: %w", err)
	}
	return scope, nil
}
