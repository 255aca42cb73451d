package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/driftscope/driftscope/internal/orchestrator"
	"github.com/driftscope/driftscope/internal/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the drift monitoring scheduler and HTTP API",
		Long: `Serve runs the periodic collection scheduler for all configured scopes
and exposes the HTTP API for triggering collections and reading the latest
snapshot and drift report.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := buildStack()
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestratorConfig(), st.collector, st.analyzer,
		st.store.Snapshots, st.store.Reports, st.log, nil)
	for _, sc := range cfg.Scopes {
		if err := orch.Register(sc.Scope()); err != nil {
			return err
		}
	}

	srv := server.New(server.Config{
		Address:         cfg.Server.Address,
		Port:            cfg.Server.Port,
		RatePerMinute:   cfg.Server.RatePerMinute,
		RatePerHour:     cfg.Server.RatePerHour,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, orch, st.store.Snapshots, st.store.Reports, st.log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		// Normal shutdown via signal.
		return nil
	}
	return err
}
