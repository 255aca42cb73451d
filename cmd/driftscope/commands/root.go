package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftscope/driftscope/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "driftscope",
	Short: "Configuration drift detection for Azure resource groups",
	Long: `driftscope periodically captures the configuration of a resource group,
persists each capture as an immutable snapshot, and compares successive
snapshots into structured drift reports.

  driftscope serve      # run the scheduler and HTTP API
  driftscope collect    # run one collection cycle now
  driftscope diff       # compare two stored snapshots
  driftscope snapshots  # list stored snapshots for a scope`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig()
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./driftscope.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format (table, json, yaml)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCollectCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newSnapshotsCommand())
	rootCmd.AddCommand(newReportsCommand())
	rootCmd.AddCommand(newVersionCommand())
}

// initConfig loads configuration before any command runs.
func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if lvl, _ := rootCmd.PersistentFlags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return nil
}
