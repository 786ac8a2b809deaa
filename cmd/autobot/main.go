package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger for the CLI surface. Per-project category logs are handled
	// by internal/logging once a project is open.
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "autobot",
	Short: "Autobot - autonomous task agent",
	Long: `Autobot is an autonomous task agent. Given a project goal it
repeatedly plans, executes, and reflects on tasks while a user-facing
persona answers chat messages.

Start an agent with:
  autobot run --project myproject --goal "Build a static site generator"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the autobot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("autobot %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./autobot.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
