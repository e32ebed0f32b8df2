// Command editguard compiles editing rules into constraints, extracts and
// applies position-exact changes, and runs correction requests end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"editguard/internal/config"
	"editguard/internal/logging"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string
	jsonOutput bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "editguard",
	Short: "editguard - constrained text correction",
	Long: `editguard turns natural-language editing rules into machine-checkable
constraints, extracts position-exact changes between an original and a
corrected text, and dispatches accepted changes to execution backends.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}

		opts := logging.FromConfig(cfg.Logging)
		if verbose {
			opts.Level = "debug"
		}
		logger, err = logging.New(opts)
		if err != nil {
			return err
		}
		logging.For(logger, logging.CategoryBoot).Debug("config loaded",
			zap.String("path", configPath),
			zap.String("default_mode", cfg.Engine.DefaultMode),
			zap.Int("modes", len(cfg.Modes)))
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
	Short: "Print the editguard version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "editguard %s (config %s)\n", version, cfg.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "editguard.yaml", "Config file (defaults apply when missing)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of styled text")

	compileCmd.Flags().StringSlice("allowed", nil, "Ad-hoc allowed rule (repeatable)")
	compileCmd.Flags().StringSlice("forbidden", nil, "Ad-hoc forbidden rule (repeatable)")
	compileCmd.Flags().StringSlice("focus", nil, "Ad-hoc focus rule (repeatable)")
	compileCmd.Flags().StringSlice("boundary", nil, "Ad-hoc boundary rule (repeatable)")

	diffCmd.Flags().Int("context", -1, "Context lines around hunks (default from config)")

	processCmd.Flags().String("corrected", "", "File holding the corrected text (required)")
	_ = processCmd.MarkFlagRequired("corrected")

	historyCmd.Flags().Int("limit", 20, "Number of results to list")

	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")

	patchCmd.AddCommand(patchMakeCmd)
	patchCmd.AddCommand(patchApplyCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(modesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
