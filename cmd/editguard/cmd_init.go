package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// initCmd writes the effective configuration to --config
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings and modes",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
	return nil
}
