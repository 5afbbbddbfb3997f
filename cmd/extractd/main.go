package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geonexus/extractd/cmd/extractd/commands"
	"github.com/geonexus/extractd/logger"
)

var rootCmd = &cobra.Command{
	Use:   "extractd",
	Short: "extractd - extraction request orchestration daemon",
	Long: `extractd - orchestration daemon for geodata extraction requests.

extractd imports orders from external ordering systems, routes them to a
processing pipeline through connector matching rules, drives each request
task by task and exports the produced result back to its source.

Available commands:
  start   - Start the orchestration daemon
  status  - Show the orchestrator scheduling state
  version - Show version information

Examples:
  extractd start              # Run with the configured scheduling mode
  extractd start --verbose    # Run with debug logging
  extractd status             # Print the current working state`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger.SetVerbose()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug output")

	rootCmd.AddCommand(commands.StartCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
