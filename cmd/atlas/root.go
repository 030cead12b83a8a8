package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Multi-agent task orchestration engine",
	Long: `Atlas coordinates autonomous agents working through a dependency
graph of tasks. Each agent reasons with a language model, calls registered
tools, and exchanges messages with other agents over an in-process bus.

Core capabilities:
- Schedules tasks as their dependencies succeed
- Runs agents concurrently up to a configurable limit
- Retries idempotent tool calls with exponential backoff
- Cascades failures to dependent tasks
- Persists task state for crash recovery`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)
}
