package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elysiumlabs/atlas/internal/orchestrator"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the engine running in this directory",
	Long: `Suspend scheduling in the engine running in the current directory.
In-flight agent steps finish; no new tasks start until 'atlas resume'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sm, err := signalManager()
		if err != nil {
			return err
		}
		defer sm.Close()
		if err := sm.SendPause(); err != nil {
			return fmt.Errorf("send pause signal: %w", err)
		}
		fmt.Println("pause signal sent")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		sm, err := signalManager()
		if err != nil {
			return err
		}
		defer sm.Close()
		if err := sm.SendResume(); err != nil {
			return fmt.Errorf("send resume signal: %w", err)
		}
		fmt.Println("resume signal sent")
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task in the engine running in this directory",
	Long: `Request cancellation of a single task. Queued tasks are cancelled
immediately; a running task's agent stops at its next step boundary.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sm, err := signalManager()
		if err != nil {
			return err
		}
		defer sm.Close()
		if err := sm.SendCancel(args[0]); err != nil {
			return fmt.Errorf("send cancel signal: %w", err)
		}
		fmt.Printf("cancel signal sent for task %s\n", args[0])
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the engine running in this directory",
	Long: `Ask the engine running in the current directory to stop. Running
tasks are cancelled; completed work stays persisted and 'atlas run --resume'
picks the session back up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sm, err := signalManager()
		if err != nil {
			return err
		}
		defer sm.Close()
		if err := sm.SendKill(); err != nil {
			return fmt.Errorf("send stop signal: %w", err)
		}
		fmt.Println("stop signal sent")
		return nil
	},
}

func signalManager() (*orchestrator.SignalManager, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return orchestrator.NewSignalManager(cwd)
}
