package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/elysiumlabs/atlas/internal/config"
	"github.com/elysiumlabs/atlas/internal/state"
	"github.com/elysiumlabs/atlas/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the most recent session",
	Long: `Display the task state of the newest active session from the state
database. Useful while a run is in progress in another terminal, or after a
crash to see what --resume would pick up.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.State.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No sessions recorded. Run 'atlas run <workflow.yaml>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	sessions, err := db.ActiveSessions()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No active session.")
		return nil
	}
	sessionID := sessions[len(sessions)-1]

	tasks, _, err := db.LoadTasks(sessionID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	fmt.Printf("session %s: %d tasks\n\n", sessionID, len(tasks))
	for _, task := range tasks {
		fmt.Printf("  %s %-10s %s\n", statusGlyph(task.Status), task.Status, task.ID)
		if task.Error != "" {
			fmt.Printf("      %s\n", task.Error)
		}
	}

	agents, err := db.LoadAgents()
	if err != nil {
		return fmt.Errorf("load agents: %w", err)
	}
	if len(agents) > 0 {
		fmt.Printf("\n%d live agents:\n", len(agents))
		for _, a := range agents {
			fmt.Printf("  %s  %s (task %s, %d errors)\n", a.ID, a.State, a.TaskID, a.ErrorCount)
		}
	}

	return nil
}

func statusGlyph(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusSucceeded:
		return color.GreenString("✓")
	case models.TaskStatusFailed:
		return color.RedString("✗")
	case models.TaskStatusCancelled:
		return color.YellowString("⊘")
	case models.TaskStatusRunning:
		return color.CyanString("▶")
	default:
		return "·"
	}
}
