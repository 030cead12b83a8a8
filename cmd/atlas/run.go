package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/elysiumlabs/atlas/internal/agent"
	"github.com/elysiumlabs/atlas/internal/config"
	"github.com/elysiumlabs/atlas/internal/orchestrator"
	"github.com/elysiumlabs/atlas/internal/provider/anthropic"
	"github.com/elysiumlabs/atlas/internal/provider/openai"
	"github.com/elysiumlabs/atlas/internal/state"
	"github.com/elysiumlabs/atlas/internal/workflow"
)

var (
	runResume bool
	runDebug  bool
)

var runCmd = &cobra.Command{
	Use:   "run [workflow.yaml]",
	Short: "Run a workflow of tasks",
	Long: `Execute the tasks declared in a workflow file. Tasks run as their
dependencies succeed, each driven by its own agent. With --resume and no
workflow file, the most recent interrupted session is picked up instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Resume the most recent interrupted session")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Write a debug log to .atlas/logs")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var wf *workflow.Workflow
	if len(args) == 1 {
		wf, err = workflow.Load(args[0])
		if err != nil {
			return err
		}
	} else if !runResume {
		return fmt.Errorf("a workflow file is required unless --resume is set")
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	opts := []orchestrator.Option{}

	var db *state.DB
	if cfg.State.Persist {
		dbPath := cfg.State.DBPath
		if dbPath == "" {
			dbPath = state.DefaultDBPath()
		}
		db, err = state.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open state database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate state database: %w", err)
		}
		opts = append(opts, orchestrator.WithStore(db))
	}

	signals, err := orchestrator.NewSignalManager(cwd)
	if err != nil {
		return fmt.Errorf("init signals: %w", err)
	}
	defer signals.Close()
	signals.ClearSignals()
	opts = append(opts, orchestrator.WithSignals(signals))

	if runDebug || cfg.Log.Debug {
		logger := orchestrator.NewDebugLoggerForDir(cwd)
		defer logger.Close()
		opts = append(opts, orchestrator.WithLogger(logger))
	} else if cfg.Log.File != "" {
		logger, err := orchestrator.NewDebugLogger(cfg.Log.File)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer logger.Close()
		opts = append(opts, orchestrator.WithLogger(logger))
	}

	engine := orchestrator.New(cfg, provider, builtinRegistry(), opts...)

	if runResume {
		if db == nil {
			return fmt.Errorf("--resume requires state persistence")
		}
		rec, err := db.Recover()
		if err != nil {
			return fmt.Errorf("recover session: %w", err)
		}
		if rec == nil && wf == nil {
			return fmt.Errorf("no interrupted session to resume")
		}
		if rec != nil {
			if err := engine.Restore(rec); err != nil {
				return err
			}
			for _, id := range rec.Requeued {
				fmt.Printf("requeued interrupted task %s\n", id)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := make(chan runSummary, 1)
	go func() { summary <- printEvents(engine.Events()) }()

	errCh := make(chan error, 1)
	go func() { errCh <- engine.Run(ctx) }()

	if wf != nil {
		if err := submitWorkflow(engine, wf); err != nil {
			stop()
			<-errCh
			return err
		}
	}

	runErr := <-errCh
	s := <-summary

	fmt.Println()
	fmt.Printf("done: %d succeeded, %d failed, %d cancelled\n", s.succeeded, s.failed, s.cancelled)

	if runErr != nil && runErr != context.Canceled {
		return runErr
	}
	if s.failed > 0 {
		os.Exit(1)
	}
	return nil
}

// submitWorkflow feeds the workflow's tasks into the engine in file order.
// Timeouts become absolute deadlines at submission time.
func submitWorkflow(engine *orchestrator.Engine, wf *workflow.Workflow) error {
	for _, def := range wf.Tasks {
		req := orchestrator.SubmitRequest{
			ID:        def.ID,
			Goal:      def.Goal,
			DependsOn: def.DependsOn,
			Priority:  def.Priority,
		}
		if def.Timeout > 0 {
			deadline := time.Now().Add(def.Timeout)
			req.Deadline = &deadline
		}
		if _, err := engine.Submit(req); err != nil {
			return fmt.Errorf("submit task %s: %w", def.ID, err)
		}
	}
	return nil
}

type runSummary struct {
	succeeded int
	failed    int
	cancelled int
}

// printEvents renders the engine's event stream until it closes.
func printEvents(events <-chan orchestrator.Event) runSummary {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	var s runSummary
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventTaskStarted:
			fmt.Printf("%s %s (agent %s)\n", cyan("▶"), ev.TaskID, ev.AgentID)
		case orchestrator.EventTaskCompleted:
			s.succeeded++
			fmt.Printf("%s %s\n", green("✓"), ev.TaskID)
		case orchestrator.EventTaskFailed:
			s.failed++
			fmt.Printf("%s %s: %v\n", red("✗"), ev.TaskID, ev.Err)
		case orchestrator.EventTaskCancelled:
			s.cancelled++
			fmt.Printf("%s %s cancelled\n", yellow("⊘"), ev.TaskID)
		case orchestrator.EventToolRetried:
			fmt.Printf("%s %s: retrying %s (attempt %d)\n", yellow("↻"), ev.TaskID, ev.Tool, ev.Attempt)
		case orchestrator.EventRunPaused:
			fmt.Println(yellow("paused"))
		case orchestrator.EventRunResumed:
			fmt.Println(cyan("resumed"))
		}
	}
	return s
}

// anthropicModel converts a configured model name to the SDK's model type.
// Empty means the provider's default.
func anthropicModel(name string) sdk.Model {
	return sdk.Model(name)
}

// buildProvider constructs the reasoning provider selected by configuration.
func buildProvider(cfg *config.Config) (agent.Provider, error) {
	key, err := config.GetAPIKey(cfg)
	if err != nil && !cfg.Provider.Anthropic.UseAWSBedrock {
		return nil, err
	}

	switch cfg.Provider.Kind {
	case "openai":
		return openai.New(openai.Config{
			Model:               cfg.Provider.OpenAI.Model,
			APIKey:              key,
			MaxCompletionTokens: int64(cfg.Provider.OpenAI.MaxTokens),
			Timeout:             cfg.Scheduler.ProviderTimeout,
		}), nil
	default:
		return anthropic.New(anthropic.Config{
			Model:         anthropicModel(cfg.Provider.Anthropic.Model),
			APIKey:        key,
			MaxTokens:     int64(cfg.Provider.Anthropic.MaxTokens),
			Timeout:       cfg.Scheduler.ProviderTimeout,
			UseAWSBedrock: cfg.Provider.Anthropic.UseAWSBedrock,
			AWSRegion:     cfg.Provider.Anthropic.AWSRegion,
			AWSProfile:    cfg.Provider.Anthropic.AWSProfile,
		})
	}
}
