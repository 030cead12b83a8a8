package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/elysiumlabs/atlas/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Atlas configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/atlas/config.yaml
Project-specific overrides can be placed in .atlas.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("provider.kind: %s\n", cfg.Provider.Kind)
	fmt.Printf("provider.anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Provider.Anthropic.APIKey))
	fmt.Printf("provider.anthropic.model: %s\n", cfg.Provider.Anthropic.Model)
	fmt.Printf("provider.anthropic.use_aws_bedrock: %t\n", cfg.Provider.Anthropic.UseAWSBedrock)
	fmt.Printf("provider.openai.api_key: %s\n", config.MaskAPIKey(cfg.Provider.OpenAI.APIKey))
	fmt.Printf("provider.openai.model: %s\n", cfg.Provider.OpenAI.Model)
	fmt.Printf("scheduler.max_concurrent_agents: %d\n", cfg.Scheduler.MaxConcurrentAgents)
	fmt.Printf("scheduler.tick_interval: %s\n", cfg.Scheduler.TickInterval)
	fmt.Printf("scheduler.provider_timeout: %s\n", cfg.Scheduler.ProviderTimeout)
	fmt.Printf("retry.max_retries: %d\n", cfg.Retry.MaxRetries)
	fmt.Printf("retry.base_delay: %s\n", cfg.Retry.BaseDelay)
	fmt.Printf("retry.multiplier: %g\n", cfg.Retry.Multiplier)
	fmt.Printf("retry.max_delay: %s\n", cfg.Retry.MaxDelay)
	fmt.Printf("agent.memory_limit: %d\n", cfg.Agent.MemoryLimit)
	fmt.Printf("state.db_path: %s\n", cfg.State.DBPath)
	fmt.Printf("state.persist: %t\n", cfg.State.Persist)
	fmt.Printf("log.debug: %t\n", cfg.Log.Debug)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	switch key {
	case "provider.kind":
		fmt.Println(cfg.Provider.Kind)
	case "provider.anthropic.model":
		fmt.Println(cfg.Provider.Anthropic.Model)
	case "provider.openai.model":
		fmt.Println(cfg.Provider.OpenAI.Model)
	case "scheduler.max_concurrent_agents":
		fmt.Println(cfg.Scheduler.MaxConcurrentAgents)
	case "scheduler.tick_interval":
		fmt.Println(cfg.Scheduler.TickInterval)
	case "scheduler.provider_timeout":
		fmt.Println(cfg.Scheduler.ProviderTimeout)
	case "retry.max_retries":
		fmt.Println(cfg.Retry.MaxRetries)
	case "retry.base_delay":
		fmt.Println(cfg.Retry.BaseDelay)
	case "retry.multiplier":
		fmt.Println(cfg.Retry.Multiplier)
	case "retry.max_delay":
		fmt.Println(cfg.Retry.MaxDelay)
	case "agent.memory_limit":
		fmt.Println(cfg.Agent.MemoryLimit)
	case "state.db_path":
		fmt.Println(cfg.State.DBPath)
	case "state.persist":
		fmt.Println(cfg.State.Persist)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
}

// setConfigKey updates a configuration value and saves it.
func setConfigKey(cfg *config.Config, key, value string) {
	var err error
	switch key {
	case "provider.kind":
		cfg.Provider.Kind = value
	case "provider.anthropic.model":
		cfg.Provider.Anthropic.Model = value
	case "provider.openai.model":
		cfg.Provider.OpenAI.Model = value
	case "scheduler.max_concurrent_agents":
		cfg.Scheduler.MaxConcurrentAgents, err = strconv.Atoi(value)
	case "scheduler.tick_interval":
		cfg.Scheduler.TickInterval, err = time.ParseDuration(value)
	case "scheduler.provider_timeout":
		cfg.Scheduler.ProviderTimeout, err = time.ParseDuration(value)
	case "retry.max_retries":
		cfg.Retry.MaxRetries, err = strconv.Atoi(value)
	case "retry.base_delay":
		cfg.Retry.BaseDelay, err = time.ParseDuration(value)
	case "retry.multiplier":
		cfg.Retry.Multiplier, err = strconv.ParseFloat(value, 64)
	case "retry.max_delay":
		cfg.Retry.MaxDelay, err = time.ParseDuration(value)
	case "agent.memory_limit":
		cfg.Agent.MemoryLimit, err = strconv.Atoi(value)
	case "state.db_path":
		cfg.State.DBPath = value
	case "state.persist":
		cfg.State.Persist, err = strconv.ParseBool(value)
	case "log.debug":
		cfg.Log.Debug, err = strconv.ParseBool(value)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid value for %s: %v\n", key, err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s = %s\n", key, value)
}
