// Package config handles configuration loading and management for Atlas.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Atlas.
type Config struct {
	Provider  ProviderConfig  `mapstructure:"provider"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Agent     AgentConfig     `mapstructure:"agent"`
	State     StateConfig     `mapstructure:"state"`
	Log       LogConfig       `mapstructure:"log"`
}

// ProviderConfig selects and configures the language model backend.
type ProviderConfig struct {
	// Kind is "anthropic" or "openai".
	Kind      string          `mapstructure:"kind"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	MaxTokens     int    `mapstructure:"max_tokens"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// SchedulerConfig holds engine scheduling settings.
type SchedulerConfig struct {
	// MaxConcurrentAgents caps how many agents may be thinking or waiting
	// on a tool at once.
	MaxConcurrentAgents int `mapstructure:"max_concurrent_agents"`
	// TickInterval is how often the engine wakes without an event.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// ProviderTimeout bounds a single model completion call.
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
}

// RetryConfig holds retry policy settings for idempotent tool calls.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	Multiplier float64       `mapstructure:"multiplier"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// AgentConfig holds per-agent settings.
type AgentConfig struct {
	// MemoryLimit is the maximum number of observations an agent retains.
	MemoryLimit int `mapstructure:"memory_limit"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	// DBPath is the SQLite database path. Empty means the XDG default.
	DBPath string `mapstructure:"db_path"`
	// Persist toggles snapshot persistence entirely.
	Persist bool `mapstructure:"persist"`
}

// LogConfig holds debug logging settings.
type LogConfig struct {
	Debug bool   `mapstructure:"debug"`
	File  string `mapstructure:"file"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY)
// 2. Project config (.atlas.yaml in current directory or parent)
// 3. User config (~/.config/atlas/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("provider.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("provider.openai.api_key", "OPENAI_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Provider.Anthropic.APIKey = os.ExpandEnv(cfg.Provider.Anthropic.APIKey)
	cfg.Provider.OpenAI.APIKey = os.ExpandEnv(cfg.Provider.OpenAI.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Provider.Anthropic.APIKey = os.ExpandEnv(cfg.Provider.Anthropic.APIKey)
	cfg.Provider.OpenAI.APIKey = os.ExpandEnv(cfg.Provider.OpenAI.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}
	if c.Scheduler.MaxConcurrentAgents < 1 {
		return fmt.Errorf("scheduler.max_concurrent_agents must be at least 1, got %d", c.Scheduler.MaxConcurrentAgents)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1, got %v", c.Retry.Multiplier)
	}
	if c.Agent.MemoryLimit < 1 {
		return fmt.Errorf("agent.memory_limit must be at least 1, got %d", c.Agent.MemoryLimit)
	}
	return nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("provider.kind", cfg.Provider.Kind)
	v.Set("provider.anthropic.api_key", cfg.Provider.Anthropic.APIKey)
	v.Set("provider.anthropic.model", cfg.Provider.Anthropic.Model)
	v.Set("provider.anthropic.max_tokens", cfg.Provider.Anthropic.MaxTokens)
	v.Set("provider.openai.api_key", cfg.Provider.OpenAI.APIKey)
	v.Set("provider.openai.model", cfg.Provider.OpenAI.Model)
	v.Set("scheduler.max_concurrent_agents", cfg.Scheduler.MaxConcurrentAgents)
	v.Set("scheduler.tick_interval", cfg.Scheduler.TickInterval.String())
	v.Set("scheduler.provider_timeout", cfg.Scheduler.ProviderTimeout.String())
	v.Set("retry.max_retries", cfg.Retry.MaxRetries)
	v.Set("retry.base_delay", cfg.Retry.BaseDelay.String())
	v.Set("retry.multiplier", cfg.Retry.Multiplier)
	v.Set("retry.max_delay", cfg.Retry.MaxDelay.String())
	v.Set("agent.memory_limit", cfg.Agent.MemoryLimit)
	v.Set("state.db_path", cfg.State.DBPath)
	v.Set("state.persist", cfg.State.Persist)
	v.Set("log.debug", cfg.Log.Debug)
	v.Set("log.file", cfg.Log.File)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.kind", "anthropic")
	v.SetDefault("provider.anthropic.api_key", "")
	v.SetDefault("provider.anthropic.model", "")
	v.SetDefault("provider.anthropic.max_tokens", 4096)
	v.SetDefault("provider.anthropic.use_aws_bedrock", false)
	v.SetDefault("provider.openai.api_key", "")
	v.SetDefault("provider.openai.model", "")
	v.SetDefault("provider.openai.max_tokens", 4096)

	v.SetDefault("scheduler.max_concurrent_agents", 4)
	v.SetDefault("scheduler.tick_interval", "100ms")
	v.SetDefault("scheduler.provider_timeout", "2m")

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "500ms")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.max_delay", "30s")

	v.SetDefault("agent.memory_limit", 50)

	v.SetDefault("state.db_path", "")
	v.SetDefault("state.persist", true)

	v.SetDefault("log.debug", false)
	v.SetDefault("log.file", "")
}

// getUserConfigDir returns the XDG config directory for Atlas.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "atlas")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "atlas")
	}
	return filepath.Join(home, ".config", "atlas")
}

// findProjectConfig searches for .atlas.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".atlas.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Kind: "anthropic",
			Anthropic: AnthropicConfig{
				MaxTokens: 4096,
			},
			OpenAI: OpenAIConfig{
				MaxTokens: 4096,
			},
		},
		Scheduler: SchedulerConfig{
			MaxConcurrentAgents: 4,
			TickInterval:        100 * time.Millisecond,
			ProviderTimeout:     2 * time.Minute,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  500 * time.Millisecond,
			Multiplier: 2.0,
			MaxDelay:   30 * time.Second,
		},
		Agent: AgentConfig{
			MemoryLimit: 50,
		},
		State: StateConfig{
			Persist: true,
		},
	}
}
